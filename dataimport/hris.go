package dataimport

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/czcorpus/attrisim/risk"
	"github.com/go-sql-driver/mysql"
)

var tableNameRegexp = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// DBConf configures access to an HRIS MySQL/MariaDB database.
// The table must provide columns named like the JSON fields
// of risk.EmployeeRecord.
type DBConf struct {
	Host      string `json:"host"`
	User      string `json:"user"`
	Passwd    string `json:"passwd"`
	Name      string `json:"db"`
	TableName string `json:"tableName"`
}

type HRISResult struct {
	risk.EmployeeRecord
	Error error
}

type HRISSource struct {
	conn      *sql.DB
	tableName string
}

// ImportEmployees streams all the employees from the HRIS table.
// The channel is closed once all rows are read or the first error
// is sent.
func (src *HRISSource) ImportEmployees(ctx context.Context) (chan HRISResult, error) {
	rows, err := src.conn.QueryContext(
		ctx,
		fmt.Sprintf(
			"SELECT id, name, department, salary, market_salary, performance_score, "+
				"absence_spells, total_absent_days, work_hours, leaves_left, "+
				"notice_period_days, hike_offered_pct FROM %s ORDER BY id",
			src.tableName,
		),
	)
	ans := make(chan HRISResult, 100)
	if err != nil {
		close(ans)
		return ans, fmt.Errorf("failed to fetch HRIS employees: %w", err)
	}
	go func() {
		defer close(ans)
		defer rows.Close()
		for rows.Next() {
			var rec risk.EmployeeRecord
			var name, department sql.NullString
			err := rows.Scan(
				&rec.ID,
				&name,
				&department,
				&rec.Salary,
				&rec.MarketSalary,
				&rec.PerformanceScore,
				&rec.AbsenceSpells,
				&rec.TotalAbsentDays,
				&rec.WorkHours,
				&rec.LeavesLeft,
				&rec.NoticePeriodDays,
				&rec.HikeOfferedPct,
			)
			if err != nil {
				ans <- HRISResult{
					Error: err,
				}
				return
			}
			rec.Name = name.String
			rec.Department = department.String
			ans <- HRISResult{
				EmployeeRecord: rec,
			}
		}
		if err := rows.Err(); err != nil {
			ans <- HRISResult{Error: err}
		}
	}()
	return ans, nil
}

func (src *HRISSource) Close() error {
	return src.conn.Close()
}

func NewHRISSource(conf DBConf) (*HRISSource, error) {
	tableName := conf.TableName
	if tableName == "" {
		tableName = "employees"
	}
	if !tableNameRegexp.MatchString(tableName) {
		return nil, fmt.Errorf("invalid HRIS table name %s", tableName)
	}
	db, err := openMySQL(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open HRIS database: %w", err)
	}
	return &HRISSource{
		conn:      db,
		tableName: tableName,
	}, nil
}

func openMySQL(conf DBConf) (*sql.DB, error) {
	mconf := mysql.NewConfig()
	mconf.Net = "tcp"
	mconf.Addr = conf.Host
	mconf.User = conf.User
	mconf.Passwd = conf.Passwd
	mconf.DBName = conf.Name
	mconf.ParseTime = true
	mconf.Loc = time.Local
	return sql.Open("mysql", mconf.FormatDSN())
}
