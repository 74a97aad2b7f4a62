// Copyright 2024 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2024 Institute of the Czech National Corpus,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/czcorpus/attrisim/risk"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var ErrEmployeeNotFound = errors.New("employee not found")

const employeeColumns = "id, name, department, salary, market_salary, performance_score, " +
	"absence_spells, total_absent_days, work_hours, leaves_left, notice_period_days, hike_offered_pct"

// Database is the SQLite based record source. Records are only read
// by the engine; writing happens during imports.
type Database struct {
	db *sql.DB
}

func (database *Database) createEmployeesTable() error {
	_, err := database.db.Exec(
		"CREATE TABLE employees (" +
			"id INTEGER PRIMARY KEY NOT NULL, " +
			"name TEXT NOT NULL DEFAULT '', " +
			"department TEXT NOT NULL DEFAULT '', " +
			"salary FLOAT NOT NULL, " +
			"market_salary FLOAT NOT NULL, " +
			"performance_score INTEGER NOT NULL, " +
			"absence_spells INTEGER NOT NULL DEFAULT 0, " +
			"total_absent_days INTEGER NOT NULL DEFAULT 0, " +
			"work_hours FLOAT NOT NULL, " +
			"leaves_left INTEGER NOT NULL DEFAULT 0, " +
			"notice_period_days INTEGER NOT NULL DEFAULT 0, " +
			"hike_offered_pct FLOAT NOT NULL DEFAULT 0, " +
			"risk_score INTEGER, " +
			"risk_factors TEXT, " +
			"attrition_cost FLOAT" +
			")",
	)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	log.Info().Msg("created table `employees`")
	return nil
}

func (database *Database) tableExists(tn string) (bool, error) {
	ans := database.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", tn)
	var nm sql.NullString
	err := ans.Scan(&nm)
	if err == sql.ErrNoRows {
		return false, nil

	} else if err != nil {
		return false, fmt.Errorf("failed to determine existence of table %s: %w", tn, err)
	}
	return true, nil
}

// Init creates missing tables
func (database *Database) Init() error {
	ex, err := database.tableExists("employees")
	if err != nil {
		return fmt.Errorf("failed to init table employees: %w", err)
	}
	if ex {
		log.Info().Str("table", "employees").Msg("table already exists")

	} else {
		if err := database.createEmployeesTable(); err != nil {
			return fmt.Errorf("failed to create table employees: %w", err)
		}
	}

	ex, err = database.tableExists("training")
	if err != nil {
		return fmt.Errorf("failed to init table training: %w", err)
	}
	if ex {
		log.Info().Str("table", "training").Msg("table already exists")

	} else {
		if err := database.createTrainingTable(); err != nil {
			return fmt.Errorf("failed to create table training: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (risk.EmployeeRecord, error) {
	var rec risk.EmployeeRecord
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Department,
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
	return rec, err
}

// ListEmployees returns records matching the filter ordered by their ID.
func (database *Database) ListEmployees(ctx context.Context, filter ListFilter) ([]risk.EmployeeRecord, error) {
	query := "SELECT " + employeeColumns + " FROM employees WHERE %s ORDER BY id"
	whereChunks := make([]string, 0, 3)
	whereArgs := make([]any, 0, 3)
	whereChunks = append(whereChunks, "1 = 1")
	if filter.Department != nil {
		whereChunks = append(whereChunks, "department = ?")
		whereArgs = append(whereArgs, *filter.Department)
	}
	if filter.MinRuleScore != nil {
		whereChunks = append(whereChunks, "risk_score >= ?")
		whereArgs = append(whereArgs, *filter.MinRuleScore)
	}
	rows, err := database.db.QueryContext(
		ctx, fmt.Sprintf(query, strings.Join(whereChunks, " AND ")), whereArgs...)
	if err != nil {
		return []risk.EmployeeRecord{}, fmt.Errorf("failed to fetch employees: %w", err)
	}
	defer rows.Close()
	ans := make([]risk.EmployeeRecord, 0, 100)
	for rows.Next() {
		rec, err := scanEmployee(rows)
		if err != nil {
			return []risk.EmployeeRecord{}, fmt.Errorf("failed to fetch employees: %w", err)
		}
		ans = append(ans, rec)
	}
	if err := rows.Err(); err != nil {
		return []risk.EmployeeRecord{}, fmt.Errorf("failed to fetch employees: %w", err)
	}
	return ans, nil
}

func (database *Database) GetAllEmployees(ctx context.Context) ([]risk.EmployeeRecord, error) {
	return database.ListEmployees(ctx, ListFilter{})
}

// GetEmployee returns ErrEmployeeNotFound for unknown IDs
func (database *Database) GetEmployee(ctx context.Context, id int) (risk.EmployeeRecord, error) {
	row := database.db.QueryRowContext(
		ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	rec, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return risk.EmployeeRecord{}, fmt.Errorf("%w: %d", ErrEmployeeNotFound, id)

	} else if err != nil {
		return risk.EmployeeRecord{}, fmt.Errorf("failed to get employee %d: %w", id, err)
	}
	return rec, nil
}

func (database *Database) CountEmployees() (int, error) {
	row := database.db.QueryRow("SELECT COUNT(*) FROM employees")
	var ans int
	if err := row.Scan(&ans); err != nil {
		return -1, fmt.Errorf("failed to count employees: %w", err)
	}
	return ans, nil
}

// ImportEmployees inserts (or replaces) the rows in a single
// transaction. With replaceAll, existing records are removed first.
func (database *Database) ImportEmployees(rows []EmployeeRow, replaceAll bool) error {
	tx, err := database.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to import employees: %w", err)
	}
	if replaceAll {
		if _, err := tx.Exec("DELETE FROM employees"); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to import employees: %w", err)
		}
	}
	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO employees (" + employeeColumns +
			", risk_score, risk_factors, attrition_cost) " +
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to import employees: %w", err)
	}
	defer stmt.Close()
	for _, row := range rows {
		factors, err := json.Marshal(row.Snapshot.RiskFactors)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to import employee %d: %w", row.ID, err)
		}
		_, err = stmt.Exec(
			row.ID,
			row.Name,
			row.Department,
			row.Salary,
			row.MarketSalary,
			row.PerformanceScore,
			row.AbsenceSpells,
			row.TotalAbsentDays,
			row.WorkHours,
			row.LeavesLeft,
			row.NoticePeriodDays,
			row.HikeOfferedPct,
			row.Snapshot.RiskScore,
			string(factors),
			row.Snapshot.AttritionCost,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to import employee %d: %w", row.ID, err)
		}
	}
	return tx.Commit()
}

// GetRuleSnapshot returns the rule evaluation stored during the import
// of the employee.
func (database *Database) GetRuleSnapshot(id int) (RuleSnapshot, error) {
	row := database.db.QueryRow(
		"SELECT risk_score, risk_factors, attrition_cost FROM employees WHERE id = ?", id)
	var score sql.NullInt64
	var factors sql.NullString
	var cost sql.NullFloat64
	err := row.Scan(&score, &factors, &cost)
	if err == sql.ErrNoRows {
		return RuleSnapshot{}, fmt.Errorf("%w: %d", ErrEmployeeNotFound, id)

	} else if err != nil {
		return RuleSnapshot{}, fmt.Errorf("failed to get rule snapshot: %w", err)
	}
	ans := RuleSnapshot{RiskFactors: []string{}}
	if score.Valid {
		ans.RiskScore = int(score.Int64)
	}
	if cost.Valid {
		ans.AttritionCost = cost.Float64
	}
	if factors.Valid && factors.String != "" {
		if err := json.Unmarshal([]byte(factors.String), &ans.RiskFactors); err != nil {
			return RuleSnapshot{}, fmt.Errorf("failed to decode stored risk factors: %w", err)
		}
	}
	return ans, nil
}

func (database *Database) Close() error {
	if database == nil || database.db == nil {
		return nil
	}
	return database.db.Close()
}

func NewDatabase(path string) (*Database, error) {
	dbConn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open employees database: %w", err)
	}
	return &Database{
		db: dbConn,
	}, nil
}
