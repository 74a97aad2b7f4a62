package dataimport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `id,name,department,salary,market_salary,performance_score,absence_spells,total_absent_days,work_hours,leaves_left,notice_period_days,hike_offered_pct
1001,Alex Roe,Engineering,12.5,14,8,1,2,45.5,10,30,12
1002,Jordan Doe,Sales,10,0,9,0,0,40,5,30,10
1003,Sam Poe,Sales,9,20,9,3,6,62,20,90,5
`

func TestReadEmployeesCSV(t *testing.T) {
	var c ValidatingCollector
	err := ReadEmployeesCSV(context.Background(), strings.NewReader(testCSV), &c)
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumProcessed)
	assert.Equal(t, 1, c.NumFailed)
	require.Len(t, c.Records, 2)
	assert.Equal(t, 1001, c.Records[0].ID)
	assert.Equal(t, "Alex Roe", c.Records[0].Name)
	assert.Equal(t, 12.5, c.Records[0].Salary)
	assert.Equal(t, 45.5, c.Records[0].WorkHours)
	assert.Equal(t, 1003, c.Records[1].ID)
	assert.Equal(t, 90, c.Records[1].NoticePeriodDays)
}

func TestReadEmployeesJSONL(t *testing.T) {
	data := `{"id": 1, "salary": 10, "market_salary": 20, "performance_score": 9, "work_hours": 40}

this is not JSON
{"id": 2, "salary": 10, "market_salary": -1}
`
	var c ValidatingCollector
	err := ReadEmployeesJSONL(context.Background(), strings.NewReader(data), &c)
	require.NoError(t, err)
	assert.Equal(t, 1, c.NumProcessed)
	assert.Equal(t, 2, c.NumFailed)
	require.Len(t, c.Records, 1)
	assert.Equal(t, 20.0, c.Records[0].MarketSalary)
}

func TestReadEmployeesFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "employees.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0644))
	var c ValidatingCollector
	require.NoError(t, ReadEmployeesFile(context.Background(), csvPath, &c))
	assert.Len(t, c.Records, 2)

	xlsPath := filepath.Join(dir, "employees.xls")
	require.NoError(t, os.WriteFile(xlsPath, []byte("x"), 0644))
	assert.Error(t, ReadEmployeesFile(context.Background(), xlsPath, &c))

	assert.Error(t, ReadEmployeesFile(context.Background(), filepath.Join(dir, "missing.csv"), &c))
}

func TestReadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var c ValidatingCollector
	require.NoError(t, ReadEmployeesCSV(ctx, strings.NewReader(testCSV), &c))
	assert.Empty(t, c.Records)
}

func TestNewHRISSourceInvalidTable(t *testing.T) {
	_, err := NewHRISSource(DBConf{Host: "localhost:3306", TableName: "employees; DROP TABLE x"})
	assert.Error(t, err)

	src, err := NewHRISSource(DBConf{Host: "localhost:3306", User: "hr", Name: "hris"})
	require.NoError(t, err)
	assert.Equal(t, "employees", src.tableName)
	assert.NoError(t, src.Close())
}
