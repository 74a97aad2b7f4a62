package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/czcorpus/attrisim/cnf"
	"github.com/czcorpus/attrisim/eval"
	"github.com/czcorpus/attrisim/index"
	"github.com/czcorpus/attrisim/metrics"
	"github.com/czcorpus/attrisim/prediction"
	"github.com/czcorpus/attrisim/risk"
	"github.com/czcorpus/attrisim/stats"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmployee(id int, critical bool) stats.EmployeeRow {
	emp := risk.EmployeeRecord{
		ID:               id,
		Name:             fmt.Sprintf("Person %d", id),
		Department:       "Engineering",
		Salary:           20 + float64(id%5),
		MarketSalary:     21,
		PerformanceScore: 5,
		WorkHours:        40,
		LeavesLeft:       5,
		NoticePeriodDays: 30,
		HikeOfferedPct:   15,
	}
	if critical {
		emp.Department = "Sales"
		emp.Salary = 8 + float64(id%4)
		emp.MarketSalary = 20
		emp.PerformanceScore = 9
		emp.NoticePeriodDays = 90
		emp.HikeOfferedPct = 5
	}
	snapshot := stats.RuleSnapshot{RiskFactors: []string{}}
	if critical {
		snapshot = stats.RuleSnapshot{RiskScore: 90, RiskFactors: []string{"Flight Risk", "Ghosting"}}
	}
	return stats.EmployeeRow{EmployeeRecord: emp, Snapshot: snapshot}
}

type testEnv struct {
	router  *gin.Engine
	engine  *prediction.Engine
	metrics *metrics.Manager
}

func newTestEnv(t *testing.T, train bool) testEnv {
	gin.SetMode(gin.TestMode)
	db, err := stats.NewDatabase(filepath.Join(t.TempDir(), "employees.sqlite"))
	require.NoError(t, err)
	require.NoError(t, db.Init())
	t.Cleanup(func() { db.Close() })
	rows := make([]stats.EmployeeRow, 0, 40)
	for i := 0; i < 20; i++ {
		rows = append(rows, testEmployee(1000+2*i, false), testEmployee(1001+2*i, true))
	}
	require.NoError(t, db.ImportEmployees(rows, true))

	store, err := index.OpenInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	conf := &cnf.Conf{EmployeesDBPath: "employees.sqlite", CorsAllowedOrigins: []string{"http://localhost:3000"}}
	require.NoError(t, cnf.ValidateAndDefaults(conf))

	mm := metrics.NewManager()
	trainer := eval.NewTrainer(
		store,
		*conf.LabelThresholds,
		eval.WithModel(eval.RFFactory(20), eval.LoadRF),
		eval.WithMetrics(mm),
	)
	engine := prediction.NewEngine(
		db,
		trainer,
		prediction.WithHistory(db),
		prediction.WithMetrics(mm),
		prediction.WithCostModel(conf.CostModel()),
	)
	if train {
		_, err := engine.RetrainFromSource(context.Background())
		require.NoError(t, err)
	}
	api := &apiServer{
		conf:    conf,
		engine:  engine,
		db:      db,
		metrics: mm,
		version: VersionInfo{Version: "0.1.0"},
	}
	return testEnv{router: api.newRouter(), engine: engine, metrics: mm}
}

func (env testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Online", resp.Status)
}

func TestListEmployees(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(http.MethodGet, "/api/employees?department=Sales", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp []risk.EmployeeRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 20)
	for _, emp := range resp {
		assert.Equal(t, "Sales", emp.Department)
	}

	w = env.do(http.MethodGet, "/api/employees?minRuleScore=abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestEmployeeDetail(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(http.MethodGet, "/api/employees/1003", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp employeeDetailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1003, resp.Employee.ID)
	assert.Equal(t, 90, resp.Snapshot.RiskScore)
	assert.Len(t, resp.Snapshot.RiskFactors, 2)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/employees/5", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(http.MethodGet, "/api/employees/abc", "").Code)
}

func TestListByStoredScore(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(http.MethodGet, "/api/employees?minRuleScore=61", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp []risk.EmployeeRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 20)
}

func TestScoreWithAndWithoutBody(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(http.MethodPost, "/api/score", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp scoreResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 40, resp.Count)
	assert.Equal(t, 90, resp.Results[0].RiskScore)
	assert.Equal(t, 0, resp.Results[39].RiskScore)

	// a notice period limit above all the records disables the ghosting rule
	w = env.do(http.MethodPost, "/api/score", `{"notice_period_limit": 120}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 40, resp.Results[0].RiskScore)

	w = env.do(http.MethodPost, "/api/score", `{"notice_period_limit": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimulate(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(http.MethodPost, "/api/simulate", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp simulateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, eval.SourceTrained, resp.ModelSource)
	require.Len(t, resp.Results, 40)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].RuleRiskScore, resp.Results[i].RuleRiskScore)
	}
	assert.Greater(t, resp.Results[0].AttritionCost, 0.0)
}

func TestPredictML(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(http.MethodPost, "/api/predict-ml/1001", "")
	require.Equal(t, http.StatusOK, w.Code)
	var byPath prediction.HybridResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byPath))
	assert.Equal(t, 1001, byPath.EmployeeID)
	assert.Equal(t, 90, byPath.RuleRiskScore)

	w = env.do(http.MethodPost, "/api/predict-ml?emp_id=1001", "")
	require.Equal(t, http.StatusOK, w.Code)
	var byQuery prediction.HybridResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &byQuery))
	assert.Equal(t, byPath, byQuery)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/predict-ml/7", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/predict-ml", "").Code)
}

func TestMalformedIntegerArguments(t *testing.T) {
	env := newTestEnv(t, false)
	for _, path := range []string{
		"/api/predict-ml/x7",
		"/api/predict-ml?emp_id=x7",
		"/api/employees/x7",
		"/api/employees?minRuleScore=x7",
		"/api/model?historyLimit=x7",
	} {
		method := http.MethodPost
		if strings.HasPrefix(path, "/api/employees") || strings.HasPrefix(path, "/api/model") {
			method = http.MethodGet
		}
		assert.Equal(t, http.StatusUnprocessableEntity, env.do(method, path, "").Code, path)
	}
}

func TestRetrainAndModelInfo(t *testing.T) {
	env := newTestEnv(t, false)
	assert.False(t, env.engine.ModelStatus().IsLive())

	w := env.do(http.MethodPost, "/api/retrain", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status eval.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, eval.SourceTrained, status.Source)
	assert.Equal(t, 40, status.NumRecords)

	w = env.do(http.MethodGet, "/api/model", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info modelInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, eval.SourceTrained, info.Live.Source)
	require.Len(t, info.Training, 1)
	assert.Equal(t, "trained", info.Training[0].Source)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, true)
	env.do(http.MethodPost, "/api/simulate", "")
	w := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "attrisim_engine_records_scored_total 40")
}

func TestCors(t *testing.T) {
	env := newTestEnv(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/api/simulate", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://example.com")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, false)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/nothing", "").Code)
}
