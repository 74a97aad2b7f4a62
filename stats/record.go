package stats

import "github.com/czcorpus/attrisim/risk"

// RuleSnapshot is a rule evaluation stored along with an imported
// employee. It is kept for reviewing purposes only, the engine always
// evaluates the rules again with the thresholds it is asked to use.
type RuleSnapshot struct {
	RiskScore     int      `json:"risk_score"`
	RiskFactors   []string `json:"risk_factors"`
	AttritionCost float64  `json:"attrition_cost"`
}

// EmployeeRow is an employee record as written to the database
type EmployeeRow struct {
	risk.EmployeeRecord

	Snapshot RuleSnapshot
}
