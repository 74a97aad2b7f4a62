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

package prediction

import (
	"slices"

	"github.com/czcorpus/attrisim/eval"
	"github.com/czcorpus/attrisim/eval/modutils"
	"github.com/czcorpus/attrisim/risk"
)

type Verdict string

const (
	VerdictCritical   Verdict = "Critical"
	VerdictMonitoring Verdict = "Monitoring"

	// CriticalRuleScore and CriticalProbability must both be exceeded
	// for an employee to be considered critical
	CriticalRuleScore   = 60
	CriticalProbability = 0.6

	DfltSalaryUnit           = 100000.0
	DfltReplacementCostRatio = 0.2
)

// ClassifyVerdict combines both signals. Both of them must agree
// on a high risk, otherwise the employee is just monitored.
func ClassifyVerdict(ruleScore int, mlProbability float64) Verdict {
	if ruleScore > CriticalRuleScore && mlProbability > CriticalProbability {
		return VerdictCritical
	}
	return VerdictMonitoring
}

// HybridResult is a per-employee merge of the rule evaluation
// and the classifier output.
type HybridResult struct {
	EmployeeID        int      `json:"id" csv:"id"`
	Name              string   `json:"name" csv:"name"`
	Department        string   `json:"department,omitempty" csv:"department"`
	RuleRiskScore     int      `json:"rule_risk_score" csv:"rule_risk_score"`
	MLRiskProbability float64  `json:"ml_risk_probability" csv:"ml_risk_probability"`
	Verdict           Verdict  `json:"verdict" csv:"verdict"`
	RiskFactors       []string `json:"risk_factors" csv:"-"`
	AttritionCost     float64  `json:"attrition_cost" csv:"attrition_cost"`
}

// CostModel estimates the cost of replacing an employee
type CostModel struct {

	// SalaryUnit converts the salary as stored in records into
	// the currency unit (e.g. 100000 for salaries in "lakhs per annum")
	SalaryUnit float64

	// ReplacementCostRatio is a share of the annual salary needed
	// to replace the employee
	ReplacementCostRatio float64
}

func DefaultCostModel() CostModel {
	return CostModel{
		SalaryUnit:           DfltSalaryUnit,
		ReplacementCostRatio: DfltReplacementCostRatio,
	}
}

func (cm CostModel) AttritionCost(emp risk.EmployeeRecord) float64 {
	return modutils.RoundTo(emp.Salary*cm.SalaryUnit*cm.ReplacementCostRatio, 2)
}

// Reconciler merges rule scores and classifier probabilities
type Reconciler struct {
	Cost CostModel
}

func (r Reconciler) merge(emp risk.EmployeeRecord, a risk.Assessment, prob float64) HybridResult {
	return HybridResult{
		EmployeeID:        emp.ID,
		Name:              emp.Name,
		Department:        emp.Department,
		RuleRiskScore:     a.RiskScore,
		MLRiskProbability: prob,
		Verdict:           ClassifyVerdict(a.RiskScore, prob),
		RiskFactors:       a.RiskFactors,
		AttritionCost:     r.Cost.AttritionCost(emp),
	}
}

// Reconcile evaluates a single employee with the rules and the model
func (r Reconciler) Reconcile(emp risk.EmployeeRecord, conf risk.ThresholdConfig, model eval.MLModel) (HybridResult, error) {
	a, err := risk.Evaluate(emp, conf)
	if err != nil {
		return HybridResult{}, err
	}
	prob, _ := eval.PredictOne(model, emp)
	return r.merge(emp, a, prob), nil
}

// ReconcileAll evaluates all the employees, calling the model only once
// for the whole collection. The result is sorted by the rule score
// (descending), employees with the same score keep their input order.
func (r Reconciler) ReconcileAll(emps []risk.EmployeeRecord, conf risk.ThresholdConfig, model eval.MLModel) ([]HybridResult, error) {
	assessments, err := risk.EvaluateAll(emps, conf)
	if err != nil {
		return []HybridResult{}, err
	}
	probs, _ := eval.PredictBatch(model, emps)
	ans := make([]HybridResult, len(emps))
	for i, emp := range emps {
		ans[i] = r.merge(emp, assessments[i], probs[i])
	}
	SortByRuleScore(ans)
	return ans, nil
}

// SortByRuleScore performs a stable descending sort by RuleRiskScore
func SortByRuleScore(results []HybridResult) {
	slices.SortStableFunc(results, func(v1, v2 HybridResult) int {
		return v2.RuleRiskScore - v1.RuleRiskScore
	})
}
