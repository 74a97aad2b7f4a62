// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
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

package risk

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	WeightAbsenteeism = 30
	WeightPayParity   = 40
	WeightBurnout     = 20
	WeightGhosting    = 50

	MaxRiskScore = 100

	// payParityMinPerformance - only strong performers are considered
	// a flight risk when underpaid
	payParityMinPerformance = 7

	burnoutMinLeavesLeft = 15
	ghostingMaxHikePct   = 30

	GhostingFactorLabel = "Ghosting Risk (Notice > 60d)"
)

// Assessment is a result of the rule evaluation of a single employee.
// RiskFactors follow the order in which rules are evaluated and
// the slice is empty (never nil) for safe employees.
type Assessment struct {
	EmployeeID  int      `json:"id"`
	RiskScore   int      `json:"risk_score"`
	RiskFactors []string `json:"risk_factors"`
}

// IsSafe reports whether no rule has been triggered.
func (a Assessment) IsSafe() bool {
	return a.RiskScore == 0
}

// Evaluate applies all the rules to an employee. The function is
// deterministic and the only possible error is a violated record
// precondition (ErrPreconditionViolation).
func Evaluate(emp EmployeeRecord, conf ThresholdConfig) (Assessment, error) {
	if err := emp.Validate(); err != nil {
		return Assessment{}, err
	}
	ans := Assessment{
		EmployeeID:  emp.ID,
		RiskFactors: make([]string, 0, 4),
	}
	var total int

	bradford := BradfordFactor(emp.AbsenceSpells, emp.TotalAbsentDays)
	if bradford > conf.BradfordTrigger {
		total += WeightAbsenteeism
		ans.RiskFactors = append(ans.RiskFactors, fmt.Sprintf("Absenteeism (BF Score: %d)", bradford))
	}

	compa := CompaRatio(emp.Salary, emp.MarketSalary)
	if emp.PerformanceScore > payParityMinPerformance && compa < conf.MarketCompaRatio {
		total += WeightPayParity
		ans.RiskFactors = append(
			ans.RiskFactors, fmt.Sprintf("Flight Risk (Underpaid: %d%%)", int(compa*100)))
	}

	if emp.WorkHours > conf.BurnoutHours && emp.LeavesLeft > burnoutMinLeavesLeft {
		total += WeightBurnout
		ans.RiskFactors = append(
			ans.RiskFactors,
			fmt.Sprintf("Burnout (Hrs: %s)", formatHours(emp.WorkHours)),
		)
	}

	if emp.NoticePeriodDays > conf.NoticePeriodLimit && emp.HikeOfferedPct < ghostingMaxHikePct {
		total += WeightGhosting
		ans.RiskFactors = append(ans.RiskFactors, GhostingFactorLabel)
	}

	ans.RiskScore = min(total, MaxRiskScore)
	return ans, nil
}

// formatHours writes the shortest exact decimal form, keeping
// at least one fractional digit (70 -> "70.0", 62.25 -> "62.25").
func formatHours(v float64) string {
	ans := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(ans, ".") {
		ans += ".0"
	}
	return ans
}

// EvaluateAll scores all the records in their original order.
// The first invalid record stops the evaluation.
func EvaluateAll(emps []EmployeeRecord, conf ThresholdConfig) ([]Assessment, error) {
	ans := make([]Assessment, len(emps))
	for i, emp := range emps {
		a, err := Evaluate(emp, conf)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate employees: %w", err)
		}
		ans[i] = a
	}
	return ans, nil
}
