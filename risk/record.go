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
	"errors"
	"fmt"
)

// ErrPreconditionViolation is returned for records which cannot
// be scored at all (e.g. a non-positive market salary). Such records
// are never fixed silently.
var ErrPreconditionViolation = errors.New("precondition violation")

// EmployeeRecord is an immutable input of both the rule evaluation
// and the statistical model. Salary and MarketSalary are expected
// to share the same currency unit.
type EmployeeRecord struct {
	ID               int     `json:"id" csv:"id"`
	Name             string  `json:"name" csv:"name"`
	Department       string  `json:"department" csv:"department"`
	Salary           float64 `json:"salary" csv:"salary"`
	MarketSalary     float64 `json:"market_salary" csv:"market_salary"`
	PerformanceScore int     `json:"performance_score" csv:"performance_score"`
	AbsenceSpells    int     `json:"absence_spells" csv:"absence_spells"`
	TotalAbsentDays  int     `json:"total_absent_days" csv:"total_absent_days"`
	WorkHours        float64 `json:"work_hours" csv:"work_hours"`
	LeavesLeft       int     `json:"leaves_left" csv:"leaves_left"`
	NoticePeriodDays int     `json:"notice_period_days" csv:"notice_period_days"`
	HikeOfferedPct   float64 `json:"hike_offered_pct" csv:"hike_offered_pct"`
}

// Validate tests the record invariants. Any failure wraps
// ErrPreconditionViolation.
func (rec EmployeeRecord) Validate() error {
	if rec.MarketSalary <= 0 {
		return fmt.Errorf(
			"%w: employee %d has non-positive market salary %.2f",
			ErrPreconditionViolation, rec.ID, rec.MarketSalary,
		)
	}
	if rec.AbsenceSpells < 0 || rec.TotalAbsentDays < 0 {
		return fmt.Errorf("%w: employee %d has negative absence data", ErrPreconditionViolation, rec.ID)
	}
	if rec.LeavesLeft < 0 || rec.NoticePeriodDays < 0 || rec.HikeOfferedPct < 0 {
		return fmt.Errorf("%w: employee %d has negative leave/notice/hike data", ErrPreconditionViolation, rec.ID)
	}
	return nil
}

// BradfordFactor calculates the absenteeism pattern score S^2 * D
// which penalizes frequent short absences.
func BradfordFactor(spells, days int) int {
	return spells * spells * days
}

// CompaRatio returns salary relative to the market benchmark.
// The caller must ensure marketSalary > 0.
func CompaRatio(salary, marketSalary float64) float64 {
	return salary / marketSalary
}
