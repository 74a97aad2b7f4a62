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

package feats

import (
	"testing"

	"github.com/czcorpus/attrisim/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFeaturesOrder(t *testing.T) {
	emp := risk.EmployeeRecord{
		Salary:           12.5,
		MarketSalary:     14,
		AbsenceSpells:    2,
		TotalAbsentDays:  5,
		WorkHours:        48.5,
		LeavesLeft:       11,
		NoticePeriodDays: 60,
		HikeOfferedPct:   17.5,
		PerformanceScore: 8,
	}
	assert.Equal(
		t,
		[]float64{12.5, 2, 5, 48.5, 11, 60, 17.5, 8},
		ExtractFeatures(emp),
	)
	assert.Len(t, FeatureNames, len(ExtractFeatures(emp)))
}

func TestExtractMatrixMatchesRows(t *testing.T) {
	emps := []risk.EmployeeRecord{
		{Salary: 1, MarketSalary: 1, PerformanceScore: 1},
		{Salary: 2, MarketSalary: 1, PerformanceScore: 2, WorkHours: 41},
		{Salary: 3, MarketSalary: 1, PerformanceScore: 3, LeavesLeft: 7},
	}
	m := ExtractMatrix(emps)
	require.Len(t, m, 3)
	for i, emp := range emps {
		assert.Equal(t, ExtractFeatures(emp), m[i])
		assert.Len(t, m[i], NumFeatures)
		assert.Equal(t, NumFeatures, cap(m[i]))
	}
	assert.Empty(t, ExtractMatrix(nil))
}

func TestNewTrainingExamples(t *testing.T) {
	emps := []risk.EmployeeRecord{
		{ID: 1, Salary: 20, MarketSalary: 20, PerformanceScore: 5, WorkHours: 40},
		{
			ID: 2, Salary: 10, MarketSalary: 20, PerformanceScore: 9,
			NoticePeriodDays: 90, HikeOfferedPct: 5, WorkHours: 40,
		},
	}
	examples, err := NewTrainingExamples(emps, risk.DefaultThresholds())
	require.NoError(t, err)
	x, y := Split(examples)
	assert.Equal(t, []int{0, 1}, y)
	assert.Equal(t, ExtractFeatures(emps[1]), x[1])

	emps = append(emps, risk.EmployeeRecord{ID: 3})
	_, err = NewTrainingExamples(emps, risk.DefaultThresholds())
	assert.ErrorIs(t, err, risk.ErrPreconditionViolation)
}
