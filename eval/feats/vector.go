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
	"github.com/czcorpus/attrisim/risk"
)

// NumFeatures is the length of a feature vector.
const NumFeatures = 8

// FeatureNames lists vector items in their order. The order must
// be the same for training and inference - a stored model is bound
// to it.
var FeatureNames = [NumFeatures]string{
	"salary",
	"absence_spells",
	"total_absent_days",
	"work_hours",
	"leaves_left",
	"notice_period_days",
	"hike_offered_pct",
	"performance_score",
}

// ExtractFeatures creates a feature vector for an employee.
func ExtractFeatures(emp risk.EmployeeRecord) []float64 {
	return []float64{
		emp.Salary,
		float64(emp.AbsenceSpells),
		float64(emp.TotalAbsentDays),
		emp.WorkHours,
		float64(emp.LeavesLeft),
		float64(emp.NoticePeriodDays),
		emp.HikeOfferedPct,
		float64(emp.PerformanceScore),
	}
}

// ExtractMatrix creates a feature matrix with one row per employee,
// rows follow the order of emps. All the rows share one backing array.
func ExtractMatrix(emps []risk.EmployeeRecord) [][]float64 {
	backing := make([]float64, len(emps)*NumFeatures)
	ans := make([][]float64, len(emps))
	for i, emp := range emps {
		row := backing[i*NumFeatures : (i+1)*NumFeatures : (i+1)*NumFeatures]
		copy(row, ExtractFeatures(emp))
		ans[i] = row
	}
	return ans
}

// TrainingExample is a feature vector with a rule-derived label.
// Examples are never stored, they are recreated for each training.
type TrainingExample struct {
	Features []float64
	Label    int
}

// NewTrainingExamples evaluates the rules for each employee and
// attaches the derived label to its feature vector.
func NewTrainingExamples(emps []risk.EmployeeRecord, conf risk.ThresholdConfig) ([]TrainingExample, error) {
	ans := make([]TrainingExample, len(emps))
	for i, emp := range emps {
		a, err := risk.Evaluate(emp, conf)
		if err != nil {
			return nil, err
		}
		ans[i] = TrainingExample{
			Features: ExtractFeatures(emp),
			Label:    risk.DeriveLabel(a),
		}
	}
	return ans, nil
}

// Split returns the examples as a feature matrix and a label vector.
func Split(examples []TrainingExample) ([][]float64, []int) {
	x := make([][]float64, len(examples))
	y := make([]int, len(examples))
	for i, ex := range examples {
		x[i] = ex.Features
		y[i] = ex.Label
	}
	return x, y
}
