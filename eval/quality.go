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

package eval

import (
	"fmt"
	"math"
	"slices"
)

// DecisionThreshold is the probability above which the classifier
// is considered to agree with a positive (high risk) rule label.
const DecisionThreshold = 0.5

type PrecAndRecall struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	FBeta     float64 `json:"fbeta"`
}

func (pr PrecAndRecall) String() string {
	return fmt.Sprintf("precision: %.2f, recall: %.2f, F1: %.2f", pr.Precision, pr.Recall, pr.FBeta)
}

// Agreement measures how well the classifier reproduces the rule
// derived labels it was trained on. With no positive labels (or no
// positive predictions) the respective value is 0.
func Agreement(probs []float64, labels []int) PrecAndRecall {
	var numTruePositives, numRelevant, numRetrieved int
	for i, p := range probs {
		if i >= len(labels) {
			break
		}
		predicted := p > DecisionThreshold
		if labels[i] == 1 {
			numRelevant++
		}
		if predicted {
			numRetrieved++
			if labels[i] == 1 {
				numTruePositives++
			}
		}
	}
	var ans PrecAndRecall
	if numRetrieved > 0 {
		ans.Precision = float64(numTruePositives) / float64(numRetrieved)
	}
	if numRelevant > 0 {
		ans.Recall = float64(numTruePositives) / float64(numRelevant)
	}
	if ans.Precision+ans.Recall > 0 {
		ans.FBeta = 2 * ans.Precision * ans.Recall / (ans.Precision + ans.Recall)
	}
	return ans
}

// ------------------------

// Disagreement is a record where the classifier and the rule
// label differ.
type Disagreement struct {
	EmployeeID int     `json:"id"`
	MLOutput   float64 `json:"ml_output"`
	Label      int     `json:"label"`

	// Type is either "FP" (model says risky, rules don't)
	// or "FN" (the opposite)
	Type string `json:"type"`
}

func (d Disagreement) AbsErrorSize() float64 {
	return math.Abs(d.MLOutput - DecisionThreshold)
}

// FindDisagreements lists records where the model contradicts
// the rule labels, the most confident mistakes first.
func FindDisagreements(ids []int, probs []float64, labels []int) []Disagreement {
	ans := make([]Disagreement, 0, 10)
	for i, p := range probs {
		if i >= len(labels) || i >= len(ids) {
			break
		}
		predicted := p > DecisionThreshold
		actual := labels[i] == 1
		if predicted == actual {
			continue
		}
		tp := "FN"
		if predicted {
			tp = "FP"
		}
		ans = append(ans, Disagreement{
			EmployeeID: ids[i],
			MLOutput:   p,
			Label:      labels[i],
			Type:       tp,
		})
	}
	slices.SortStableFunc(
		ans,
		func(v1, v2 Disagreement) int {
			if v1.AbsErrorSize() < v2.AbsErrorSize() {
				return 1

			} else if v1.AbsErrorSize() > v2.AbsErrorSize() {
				return -1
			}
			return 0
		},
	)
	return ans
}
