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

// HighRiskScore is the rule score above which an employee is
// labeled as a positive (high risk) training example.
const HighRiskScore = 60

// DeriveLabel converts a rule assessment into a binary training label.
//
// The labels come from the rule engine itself, not from observed
// attrition. The classifier trained on them is a statistical surrogate
// of the rule set which generalizes smoothly between rule boundaries.
// There is no independent ground truth available here.
func DeriveLabel(a Assessment) int {
	if a.RiskScore > HighRiskScore {
		return 1
	}
	return 0
}
