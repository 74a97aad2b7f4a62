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

package modutils

import (
	"fmt"
	"math"
)

// RoundTo rounds half away from zero to the given number of decimal places.
func RoundTo(value float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(value*p) / p
}

// NormalizeProbability clamps v to [0, 1] and rounds it to two
// decimal places. NaN is treated as zero.
func NormalizeProbability(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return RoundTo(v, 2)
}

// FormatRoughAmount formats larger money amounts in a compact way
// (e.g. for CLI listings).
func FormatRoughAmount(value float64) string {
	if value < 0 {
		return "-" + FormatRoughAmount(-value)
	}

	if value >= 1000000000 { // 1 billion or more
		billions := value / 1000000000.0
		return fmt.Sprintf("%.1fG", billions)
	}

	if value >= 1000000 { // 1 million or more
		millions := value / 1000000.0
		return fmt.Sprintf("%.1fM", millions)
	}

	if value >= 1000 {
		return fmt.Sprintf("%.1fk", value/1000.0)
	}
	return fmt.Sprintf("%.0f", value)
}
