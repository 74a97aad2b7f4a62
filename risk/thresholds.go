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

const (
	DfltBradfordTrigger   = 400
	DfltMarketCompaRatio  = 0.8
	DfltBurnoutHours      = 60.0
	DfltNoticePeriodLimit = 60
)

// ThresholdConfig parametrizes a single rule evaluation.
// There is no hidden state - callers always pass the whole
// configuration (see DefaultThresholds for a fallback).
type ThresholdConfig struct {
	BradfordTrigger   int     `json:"bradford_trigger"`
	MarketCompaRatio  float64 `json:"market_compa_ratio"`
	BurnoutHours      float64 `json:"burnout_hours"`
	NoticePeriodLimit int     `json:"notice_period_limit"`
}

func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		BradfordTrigger:   DfltBradfordTrigger,
		MarketCompaRatio:  DfltMarketCompaRatio,
		BurnoutHours:      DfltBurnoutHours,
		NoticePeriodLimit: DfltNoticePeriodLimit,
	}
}
