// Copyright 2024 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2024 Department of Linguistics,
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

package cnf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/czcorpus/attrisim/dataimport"
	"github.com/czcorpus/attrisim/eval"
	"github.com/czcorpus/attrisim/eval/rf"
	"github.com/czcorpus/attrisim/prediction"
	"github.com/czcorpus/attrisim/risk"
	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/rs/zerolog/log"
)

const (
	dfltServerReadTimeoutSecs  = 10
	dfltServerWriteTimeoutSecs = 30
	dfltListenPort             = 8000
	dfltModelType              = "rf"
)

type Conf struct {
	srcPath                string
	Logging                logging.LoggingConf `json:"logging"`
	ListenAddress          string              `json:"listenAddress"`
	PublicURL              string              `json:"publicUrl"`
	ListenPort             int                 `json:"listenPort"`
	ServerReadTimeoutSecs  int                 `json:"serverReadTimeoutSecs"`
	ServerWriteTimeoutSecs int                 `json:"serverWriteTimeoutSecs"`
	CorsAllowedOrigins     []string            `json:"corsAllowedOrigins"`

	// EmployeesDBPath is a path to the SQLite database with employee records
	EmployeesDBPath string `json:"employeesDbPath"`

	// ModelStorePath is a directory of the Badger database with model artifacts
	ModelStorePath   string `json:"modelStorePath"`
	ModelArtifactKey string `json:"modelArtifactKey"`

	// ModelType is either "rf" (Random Forest) or "nn" (a small neural network)
	ModelType string `json:"modelType"`
	NumTrees  int    `json:"numTrees"`

	// LabelThresholds are used to derive training labels from rules
	LabelThresholds *risk.ThresholdConfig `json:"labelThresholds"`

	// DefaultThresholds are used whenever a request does not provide its own
	DefaultThresholds *risk.ThresholdConfig `json:"defaultThresholds"`

	SalaryUnit           float64 `json:"salaryUnit"`
	ReplacementCostRatio float64 `json:"replacementCostRatio"`

	HRISImport *dataimport.DBConf `json:"hrisImport"`
}

// CostModel returns a cost model based on the configured values
func (conf *Conf) CostModel() prediction.CostModel {
	return prediction.CostModel{
		SalaryUnit:           conf.SalaryUnit,
		ReplacementCostRatio: conf.ReplacementCostRatio,
	}
}

func (conf *Conf) SrcPath() string {
	return conf.srcPath
}

// LoadConfigFile loads a JSON configuration without applying defaults
func LoadConfigFile(path string) (*Conf, error) {
	if path == "" {
		return nil, fmt.Errorf("cannot load config - path not specified")
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	var conf Conf
	conf.srcPath = path
	if err := json.Unmarshal(rawData, &conf); err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	return &conf, nil
}

func LoadConfig(path string) *Conf {
	conf, err := LoadConfigFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	return conf
}

// ValidateAndDefaults sets default values for missing items
// and returns an error for invalid ones.
func ValidateAndDefaults(conf *Conf) error {
	if conf.ListenPort == 0 {
		conf.ListenPort = dfltListenPort
		log.Warn().Int("port", dfltListenPort).Msg("listenPort not specified, using default")
	}
	if conf.ServerReadTimeoutSecs == 0 {
		conf.ServerReadTimeoutSecs = dfltServerReadTimeoutSecs
		log.Warn().Msgf(
			"serverReadTimeoutSecs not specified, using default: %d",
			dfltServerReadTimeoutSecs,
		)
	}
	if conf.ServerWriteTimeoutSecs == 0 {
		conf.ServerWriteTimeoutSecs = dfltServerWriteTimeoutSecs
		log.Warn().Msgf(
			"serverWriteTimeoutSecs not specified, using default: %d",
			dfltServerWriteTimeoutSecs,
		)
	}
	if conf.PublicURL == "" {
		conf.PublicURL = fmt.Sprintf("http://%s:%d", conf.ListenAddress, conf.ListenPort)
		log.Warn().Str("address", conf.PublicURL).Msg("publicUrl not set, using listenAddress")
	}

	if conf.EmployeesDBPath == "" {
		return fmt.Errorf("missing employeesDbPath")
	}
	if conf.ModelStorePath == "" {
		conf.ModelStorePath = filepath.Join(filepath.Dir(conf.EmployeesDBPath), "models")
		log.Warn().Str("path", conf.ModelStorePath).Msg("modelStorePath not set, using a directory next to the employees database")
	}
	if conf.ModelArtifactKey == "" {
		conf.ModelArtifactKey = eval.DfltArtifactKey
		log.Warn().Str("key", conf.ModelArtifactKey).Msg("modelArtifactKey not set, using default")
	}

	if conf.ModelType == "" {
		conf.ModelType = dfltModelType
		log.Warn().Str("modelType", dfltModelType).Msg("modelType not set, using default")
	}
	if _, _, err := eval.GetModelType(conf.ModelType, 1); err != nil {
		return fmt.Errorf("invalid modelType %s: %w", conf.ModelType, err)
	}
	if conf.NumTrees == 0 {
		conf.NumTrees = rf.DfltNumTrees
		log.Warn().Int("numTrees", rf.DfltNumTrees).Msg("numTrees not set, using default")

	} else if conf.NumTrees < 0 {
		return fmt.Errorf("invalid numTrees %d", conf.NumTrees)
	}

	if conf.LabelThresholds == nil {
		dflt := risk.DefaultThresholds()
		conf.LabelThresholds = &dflt
		log.Warn().Any("thresholds", dflt).Msg("labelThresholds not set, using defaults")
	}
	if conf.DefaultThresholds == nil {
		dflt := risk.DefaultThresholds()
		conf.DefaultThresholds = &dflt
		log.Warn().Any("thresholds", dflt).Msg("defaultThresholds not set, using defaults")
	}

	if conf.SalaryUnit == 0 {
		conf.SalaryUnit = prediction.DfltSalaryUnit
		log.Warn().Float64("salaryUnit", conf.SalaryUnit).Msg("salaryUnit not set, using default")

	} else if conf.SalaryUnit < 0 {
		return fmt.Errorf("invalid salaryUnit %.2f", conf.SalaryUnit)
	}
	if conf.ReplacementCostRatio == 0 {
		conf.ReplacementCostRatio = prediction.DfltReplacementCostRatio
		log.Warn().
			Float64("replacementCostRatio", conf.ReplacementCostRatio).
			Msg("replacementCostRatio not set, using default")

	} else if conf.ReplacementCostRatio < 0 {
		return fmt.Errorf("invalid replacementCostRatio %.2f", conf.ReplacementCostRatio)
	}
	return nil
}
