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
	"context"
	"errors"
	"time"

	"github.com/czcorpus/attrisim/eval/nn"
	"github.com/czcorpus/attrisim/eval/rf"
)

var (
	ErrNoSuchModel    = errors.New("no such model")
	ErrNoTrainingData = errors.New("no data to train on")
	ErrUntrainedModel = errors.New("model not trained")
)

// ModelSource describes where the live model comes from
type ModelSource string

const (
	SourceTrained ModelSource = "trained"
	SourceLoaded  ModelSource = "loaded"
	SourceNone    ModelSource = "none"
)

// MLModel is a binary classifier over feature vectors produced
// by feats.ExtractFeatures. The concrete algorithm is hidden behind
// the interface so the rule evaluator and the reconciler never
// depend on it.
type MLModel interface {

	// Train fits the model from scratch. Previous state (if any)
	// is discarded.
	Train(ctx context.Context, x [][]float64, y []int) error

	// PredictProba returns the probability of the high-risk class
	// for each row of x, in the same order.
	PredictProba(x [][]float64) []float64

	IsTrained() bool

	// Marshal serializes the fitted model into an opaque artifact
	Marshal() ([]byte, error)

	GetInfo() string
}

// ModelFactory creates fresh untrained models
type ModelFactory func() MLModel

// ModelLoader restores a model from bytes produced by MLModel.Marshal
type ModelLoader func(data []byte) (MLModel, error)

// RFFactory returns a factory of Random Forest models with numTrees trees
func RFFactory(numTrees int) ModelFactory {
	return func() MLModel {
		return rf.NewModel(numTrees)
	}
}

func LoadRF(data []byte) (MLModel, error) {
	return rf.Unmarshal(data)
}

func NNFactory() MLModel {
	return nn.NewModel()
}

func LoadNN(data []byte) (MLModel, error) {
	return nn.Unmarshal(data)
}

// GetModelType returns a model factory and a matching loader
// for a configured model type ("rf" or "nn").
func GetModelType(modelType string, numTrees int) (ModelFactory, ModelLoader, error) {
	switch modelType {
	case "rf", "":
		return RFFactory(numTrees), LoadRF, nil
	case "nn":
		return NNFactory, LoadNN, nil
	default:
		return nil, nil, ErrNoSuchModel
	}
}

// Status describes the outcome of a training (or reloading) of a model.
type Status struct {
	Source      ModelSource    `json:"source"`
	Message     string         `json:"message"`
	ModelInfo   string         `json:"model_info"`
	NumRecords  int            `json:"num_records,omitempty"`
	NumPositive int            `json:"num_positive,omitempty"`
	Agreement   *PrecAndRecall `json:"agreement,omitempty"`
	TrainedAt   *time.Time     `json:"trained_at,omitempty"`

	// Disagreements contains the worst cases where the fitted model
	// contradicts the rule labels (only for freshly trained models)
	Disagreements []Disagreement `json:"disagreements,omitempty"`
}

// IsLive tells whether the status describes a fitted model
func (st Status) IsLive() bool {
	return st.Source == SourceTrained || st.Source == SourceLoaded
}
