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

package rf

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/czcorpus/attrisim/eval/feats"
	randomforest "github.com/malaschitz/randomForest"
	"github.com/rs/zerolog/log"
)

const (
	// riskClass is the index of the "high risk" class in forest votes
	riskClass = 1

	DfltNumTrees = 100
)

type jsonizedRFModel struct {
	Forest       json.RawMessage `json:"forest"`
	NumTrees     int             `json:"numTrees"`
	FeatureNames []string        `json:"featureNames"`
	Comment      string          `json:"comment"`
}

// Model wraps a Random Forest classifier producing the probability
// of the high-risk class (i.e. the share of trees voting for it).
type Model struct {
	Forest   *randomforest.Forest `json:"forest"`
	NumTrees int                  `json:"numTrees"`
	Comment  string               `json:"comment"`
	trained  bool
}

// NewModel creates a new untrained Random Forest model
func NewModel(numTrees int) *Model {
	return &Model{
		Forest:   &randomforest.Forest{},
		NumTrees: numTrees,
	}
}

func (m *Model) IsTrained() bool {
	return m.trained
}

func (m *Model) GetInfo() string {
	return fmt.Sprintf("RF model, num. trees: %d", m.NumTrees)
}

// Train fits the forest. Each row of x must be a feature vector
// as produced by feats.ExtractFeatures and y contains 0/1 labels.
// The forest is replaced as a whole, there is no incremental fitting.
// The trees are grown concurrently from the global random source, so
// two fits over the same data are not bit-identical. Reproducible
// predictions come from reloading the serialized model.
func (m *Model) Train(ctx context.Context, x [][]float64, y []int) error {
	if len(x) == 0 {
		return fmt.Errorf("no training data provided")
	}
	if len(x) != len(y) {
		return fmt.Errorf("failed to train RF model - got %d feature rows and %d labels", len(x), len(y))
	}
	if m.NumTrees <= 0 {
		return fmt.Errorf("failed to train RF model - invalid value of NumTrees")
	}
	var numPositive int
	for i, label := range y {
		if i%100 == 0 && ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if len(x[i]) != feats.NumFeatures {
			return fmt.Errorf("failed to train RF model - invalid feature vector length %d", len(x[i]))
		}
		numPositive += label
	}
	log.Debug().
		Int("numPositive", numPositive).
		Int("dataSize", len(x)).
		Msg("prepared training vectors")

	forest := &randomforest.Forest{
		Data: randomforest.ForestData{
			X:     x,
			Class: y,
		},
	}
	forest.Train(m.NumTrees)
	if n := zeroNonFinite(reflect.ValueOf(forest)); n > 0 {
		log.Debug().Int("numValues", n).Msg("replaced non-finite values in the trained forest")
	}
	m.Forest = forest
	m.trained = true
	return nil
}

// PredictProba returns the high-risk probability for each row of x.
// A forest trained on data without any positive example knows just one
// class and always answers 0.
func (m *Model) PredictProba(x [][]float64) []float64 {
	ans := make([]float64, len(x))
	if !m.trained {
		return ans
	}
	for i, row := range x {
		votes := m.Forest.Vote(row)
		if len(votes) > riskClass {
			ans[i] = votes[riskClass]
		}
	}
	return ans
}

// Marshal serializes the model into a gzipped JSON document
func (m *Model) Marshal() ([]byte, error) {
	if !m.trained {
		return nil, fmt.Errorf("failed to serialize RF model - model not trained")
	}
	zeroNonFinite(reflect.ValueOf(m.Forest))
	tmpModel := jsonizedRFModel{
		NumTrees:     m.NumTrees,
		FeatureNames: feats.FeatureNames[:],
		Comment:      m.Comment,
	}
	forestBytes, err := json.Marshal(m.Forest)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize RF model: %w", err)
	}
	tmpModel.Forest = forestBytes
	data, err := json.Marshal(tmpModel)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize RF model: %w", err)
	}
	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)
	if _, err := gzWriter.Write(data); err != nil {
		return nil, fmt.Errorf("failed to serialize RF model: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to serialize RF model: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal restores a model serialized by Marshal. Models built for
// a different feature vector are rejected.
func Unmarshal(data []byte) (*Model, error) {
	gzReader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load RF model: %w", err)
	}
	defer gzReader.Close()
	rawData, err := io.ReadAll(gzReader)
	if err != nil {
		return nil, fmt.Errorf("failed to load RF model: %w", err)
	}

	var tmpModel jsonizedRFModel
	if err := json.Unmarshal(rawData, &tmpModel); err != nil {
		return nil, fmt.Errorf("failed to load RF model: %w", err)
	}
	if len(tmpModel.FeatureNames) != feats.NumFeatures {
		return nil, fmt.Errorf("failed to load RF model - incompatible feature vector")
	}
	for i, name := range tmpModel.FeatureNames {
		if feats.FeatureNames[i] != name {
			return nil, fmt.Errorf("failed to load RF model - incompatible feature %s at position %d", name, i)
		}
	}

	var forest randomforest.Forest
	if err := json.Unmarshal(tmpModel.Forest, &forest); err != nil {
		return nil, fmt.Errorf("failed to load RF model: %w", err)
	}
	if forest.NTrees == 0 {
		return nil, fmt.Errorf("failed to load RF model - the forest contains no trees")
	}
	return &Model{
		Forest:   &forest,
		NumTrees: forest.NTrees,
		Comment:  tmpModel.Comment,
		trained:  true,
	}, nil
}

// zeroNonFinite replaces NaN and infinite values in all the exported
// float fields reachable from v with zero and returns the number
// of replaced values. Small training sets leave NaN in tree validation
// scores and feature importances which JSON cannot represent.
func zeroNonFinite(v reflect.Value) int {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return 0
		}
		return zeroNonFinite(v.Elem())
	case reflect.Struct:
		var n int
		tp := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if tp.Field(i).IsExported() {
				n += zeroNonFinite(v.Field(i))
			}
		}
		return n
	case reflect.Slice, reflect.Array:
		var n int
		for i := 0; i < v.Len(); i++ {
			n += zeroNonFinite(v.Index(i))
		}
		return n
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if (math.IsNaN(f) || math.IsInf(f, 0)) && v.CanSet() {
			v.SetFloat(0)
			return 1
		}
	}
	return 0
}
