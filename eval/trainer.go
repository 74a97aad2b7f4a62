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
	"fmt"
	"time"

	"github.com/czcorpus/attrisim/eval/feats"
	"github.com/czcorpus/attrisim/eval/rf"
	"github.com/czcorpus/attrisim/eval/zero"
	"github.com/czcorpus/attrisim/index"
	"github.com/czcorpus/attrisim/metrics"
	"github.com/czcorpus/attrisim/risk"
	"github.com/rs/zerolog/log"
)

const (
	DfltArtifactKey = "attrition_model"

	maxReportedDisagreements = 10
)

// ArtifactStore is a key-addressed store of serialized models.
// LoadArtifact must return index.ErrArtifactNotFound for missing
// keys and index.ErrArtifactCorrupt for undecodable values.
type ArtifactStore interface {
	SaveArtifact(key string, art index.Artifact) error
	LoadArtifact(key string) (index.Artifact, error)
}

// Trainer fits classifiers on rule derived labels and takes care
// of persisting them.
type Trainer struct {
	store       ArtifactStore
	artifactKey string

	// labelConf are thresholds used to derive training labels
	labelConf risk.ThresholdConfig

	newModel  ModelFactory
	loadModel ModelLoader
	metrics   *metrics.Manager
}

// TrainerOption configures a Trainer
type TrainerOption func(*Trainer)

// WithModel replaces the default Random Forest with another algorithm
func WithModel(factory ModelFactory, loader ModelLoader) TrainerOption {
	return func(t *Trainer) {
		t.newModel = factory
		t.loadModel = loader
	}
}

func WithMetrics(m *metrics.Manager) TrainerOption {
	return func(t *Trainer) {
		t.metrics = m
	}
}

func WithArtifactKey(key string) TrainerOption {
	return func(t *Trainer) {
		if key != "" {
			t.artifactKey = key
		}
	}
}

func NewTrainer(store ArtifactStore, labelConf risk.ThresholdConfig, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		store:       store,
		artifactKey: DfltArtifactKey,
		labelConf:   labelConf,
		newModel:    RFFactory(rf.DfltNumTrees),
		loadModel:   LoadRF,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train fits a new model over all the records and writes it to
// the artifact store. For an empty record collection, a zero model
// is returned together with a diagnostic status (and no error).
// An error is returned for invalid records, failed fitting and
// for a failed artifact write. In such case, the returned model is nil.
func (t *Trainer) Train(ctx context.Context, records []risk.EmployeeRecord) (MLModel, Status, error) {
	if len(records) == 0 {
		log.Warn().Msg("no employee records available, using zero model")
		t.metrics.RecordModelInstall(string(SourceNone), false)
		return &zero.Model{Reason: ErrNoTrainingData.Error()}, Status{
			Source:  SourceNone,
			Message: ErrNoTrainingData.Error(),
		}, nil
	}
	examples, err := feats.NewTrainingExamples(records, t.labelConf)
	if err != nil {
		return nil, Status{}, fmt.Errorf("failed to prepare training data: %w", err)
	}
	x, y := feats.Split(examples)
	var numPositive int
	for _, label := range y {
		numPositive += label
	}
	log.Info().
		Int("numRecords", len(records)).
		Int("numPositive", numPositive).
		Msg("training attrition model")

	model := t.newModel()
	t0 := time.Now()
	if err := model.Train(ctx, x, y); err != nil {
		return nil, Status{}, fmt.Errorf("failed to train model: %w", err)
	}
	t.metrics.RecordTraining(time.Since(t0))

	probs := model.PredictProba(x)
	agreement := Agreement(probs, y)
	ids := make([]int, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	disagreements := FindDisagreements(ids, probs, y)
	if len(disagreements) > maxReportedDisagreements {
		disagreements = disagreements[:maxReportedDisagreements]
	}
	log.Info().
		Float64("precision", agreement.Precision).
		Float64("recall", agreement.Recall).
		Dur("duration", time.Since(t0)).
		Msg("model fitted")

	data, err := model.Marshal()
	if err != nil {
		t.metrics.RecordArtifactFailure("encode")
		return nil, Status{}, fmt.Errorf("failed to serialize model: %w", err)
	}
	trainedAt := time.Now()
	err = t.store.SaveArtifact(
		t.artifactKey,
		index.Artifact{Data: data, CreatedAt: trainedAt, Info: model.GetInfo()},
	)
	if err != nil {
		t.metrics.RecordArtifactFailure("save")
		return nil, Status{}, fmt.Errorf("failed to store model: %w", err)
	}
	log.Info().
		Str("key", t.artifactKey).
		Int("size", len(data)).
		Msg("model artifact saved")
	t.metrics.RecordModelInstall(string(SourceTrained), true)

	return model, Status{
		Source:        SourceTrained,
		Message:       "model trained",
		ModelInfo:     model.GetInfo(),
		NumRecords:    len(records),
		NumPositive:   numPositive,
		Agreement:     &agreement,
		TrainedAt:     &trainedAt,
		Disagreements: disagreements,
	}, nil
}

// LoadOrTrain returns a stored model if one is available and
// can be decoded. Otherwise (missing or corrupt artifact) it trains
// a new one. Artifact problems are only logged.
func (t *Trainer) LoadOrTrain(ctx context.Context, records []risk.EmployeeRecord) (MLModel, Status, error) {
	art, err := t.store.LoadArtifact(t.artifactKey)
	if err == nil {
		model, err := t.loadModel(art.Data)
		if err == nil {
			log.Info().
				Str("key", t.artifactKey).
				Time("createdAt", art.CreatedAt).
				Msg("loaded stored model")
			t.metrics.RecordModelInstall(string(SourceLoaded), model.IsTrained())
			createdAt := art.CreatedAt
			return model, Status{
				Source:    SourceLoaded,
				Message:   "model loaded",
				ModelInfo: model.GetInfo(),
				TrainedAt: &createdAt,
			}, nil
		}
		log.Warn().Err(err).Str("key", t.artifactKey).Msg("stored model cannot be decoded, going to retrain")
		t.metrics.RecordArtifactFailure("decode")

	} else if errors.Is(err, index.ErrArtifactNotFound) {
		log.Info().Str("key", t.artifactKey).Msg("no stored model found, going to train a new one")

	} else {
		log.Warn().Err(err).Str("key", t.artifactKey).Msg("failed to load stored model, going to retrain")
		t.metrics.RecordArtifactFailure("load")
	}
	return t.Train(ctx, records)
}
