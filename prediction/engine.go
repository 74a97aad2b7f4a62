// Copyright 2024 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2024 Institute of the Czech National Corpus,
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

package prediction

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/czcorpus/attrisim/eval"
	"github.com/czcorpus/attrisim/metrics"
	"github.com/czcorpus/attrisim/risk"
	"github.com/czcorpus/attrisim/stats"
	"github.com/rs/zerolog/log"
)

// RecordSource provides employee records. GetEmployee must return
// an error wrapping stats.ErrEmployeeNotFound for unknown IDs.
type RecordSource interface {
	GetAllEmployees(ctx context.Context) ([]risk.EmployeeRecord, error)
	GetEmployee(ctx context.Context, id int) (risk.EmployeeRecord, error)
}

// TrainingHistory stores an entry for each model installation
type TrainingHistory interface {
	AddTraining(rec stats.TrainingRecord) (int64, error)
}

// Engine provides all the caller-facing operations. It owns the live
// model handle; all other state is supplied by callers.
type Engine struct {
	records    RecordSource
	trainer    *eval.Trainer
	handle     *eval.ModelHandle
	reconciler Reconciler
	history    TrainingHistory
	metrics    *metrics.Manager
}

// ScoreAll evaluates the rules for all the records. The result is
// sorted by the risk score (descending, stable).
func (eng *Engine) ScoreAll(records []risk.EmployeeRecord, conf risk.ThresholdConfig) ([]risk.Assessment, error) {
	ans, err := risk.EvaluateAll(records, conf)
	if err != nil {
		return []risk.Assessment{}, err
	}
	slices.SortStableFunc(ans, func(v1, v2 risk.Assessment) int {
		return v2.RiskScore - v1.RiskScore
	})
	return ans, nil
}

func (eng *Engine) install(
	ctx context.Context,
	records []risk.EmployeeRecord,
	fn func(ctx context.Context, records []risk.EmployeeRecord) (eval.MLModel, eval.Status, error),
) (eval.Status, error) {
	status, err := eng.handle.Update(func(current eval.MLModel) (eval.MLModel, eval.Status, error) {
		return fn(ctx, records)
	})
	if err != nil {
		log.Error().Err(err).Msg("model not replaced")
		return status, err
	}
	log.Info().
		Str("source", string(status.Source)).
		Str("model", status.ModelInfo).
		Msg("installed new live model")
	eng.recordHistory(status)
	return status, nil
}

func (eng *Engine) recordHistory(status eval.Status) {
	if eng.history == nil {
		return
	}
	rec := stats.TrainingRecord{
		Datetime:    time.Now(),
		Source:      string(status.Source),
		NumRecords:  status.NumRecords,
		NumPositive: status.NumPositive,
		Message:     status.Message,
	}
	if status.Agreement != nil {
		rec.Precision = &status.Agreement.Precision
		rec.Recall = &status.Agreement.Recall
	}
	if _, err := eng.history.AddTraining(rec); err != nil {
		log.Error().Err(err).Msg("failed to store training history")
	}
}

// TrainOrReload installs a stored model if available or trains
// a new one from the records.
func (eng *Engine) TrainOrReload(ctx context.Context, records []risk.EmployeeRecord) (eval.Status, error) {
	return eng.install(ctx, records, eng.trainer.LoadOrTrain)
}

// ForceRetrain always fits a new model. The previous model keeps
// serving requests until the new one is ready.
func (eng *Engine) ForceRetrain(ctx context.Context, records []risk.EmployeeRecord) (eval.Status, error) {
	return eng.install(ctx, records, eng.trainer.Train)
}

// RetrainFromSource is ForceRetrain over all the records
// of the record source.
func (eng *Engine) RetrainFromSource(ctx context.Context) (eval.Status, error) {
	records, err := eng.records.GetAllEmployees(ctx)
	if err != nil {
		return eval.Status{}, fmt.Errorf("failed to retrain model: %w", err)
	}
	return eng.ForceRetrain(ctx, records)
}

// HybridForOne evaluates a single employee from the record source.
func (eng *Engine) HybridForOne(ctx context.Context, employeeID int, conf risk.ThresholdConfig) (HybridResult, error) {
	emp, err := eng.records.GetEmployee(ctx, employeeID)
	if err != nil {
		return HybridResult{}, err
	}
	model := eng.handle.Current()
	ans, err := eng.reconciler.Reconcile(emp, conf, model)
	if err != nil {
		return HybridResult{}, err
	}
	eng.metrics.RecordInference(1, !model.IsTrained())
	eng.metrics.RecordVerdict(string(ans.Verdict))
	return ans, nil
}

// HybridForAll evaluates all the records and returns them sorted
// by the rule score.
func (eng *Engine) HybridForAll(records []risk.EmployeeRecord, conf risk.ThresholdConfig) ([]HybridResult, error) {
	model := eng.handle.Current()
	if !model.IsTrained() {
		log.Warn().Msg("no trained model available, ML probabilities will be zero")
	}
	ans, err := eng.reconciler.ReconcileAll(records, conf, model)
	if err != nil {
		return ans, err
	}
	eng.metrics.RecordInference(len(records), !model.IsTrained())
	for _, item := range ans {
		eng.metrics.RecordVerdict(string(item.Verdict))
	}
	return ans, nil
}

// Records returns the record source the engine works with
func (eng *Engine) Records() RecordSource {
	return eng.records
}

// ModelStatus describes the live model
func (eng *Engine) ModelStatus() eval.Status {
	return eng.handle.Status()
}

type EngineOption func(*Engine)

func WithHistory(h TrainingHistory) EngineOption {
	return func(eng *Engine) {
		eng.history = h
	}
}

func WithMetrics(m *metrics.Manager) EngineOption {
	return func(eng *Engine) {
		eng.metrics = m
	}
}

func WithCostModel(cm CostModel) EngineOption {
	return func(eng *Engine) {
		eng.reconciler.Cost = cm
	}
}

func NewEngine(records RecordSource, trainer *eval.Trainer, opts ...EngineOption) *Engine {
	eng := &Engine{
		records:    records,
		trainer:    trainer,
		handle:     eval.NewModelHandle(),
		reconciler: Reconciler{Cost: DefaultCostModel()},
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}
