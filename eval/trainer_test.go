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
	"testing"
	"time"

	"github.com/czcorpus/attrisim/index"
	"github.com/czcorpus/attrisim/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleEmployees creates n employees where every second one
// is underpaid and about to ghost (score 90), the rest are safe.
func sampleEmployees(n int) []risk.EmployeeRecord {
	ans := make([]risk.EmployeeRecord, n)
	for i := 0; i < n; i++ {
		d := float64(i % 7)
		if i%2 == 0 {
			ans[i] = risk.EmployeeRecord{
				ID:               1000 + i,
				Salary:           20 + d,
				MarketSalary:     21,
				PerformanceScore: 4,
				WorkHours:        40 + d,
				LeavesLeft:       5,
				NoticePeriodDays: 30,
				HikeOfferedPct:   20 + d,
			}

		} else {
			ans[i] = risk.EmployeeRecord{
				ID:               1000 + i,
				Salary:           8 + d,
				MarketSalary:     20,
				PerformanceScore: 9,
				AbsenceSpells:    3,
				TotalAbsentDays:  10 + i%5,
				WorkHours:        55 + d,
				LeavesLeft:       10,
				NoticePeriodDays: 90,
				HikeOfferedPct:   5,
			}
		}
	}
	return ans
}

type memoryStore struct {
	data    map[string]index.Artifact
	saveErr error
	loadErr error
	saves   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]index.Artifact)}
}

func (ms *memoryStore) SaveArtifact(key string, art index.Artifact) error {
	if ms.saveErr != nil {
		return ms.saveErr
	}
	ms.saves++
	ms.data[key] = art
	return nil
}

func (ms *memoryStore) LoadArtifact(key string) (index.Artifact, error) {
	if ms.loadErr != nil {
		return index.Artifact{}, ms.loadErr
	}
	art, ok := ms.data[key]
	if !ok {
		return index.Artifact{}, index.ErrArtifactNotFound
	}
	return art, nil
}

func newTestTrainer(store ArtifactStore) *Trainer {
	return NewTrainer(store, risk.DefaultThresholds(), WithModel(RFFactory(20), LoadRF))
}

func TestTrainEmptyRecords(t *testing.T) {
	store := newMemoryStore()
	model, status, err := newTestTrainer(store).Train(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, model.IsTrained())
	assert.Equal(t, SourceNone, status.Source)
	assert.Equal(t, ErrNoTrainingData.Error(), status.Message)
	assert.Equal(t, 0, store.saves)

	probs, msg := PredictBatch(model, sampleEmployees(2))
	assert.Equal(t, []float64{0, 0}, probs)
	assert.Equal(t, ErrUntrainedModel.Error(), msg)
}

func TestTrainStoresArtifact(t *testing.T) {
	store := newMemoryStore()
	emps := sampleEmployees(40)
	model, status, err := newTestTrainer(store).Train(context.Background(), emps)
	require.NoError(t, err)
	assert.True(t, model.IsTrained())
	assert.Equal(t, SourceTrained, status.Source)
	assert.Equal(t, 40, status.NumRecords)
	assert.Equal(t, 20, status.NumPositive)
	require.NotNil(t, status.Agreement)
	assert.Greater(t, status.Agreement.Recall, 0.5)
	require.NotNil(t, status.TrainedAt)

	art, ok := store.data[DfltArtifactKey]
	require.True(t, ok)
	assert.NotEmpty(t, art.Data)
	assert.Equal(t, *status.TrainedAt, art.CreatedAt)
}

func TestTrainInvalidRecord(t *testing.T) {
	store := newMemoryStore()
	emps := sampleEmployees(4)
	emps[2].MarketSalary = 0
	_, _, err := newTestTrainer(store).Train(context.Background(), emps)
	assert.ErrorIs(t, err, risk.ErrPreconditionViolation)
	assert.Equal(t, 0, store.saves)
}

func TestTrainSaveFailure(t *testing.T) {
	store := newMemoryStore()
	store.saveErr = errors.New("disk full")
	model, _, err := newTestTrainer(store).Train(context.Background(), sampleEmployees(10))
	assert.Error(t, err)
	assert.Nil(t, model)
}

func TestLoadOrTrainWarmStart(t *testing.T) {
	db, err := index.OpenInMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	emps := sampleEmployees(30)
	trainer := newTestTrainer(db)
	m1, st1, err := trainer.LoadOrTrain(context.Background(), emps)
	require.NoError(t, err)
	assert.Equal(t, SourceTrained, st1.Source)

	m2, st2, err := trainer.LoadOrTrain(context.Background(), emps)
	require.NoError(t, err)
	assert.Equal(t, SourceLoaded, st2.Source)
	m3, _, err := trainer.LoadOrTrain(context.Background(), emps)
	require.NoError(t, err)

	p1, _ := PredictBatch(m1, emps)
	p2, _ := PredictBatch(m2, emps)
	p3, _ := PredictBatch(m3, emps)
	assert.Equal(t, p1, p2)
	assert.Equal(t, p2, p3)
	assert.WithinDuration(t, *st1.TrainedAt, *st2.TrainedAt, time.Millisecond)
}

func TestTrainAndReloadSmallRecordSets(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8} {
		t.Run(fmt.Sprintf("records_%d", n), func(t *testing.T) {
			db, err := index.OpenInMemoryDB()
			require.NoError(t, err)
			defer db.Close()

			emps := sampleEmployees(n)
			trainer := newTestTrainer(db)
			m1, st1, err := trainer.Train(context.Background(), emps)
			require.NoError(t, err)
			assert.Equal(t, SourceTrained, st1.Source)
			assert.True(t, m1.IsTrained())

			m2, st2, err := trainer.LoadOrTrain(context.Background(), emps)
			require.NoError(t, err)
			assert.Equal(t, SourceLoaded, st2.Source)
			p1, _ := PredictBatch(m1, emps)
			p2, _ := PredictBatch(m2, emps)
			assert.Equal(t, p1, p2)
		})
	}
}

func TestLoadOrTrainCorruptArtifact(t *testing.T) {
	db, err := index.OpenInMemoryDB()
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.PutRawArtifact(DfltArtifactKey, []byte("garbage")))

	model, status, err := newTestTrainer(db).LoadOrTrain(context.Background(), sampleEmployees(20))
	require.NoError(t, err)
	assert.Equal(t, SourceTrained, status.Source)
	assert.True(t, model.IsTrained())

	art, err := db.LoadArtifact(DfltArtifactKey)
	require.NoError(t, err)
	assert.NotEmpty(t, art.Data)
}

func TestLoadOrTrainUndecodableModel(t *testing.T) {
	store := newMemoryStore()
	store.data[DfltArtifactKey] = index.Artifact{Data: []byte("not a forest"), CreatedAt: time.Now()}
	_, status, err := newTestTrainer(store).LoadOrTrain(context.Background(), sampleEmployees(20))
	require.NoError(t, err)
	assert.Equal(t, SourceTrained, status.Source)
}

func TestLoadOrTrainStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.loadErr = errors.New("io error")
	_, status, err := newTestTrainer(store).LoadOrTrain(context.Background(), sampleEmployees(20))
	require.NoError(t, err)
	assert.Equal(t, SourceTrained, status.Source)
}
