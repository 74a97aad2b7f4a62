package eval

import (
	"context"
	"sync"
	"testing"

	"github.com/czcorpus/attrisim/eval/zero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictUntrained(t *testing.T) {
	emps := sampleEmployees(2)

	probs, msg := PredictBatch(nil, emps)
	assert.Equal(t, []float64{0, 0}, probs)
	assert.Equal(t, ErrUntrainedModel.Error(), msg)

	probs, _ = PredictBatch(&zero.Model{}, emps)
	assert.Equal(t, []float64{0, 0}, probs)

	p, msg := PredictOne(nil, emps[0])
	assert.Equal(t, 0.0, p)
	assert.Equal(t, ErrUntrainedModel.Error(), msg)

	p, _ = PredictOne(RFFactory(10)(), emps[0])
	assert.Equal(t, 0.0, p)
}

func TestPredictBatchMatchesSingle(t *testing.T) {
	emps := sampleEmployees(30)
	model, _, err := newTestTrainer(newMemoryStore()).Train(context.Background(), emps)
	require.NoError(t, err)

	probs, msg := PredictBatch(model, emps)
	assert.Equal(t, MsgBatchPredictionOK, msg)
	require.Len(t, probs, len(emps))
	for i, emp := range emps {
		p, msg := PredictOne(model, emp)
		assert.Equal(t, MsgSinglePredictionOK, msg)
		assert.Equal(t, probs[i], p)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestPredictBatchEmpty(t *testing.T) {
	model, _, err := newTestTrainer(newMemoryStore()).Train(context.Background(), sampleEmployees(10))
	require.NoError(t, err)
	probs, _ := PredictBatch(model, nil)
	assert.Empty(t, probs)
}

func TestModelHandle(t *testing.T) {
	h := NewModelHandle()
	assert.False(t, h.Current().IsTrained())
	assert.Equal(t, SourceNone, h.Status().Source)
	assert.False(t, h.Status().IsLive())

	trainer := newTestTrainer(newMemoryStore())
	emps := sampleEmployees(20)
	st, err := h.Update(func(current MLModel) (MLModel, Status, error) {
		return trainer.Train(context.Background(), emps)
	})
	require.NoError(t, err)
	assert.True(t, st.IsLive())
	model, status := h.Snapshot()
	assert.True(t, model.IsTrained())
	assert.Equal(t, SourceTrained, status.Source)

	// a failed update keeps the previous model
	emps[0].MarketSalary = -1
	_, err = h.Update(func(current MLModel) (MLModel, Status, error) {
		return trainer.Train(context.Background(), emps)
	})
	assert.Error(t, err)
	assert.Same(t, model, h.Current())
}

func TestModelHandleConcurrentReaders(t *testing.T) {
	h := NewModelHandle()
	trainer := newTestTrainer(newMemoryStore())
	emps := sampleEmployees(20)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				probs, _ := PredictBatch(h.Current(), emps)
				assert.Len(t, probs, len(emps))
			}
		}()
	}
	for i := 0; i < 2; i++ {
		_, err := h.Update(func(current MLModel) (MLModel, Status, error) {
			return trainer.Train(context.Background(), emps)
		})
		assert.NoError(t, err)
	}
	wg.Wait()
	assert.True(t, h.Current().IsTrained())
}

func TestAgreement(t *testing.T) {
	pr := Agreement([]float64{0.9, 0.8, 0.2, 0.7}, []int{1, 0, 1, 1})
	assert.InDelta(t, 2.0/3.0, pr.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, pr.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, pr.FBeta, 1e-9)

	pr = Agreement([]float64{0.1, 0.2}, []int{0, 0})
	assert.Equal(t, PrecAndRecall{}, pr)
}

func TestFindDisagreements(t *testing.T) {
	ans := FindDisagreements(
		[]int{1, 2, 3, 4},
		[]float64{0.9, 0.55, 0.1, 0.3},
		[]int{1, 0, 1, 0},
	)
	require.Len(t, ans, 2)
	assert.Equal(t, 3, ans[0].EmployeeID)
	assert.Equal(t, "FN", ans[0].Type)
	assert.Equal(t, 2, ans[1].EmployeeID)
	assert.Equal(t, "FP", ans[1].Type)
}

func TestGetModelType(t *testing.T) {
	factory, loader, err := GetModelType("rf", 10)
	require.NoError(t, err)
	assert.False(t, factory().IsTrained())
	assert.NotNil(t, loader)

	factory, _, err = GetModelType("nn", 10)
	require.NoError(t, err)
	assert.Contains(t, factory().GetInfo(), "NN model")

	_, _, err = GetModelType("xgboost", 10)
	assert.ErrorIs(t, err, ErrNoSuchModel)
}
