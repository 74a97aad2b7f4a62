package eval

import (
	"github.com/czcorpus/attrisim/eval/feats"
	"github.com/czcorpus/attrisim/eval/modutils"
	"github.com/czcorpus/attrisim/risk"
)

const (
	MsgBatchPredictionOK  = "Batch prediction successful"
	MsgSinglePredictionOK = "Prediction successful"
)

func isUsable(model MLModel) bool {
	return model != nil && model.IsTrained()
}

// PredictBatch returns the high-risk probability for each employee
// (in input order, rounded to 2 decimal places) and a diagnostic
// message. For a missing or untrained model, all the probabilities
// are zero.
func PredictBatch(model MLModel, emps []risk.EmployeeRecord) ([]float64, string) {
	ans := make([]float64, len(emps))
	if !isUsable(model) {
		return ans, ErrUntrainedModel.Error()
	}
	if len(emps) == 0 {
		return ans, MsgBatchPredictionOK
	}
	probs := model.PredictProba(feats.ExtractMatrix(emps))
	for i := range ans {
		if i < len(probs) {
			ans[i] = modutils.NormalizeProbability(probs[i])
		}
	}
	return ans, MsgBatchPredictionOK
}

// PredictOne is the single-record variant of PredictBatch producing
// the same values.
func PredictOne(model MLModel, emp risk.EmployeeRecord) (float64, string) {
	if !isUsable(model) {
		return 0, ErrUntrainedModel.Error()
	}
	probs := model.PredictProba([][]float64{feats.ExtractFeatures(emp)})
	if len(probs) == 0 {
		return 0, MsgSinglePredictionOK
	}
	return modutils.NormalizeProbability(probs[0]), MsgSinglePredictionOK
}
