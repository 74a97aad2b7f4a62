package nn

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/czcorpus/attrisim/eval/feats"
	"github.com/patrikeh/go-deep"
	"github.com/patrikeh/go-deep/training"
	"github.com/rs/zerolog/log"
)

type FeatureStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

var (
	networkLayout = []int{16, 8, 1}
	numEpochs     = 300
	learningRate  = 0.005
)

type jsonizedModel struct {
	NeuralNet    *deep.Dump     `json:"neuralNet"`
	DataRanges   []FeatureStats `json:"dataRanges"`
	FeatureNames []string       `json:"featureNames"`
}

// Model is a small feed-forward network with a sigmoid output
// which can replace the Random Forest (config "modelType": "nn").
type Model struct {
	NeuralNet  *deep.Neural
	DataRanges []FeatureStats
}

func NewModel() *Model {
	return &Model{}
}

func (m *Model) IsTrained() bool {
	return m.NeuralNet != nil
}

func (m *Model) GetInfo() string {
	return fmt.Sprintf("NN model, layout: #%v, epochs: %d", networkLayout, numEpochs)
}

func (m *Model) Train(ctx context.Context, x [][]float64, y []int) error {
	if len(x) == 0 {
		return fmt.Errorf("no training data provided")
	}
	if len(x) != len(y) {
		return fmt.Errorf("failed to train NN model - got %d feature rows and %d labels", len(x), len(y))
	}
	var featData = training.Examples{}
	numPositive := 0
	for i, row := range x {
		if len(row) != feats.NumFeatures {
			return fmt.Errorf("failed to train NN model - invalid feature vector length %d", len(row))
		}
		response := 0.0
		if y[i] == 1 {
			numPositive++
			response = 1.0
		}
		input := make([]float64, len(row))
		copy(input, row)
		featData = append(
			featData,
			training.Example{
				Input:    input,
				Response: []float64{response},
			},
		)
	}
	log.Debug().
		Int("numPositive", numPositive).
		Int("dataSize", len(x)).
		Msg("prepared training vectors")

	m.DataRanges = getDataStats(featData)
	for _, item := range featData {
		m.normalizeNNFeats(item.Input)
	}

	net := deep.NewNeural(&deep.Config{
		Inputs:     feats.NumFeatures,
		Layout:     networkLayout,
		Activation: deep.ActivationReLU,
		Mode:       deep.ModeBinary,
		Weight:     deep.NewUniform(1.0, 0.0),
		Bias:       true,
	})
	optimizer := training.NewAdam(learningRate, 0.9, 0.999, 1e-8)
	// verbosity 0 = no stats printing
	trainer := training.NewTrainer(optimizer, 0)
	trainer.TrainContext(ctx, net, featData, featData, numEpochs)
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	m.NeuralNet = net
	return nil
}

func getDataStats(data training.Examples) []FeatureStats {
	stats := make([]FeatureStats, feats.NumFeatures)
	for j, item := range data {
		for i := 0; i < len(item.Input); i++ {
			if j == 0 || item.Input[i] > stats[i].Max {
				stats[i].Max = item.Input[i]
			}
			if j == 0 || item.Input[i] < stats[i].Min {
				stats[i].Min = item.Input[i]
			}
		}
	}
	return stats
}

func (m *Model) normalizeNNFeats(data []float64) {
	for i := 0; i < feats.NumFeatures && i < len(m.DataRanges); i++ {
		min := m.DataRanges[i].Min
		max := m.DataRanges[i].Max

		if max == min {
			data[i] = 0.0 // constant feature

		} else {
			data[i] = (data[i] - min) / (max - min)
		}
	}
}

func (m *Model) PredictProba(x [][]float64) []float64 {
	ans := make([]float64, len(x))
	if !m.IsTrained() {
		return ans
	}
	for i, row := range x {
		features := make([]float64, len(row))
		copy(features, row)
		m.normalizeNNFeats(features)
		out := m.NeuralNet.Predict(features)
		if len(out) > 0 {
			ans[i] = out[0]
		}
	}
	return ans
}

func (m *Model) Marshal() ([]byte, error) {
	if !m.IsTrained() {
		return nil, fmt.Errorf("failed to serialize NN model - model not trained")
	}
	tmpModel := jsonizedModel{
		NeuralNet:    m.NeuralNet.Dump(),
		DataRanges:   m.DataRanges,
		FeatureNames: feats.FeatureNames[:],
	}
	data, err := json.Marshal(tmpModel)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize NN model: %w", err)
	}
	return data, nil
}

func Unmarshal(data []byte) (*Model, error) {
	var model jsonizedModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to load NN model: %w", err)
	}
	if model.NeuralNet == nil || len(model.DataRanges) != feats.NumFeatures {
		return nil, fmt.Errorf("failed to load NN model - incompatible or empty network")
	}
	for i, name := range model.FeatureNames {
		if i >= feats.NumFeatures || feats.FeatureNames[i] != name {
			return nil, fmt.Errorf("failed to load NN model - incompatible feature %s at position %d", name, i)
		}
	}
	return &Model{
		NeuralNet:  deep.FromDump(model.NeuralNet),
		DataRanges: model.DataRanges,
	}, nil
}
