package zero

import (
	"context"
	"fmt"
)

// Model stands for "no model". It is used whenever there is nothing
// to train on, so the inference can still return well-typed
// (zero) probabilities.
type Model struct {
	Reason string
}

func (zm *Model) Train(ctx context.Context, x [][]float64, y []int) error {
	return fmt.Errorf("cannot train zero model")
}

func (zm *Model) PredictProba(x [][]float64) []float64 {
	return make([]float64, len(x))
}

func (zm *Model) IsTrained() bool {
	return false
}

func (zm *Model) Marshal() ([]byte, error) {
	return nil, fmt.Errorf("cannot save zero model")
}

func (zm *Model) GetInfo() string {
	if zm.Reason != "" {
		return "ZeroModel (" + zm.Reason + ")"
	}
	return "ZeroModel"
}
