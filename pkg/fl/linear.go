package fl

import (
	"context"
	"errors"
)

var ErrNoClients = errors.New("no client datasets provided for round")

// LinearProcess is a reference iterative process: federated averaging of a
// linear model trained with one local SGD pass per client per round. It
// exists so the trainer has a real process to drive in the binary and tests.
type LinearProcess struct {
	Dim          int
	LearningRate float64
}

func NewLinearProcess(dim int, lr float64) *LinearProcess {
	return &LinearProcess{Dim: dim, LearningRate: lr}
}

func (p *LinearProcess) Initialize(_ context.Context) (State, error) {
	return State{
		Model: Model{
			"w": make([]float64, p.Dim),
			"b": []float64{0},
		},
	}, nil
}

func (p *LinearProcess) Next(_ context.Context, state State, data []ClientDataset) (RoundResult, error) {
	if len(data) == 0 {
		return RoundResult{}, ErrNoClients
	}

	aggregatedW := make([]float64, p.Dim)
	var aggregatedB float64
	var totalSamples int64
	var totalLoss float64

	for _, ds := range data {
		w, b, loss := p.localStep(state.Model, ds)

		weight := float64(len(ds.Labels))
		totalSamples += int64(len(ds.Labels))
		totalLoss += loss * weight

		for i := range aggregatedW {
			aggregatedW[i] += w[i] * weight
		}
		aggregatedB += b * weight
	}

	if totalSamples > 0 {
		norm := float64(totalSamples)
		for i := range aggregatedW {
			aggregatedW[i] /= norm
		}
		aggregatedB /= norm
		totalLoss /= norm
	}

	next := State{
		Model: Model{
			"w": aggregatedW,
			"b": []float64{aggregatedB},
		},
	}

	return RoundResult{
		State: next,
		Metrics: map[string]any{
			"loss":         totalLoss,
			"num_examples": totalSamples,
			"num_clients":  len(data),
		},
	}, nil
}

// localStep runs one gradient pass over a single client dataset and returns
// the updated parameters plus the pre-update mean squared error.
func (p *LinearProcess) localStep(m Model, ds ClientDataset) ([]float64, float64, float64) {
	w := make([]float64, p.Dim)
	copy(w, m["w"])
	b := m["b"][0]

	n := float64(len(ds.Labels))
	if n == 0 {
		return w, b, 0
	}

	gradW := make([]float64, p.Dim)
	var gradB, loss float64
	for i, x := range ds.Features {
		pred := b
		for j := 0; j < p.Dim && j < len(x); j++ {
			pred += w[j] * x[j]
		}
		err := pred - ds.Labels[i]
		loss += err * err
		for j := 0; j < p.Dim && j < len(x); j++ {
			gradW[j] += err * x[j]
		}
		gradB += err
	}

	for j := range w {
		w[j] -= p.LearningRate * gradW[j] / n
	}
	b -= p.LearningRate * gradB / n

	return w, b, loss / n
}
