package main

import (
	"fmt"
	"math/rand"

	"github.com/absmach/fedloop/pkg/fl"
)

const clientPool = 100

// syntheticWorld generates deterministic linear-regression data so the demo
// process has something real to fit. Round number seeds the sampler, which
// keeps retried rounds identical.
type syntheticWorld struct {
	dim             int
	clientsPerRound int
	truth           []float64
	valFeatures     [][]float64
	valLabels       []float64
	testFeatures    [][]float64
	testLabels      []float64
}

func newSyntheticWorld(dim, clientsPerRound int) *syntheticWorld {
	rng := rand.New(rand.NewSource(42))

	truth := make([]float64, dim)
	for i := range truth {
		truth[i] = rng.NormFloat64()
	}

	w := &syntheticWorld{
		dim:             dim,
		clientsPerRound: clientsPerRound,
		truth:           truth,
	}
	w.valFeatures, w.valLabels = w.sample(rng, 256)
	w.testFeatures, w.testLabels = w.sample(rng, 256)

	return w
}

func (w *syntheticWorld) Datasets(round int) ([]fl.ClientDataset, []string, error) {
	rng := rand.New(rand.NewSource(int64(round)))

	datasets := make([]fl.ClientDataset, w.clientsPerRound)
	ids := make([]string, w.clientsPerRound)
	for i := 0; i < w.clientsPerRound; i++ {
		id := fmt.Sprintf("client-%03d", rng.Intn(clientPool))
		features, labels := w.sample(rng, 32)
		datasets[i] = fl.ClientDataset{ClientID: id, Features: features, Labels: labels}
		ids[i] = id
	}

	return datasets, ids, nil
}

func (w *syntheticWorld) Evaluate(state fl.State, useTestDataset bool) (map[string]any, error) {
	features, labels := w.valFeatures, w.valLabels
	if useTestDataset {
		features, labels = w.testFeatures, w.testLabels
	}

	weights := state.Model["w"]
	bias := 0.0
	if b := state.Model["b"]; len(b) > 0 {
		bias = b[0]
	}

	var mse float64
	for i, x := range features {
		pred := bias
		for j := 0; j < len(weights) && j < len(x); j++ {
			pred += weights[j] * x[j]
		}
		d := pred - labels[i]
		mse += d * d
	}
	mse /= float64(len(labels))

	return map[string]any{
		"mean_squared_error": mse,
		"num_examples":       len(labels),
	}, nil
}

func (w *syntheticWorld) sample(rng *rand.Rand, n int) ([][]float64, []float64) {
	features := make([][]float64, n)
	labels := make([]float64, n)
	for i := range features {
		x := make([]float64, w.dim)
		var y float64
		for j := range x {
			x[j] = rng.NormFloat64()
			y += w.truth[j] * x[j]
		}
		features[i] = x
		labels[i] = y + 0.01*rng.NormFloat64()
	}

	return features, labels
}
