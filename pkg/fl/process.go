package fl

import "context"

// Process is the capability every iterative training process must satisfy.
// Initialize constructs the round-zero state; Next runs exactly one round
// against the given state and per-round client data. Next must not mutate
// the state it is handed; it returns a replacement state instead.
type Process interface {
	Initialize(ctx context.Context) (State, error)
	Next(ctx context.Context, state State, data []ClientDataset) (RoundResult, error)
}

// State is a snapshot of the process after N completed rounds. It is owned by
// the orchestrator between rounds and replaced wholesale after each round.
type State struct {
	Model Model                `cbor:"model" json:"model"`
	Slots map[string][]float64 `cbor:"slots,omitempty" json:"slots,omitempty"`
}

// RoundResult is the output of one successful round.
type RoundResult struct {
	State   State
	Metrics map[string]any
}

// ClientDataset is one participant's batch for a single round.
type ClientDataset struct {
	ClientID string
	Features [][]float64
	Labels   []float64
}

// DatasetsFn samples the participant batches for a round, returning the
// datasets and the corresponding client ids.
type DatasetsFn func(round int) ([]ClientDataset, []string, error)

// EvaluateFn evaluates a state against the validation set, or the held-out
// test set when useTestDataset is true.
type EvaluateFn func(state State, useTestDataset bool) (map[string]any, error)
