// Package trainer drives an iterative training process to completion:
// it resumes from the latest checkpoint, runs rounds, retries transient
// backend faults, and persists metrics and checkpoints as it goes.
package trainer

import (
	"context"

	"github.com/absmach/fedloop/pkg/fl"
)

type Service interface {
	// Run executes the training loop from the resume point through the
	// final test evaluation and returns the final state.
	Run(ctx context.Context) (fl.State, error)
}

// MetricsSink is the durable metrics destination consumed by the loop.
type MetricsSink interface {
	Init(hparams map[string]any) error
	WriteRound(train, eval map[string]any, round int) error
}
