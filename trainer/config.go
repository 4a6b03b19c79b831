package trainer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrInvalidConfig = errors.New("invalid trainer configuration")

type Config struct {
	// ExperimentName separates this run's output from other experiments
	// under RootOutputDir. Required.
	ExperimentName string
	// TotalRounds is the number of training rounds to drive.
	TotalRounds int
	// RootOutputDir holds checkpoints/, results/ and logdir/ subtrees.
	RootOutputDir string
	// RoundsPerEval controls how often the global model is evaluated.
	RoundsPerEval int
	// RoundsPerCheckpoint controls how often state is checkpointed.
	RoundsPerCheckpoint int
	// MaxRetries bounds transient-fault retries per round. Zero keeps the
	// default unbounded-retry behavior.
	MaxRetries int
}

func DefaultConfig() Config {
	return Config{
		TotalRounds:         200,
		RootOutputDir:       filepath.Join(os.TempDir(), "fedloop"),
		RoundsPerEval:       1,
		RoundsPerCheckpoint: 50,
	}
}

func (c Config) Validate() error {
	if c.ExperimentName == "" {
		return fmt.Errorf("%w: experiment name is required", ErrInvalidConfig)
	}
	if c.TotalRounds <= 0 {
		return fmt.Errorf("%w: total rounds must be positive, got %d", ErrInvalidConfig, c.TotalRounds)
	}
	if c.RoundsPerEval <= 0 {
		return fmt.Errorf("%w: rounds per eval must be positive, got %d", ErrInvalidConfig, c.RoundsPerEval)
	}
	if c.RoundsPerCheckpoint <= 0 {
		return fmt.Errorf("%w: rounds per checkpoint must be positive, got %d", ErrInvalidConfig, c.RoundsPerCheckpoint)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative, got %d", ErrInvalidConfig, c.MaxRetries)
	}

	return nil
}

// hparams is the immutable configuration snapshot written once at
// experiment start.
func (c Config) hparams() map[string]any {
	return map[string]any{
		"experiment_name":       c.ExperimentName,
		"total_rounds":          c.TotalRounds,
		"root_output_dir":       c.RootOutputDir,
		"rounds_per_eval":       c.RoundsPerEval,
		"rounds_per_checkpoint": c.RoundsPerCheckpoint,
	}
}
