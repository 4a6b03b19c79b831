// Package results persists per-round training metrics: an append-only stream
// of scalar events keyed by round, a durable CSV table with exactly one row
// per round, and a one-shot hyperparameter snapshot.
package results

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

var (
	ErrNotMapping   = errors.New("metrics must be a mapping")
	ErrBadRound     = errors.New("round number must be a non-negative integer")
	ErrCorruptTable = errors.New("corrupt metrics table")
)

type Sink struct {
	experiment  string
	rootDir     string
	resultsDir  string
	summaryDir  string
	metricsFile string
	hparamsFile string
	eventsFile  string
	logger      *slog.Logger
}

func NewSink(experiment, rootDir string, logger *slog.Logger) *Sink {
	resultsDir := filepath.Join(rootDir, "results", experiment)
	summaryDir := filepath.Join(rootDir, "logdir", experiment)

	return &Sink{
		experiment:  experiment,
		rootDir:     rootDir,
		resultsDir:  resultsDir,
		summaryDir:  summaryDir,
		metricsFile: filepath.Join(resultsDir, "metrics.csv"),
		hparamsFile: filepath.Join(resultsDir, "hparams.csv"),
		eventsFile:  filepath.Join(summaryDir, "events.jsonl"),
		logger:      logger,
	}
}

// Init creates the output directories and, when hparams is non-nil, writes
// the hyperparameter snapshot exactly once. The snapshot gains a
// "metrics_file" entry pointing at the metrics table.
func (s *Sink) Init(hparams map[string]any) error {
	if err := os.MkdirAll(s.resultsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	if err := os.MkdirAll(s.summaryDir, 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	s.logger.Info("Writing experiment output",
		slog.String("experiment", s.experiment),
		slog.String("results", s.resultsDir),
		slog.String("summaries", s.summaryDir))

	if hparams != nil {
		hparams["metrics_file"] = s.metricsFile
		if err := s.writeHparams(hparams); err != nil {
			return err
		}
	}

	return nil
}

// MetricsFile returns the path of the durable metrics table.
func (s *Sink) MetricsFile() string {
	return s.metricsFile
}

// WriteRound flattens train and eval metrics under the round key, appends one
// scalar event per flattened path to the streaming sink, and upserts one row
// into the metrics table. Rows at or after round are truncated first, so a
// retried or resumed round never duplicates its row. Invalid input is
// rejected before any write.
func (s *Sink) WriteRound(train, eval map[string]any, round int) error {
	if train == nil {
		return fmt.Errorf("%w: train metrics are nil", ErrNotMapping)
	}
	if eval == nil {
		return fmt.Errorf("%w: eval metrics are nil", ErrNotMapping)
	}
	if round < 0 {
		return fmt.Errorf("%w: %d", ErrBadRound, round)
	}

	flat := Flatten(map[string]any{
		"train": train,
		"eval":  eval,
		"round": round,
	})

	s.logger.Info("Writing metrics",
		slog.String("experiment", s.experiment),
		slog.Int("round", round),
		slog.Int("scalars", len(flat)))

	if err := s.appendEvents(flat, round); err != nil {
		return err
	}

	return s.upsertRow(flat, round)
}
