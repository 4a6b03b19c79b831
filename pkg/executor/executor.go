// Package executor drives a single round of an iterative process and
// classifies the outcome, so the training loop can switch on a tagged result
// instead of inspecting errors.
package executor

import (
	"context"
	"log/slog"

	"github.com/absmach/fedloop/pkg/fl"
)

type Status uint8

const (
	Success Status = iota
	TransientFailure
	FatalFailure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case TransientFailure:
		return "TransientFailure"
	case FatalFailure:
		return "FatalFailure"
	default:
		return "Unknown"
	}
}

// Outcome is the tagged result of one round attempt. Result is set only on
// Success; Err only otherwise.
type Outcome struct {
	Status Status
	Result fl.RoundResult
	Err    error
}

type Executor struct {
	runtime Runtime
	logger  *slog.Logger
}

func New(rt Runtime, logger *slog.Logger) *Executor {
	return &Executor{runtime: rt, logger: logger}
}

// RunRound invokes one round of the process. A transient backend fault
// triggers a runtime rebuild before the transient outcome is returned; the
// caller retries the same round with state and round number unchanged. A
// rebuild failure escalates to fatal since the backend can no longer be
// trusted.
func (e *Executor) RunRound(ctx context.Context, p fl.Process, state fl.State, data []fl.ClientDataset) Outcome {
	result, err := p.Next(ctx, state, data)
	if err == nil {
		return Outcome{Status: Success, Result: result}
	}

	if !fl.IsTransient(err) {
		return Outcome{Status: FatalFailure, Err: err}
	}

	e.logger.Warn("Transient backend fault, rebuilding execution backend",
		slog.Any("error", err))
	if rerr := e.runtime.Rebuild(); rerr != nil {
		return Outcome{Status: FatalFailure, Err: rerr}
	}

	return Outcome{Status: TransientFailure, Err: err}
}
