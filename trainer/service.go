package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/fedloop/pkg/checkpoint"
	"github.com/absmach/fedloop/pkg/executor"
	"github.com/absmach/fedloop/pkg/fl"
)

var (
	ErrNilCollaborator = errors.New("nil collaborator")
	ErrRetriesExceeded = errors.New("transient fault retry budget exceeded")
)

// scrubKeys are process-internal timing keys stripped from round metrics
// before persistence.
var scrubKeys = []string{"keras_training_time_client_sum_sec"}

type service struct {
	cfg      Config
	process  fl.Process
	datasets fl.DatasetsFn
	evaluate fl.EvaluateFn
	ckpts    checkpoint.Store
	sink     MetricsSink
	exec     *executor.Executor
	logger   *slog.Logger
}

func NewService(cfg Config, p fl.Process, datasets fl.DatasetsFn, evaluate fl.EvaluateFn, ckpts checkpoint.Store, sink MetricsSink, exec *executor.Executor, logger *slog.Logger) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: iterative process", ErrNilCollaborator)
	}
	if datasets == nil {
		return nil, fmt.Errorf("%w: client datasets function", ErrNilCollaborator)
	}
	if evaluate == nil {
		return nil, fmt.Errorf("%w: evaluate function", ErrNilCollaborator)
	}
	if ckpts == nil {
		return nil, fmt.Errorf("%w: checkpoint store", ErrNilCollaborator)
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: metrics sink", ErrNilCollaborator)
	}
	if exec == nil {
		return nil, fmt.Errorf("%w: round executor", ErrNilCollaborator)
	}

	return &service{
		cfg:      cfg,
		process:  p,
		datasets: datasets,
		evaluate: evaluate,
		ckpts:    ckpts,
		sink:     sink,
		exec:     exec,
		logger:   logger,
	}, nil
}

func (svc *service) Run(ctx context.Context) (fl.State, error) {
	svc.logger.Info("Starting training loop",
		slog.String("experiment", svc.cfg.ExperimentName),
		slog.Int("total_rounds", svc.cfg.TotalRounds))

	initial, err := svc.process.Initialize(ctx)
	if err != nil {
		return fl.State{}, fmt.Errorf("failed to initialize iterative process: %w", err)
	}

	state, loaded, err := svc.ckpts.LoadLatest(ctx, initial)
	if err != nil {
		return fl.State{}, err
	}

	round := 0
	switch loaded {
	case checkpoint.NoRound:
		svc.logger.Info("Initializing experiment from scratch")
		state = initial
	default:
		// The loaded round already completed; never re-execute it.
		round = loaded + 1
		svc.logger.Info("Restarted from checkpoint",
			slog.Int("round", loaded))
	}

	if err := svc.sink.Init(svc.cfg.hparams()); err != nil {
		return fl.State{}, err
	}

	uniqueClients := make(map[string]struct{})
	retries := 0
	loopStart := time.Now()

	for round < svc.cfg.TotalRounds {
		prepStart := time.Now()
		data, clientIDs, err := svc.datasets(round)
		if err != nil {
			return fl.State{}, fmt.Errorf("failed to sample client datasets for round %d: %w", round, err)
		}
		trainMetrics := map[string]any{
			"prepare_datasets_secs": time.Since(prepStart).Seconds(),
		}

		trainStart := time.Now()
		prevModel := state.Model
		outcome := svc.exec.RunRound(ctx, svc.process, state, data)
		switch outcome.Status {
		case executor.TransientFailure:
			retries++
			if svc.cfg.MaxRetries > 0 && retries > svc.cfg.MaxRetries {
				return fl.State{}, fmt.Errorf("%w: round %d failed %d times: %w", ErrRetriesExceeded, round, retries, outcome.Err)
			}
			svc.logger.Warn("Retrying round after transient fault",
				slog.Int("round", round),
				slog.Int("attempt", retries+1),
				slog.Any("error", outcome.Err))

			continue
		case executor.FatalFailure:
			return fl.State{}, fmt.Errorf("round %d failed: %w", round, outcome.Err)
		case executor.Success:
			retries = 0
		}

		state = outcome.Result.State
		trainMetrics["training_secs"] = time.Since(trainStart).Seconds()
		trainMetrics["model_delta_l2_norm"] = fl.L2Delta(prevModel, state.Model)
		for _, id := range clientIDs {
			uniqueClients[id] = struct{}{}
		}
		trainMetrics["num_unique_clients"] = len(uniqueClients)
		for name, val := range outcome.Result.Metrics {
			trainMetrics[name] = val
		}
		for _, key := range scrubKeys {
			delete(trainMetrics, key)
		}

		svc.logger.Info("Round completed",
			slog.Int("round", round),
			slog.Float64("avg_secs_per_round", time.Since(loopStart).Seconds()/float64(round+1)))

		if round%svc.cfg.RoundsPerCheckpoint == 0 || round == svc.cfg.TotalRounds-1 {
			saveStart := time.Now()
			if err := svc.ckpts.Save(ctx, state, round); err != nil {
				return fl.State{}, err
			}
			trainMetrics["save_checkpoint_secs"] = time.Since(saveStart).Seconds()
		}

		if round%svc.cfg.RoundsPerEval == 0 {
			evalStart := time.Now()
			evalMetrics, err := svc.evaluate(state, false)
			if err != nil {
				return fl.State{}, fmt.Errorf("failed to evaluate at round %d: %w", round, err)
			}
			evalMetrics["evaluate_secs"] = time.Since(evalStart).Seconds()
			if err := svc.sink.WriteRound(trainMetrics, evalMetrics, round); err != nil {
				return fl.State{}, err
			}
		}

		round++
	}

	testStart := time.Now()
	testMetrics, err := svc.evaluate(state, true)
	if err != nil {
		return fl.State{}, fmt.Errorf("failed to run final evaluation: %w", err)
	}
	testMetrics["evaluate_secs"] = time.Since(testStart).Seconds()

	// The row keyed by TotalRounds marks the test pass; every in-loop row
	// stays strictly below it.
	if err := svc.sink.WriteRound(map[string]any{}, testMetrics, svc.cfg.TotalRounds); err != nil {
		return fl.State{}, err
	}

	svc.logger.Info("Training loop finished",
		slog.String("experiment", svc.cfg.ExperimentName),
		slog.Int("total_rounds", svc.cfg.TotalRounds))

	return state, nil
}
