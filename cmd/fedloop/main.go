package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/absmach/fedloop"
	"github.com/absmach/fedloop/pkg/checkpoint"
	"github.com/absmach/fedloop/pkg/executor"
	"github.com/absmach/fedloop/pkg/fl"
	"github.com/absmach/fedloop/pkg/results"
	"github.com/absmach/fedloop/trainer"
	"github.com/absmach/fedloop/trainer/middleware"
	"github.com/caarlos0/env/v11"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	svcName = "fedloop"
	pathEnv = ".env"
)

type envConfig struct {
	LogLevel       string `env:"FEDLOOP_LOG_LEVEL"       envDefault:"info"`
	InstanceID     string `env:"FEDLOOP_INSTANCE_ID"`
	ConfigPath     string `env:"FEDLOOP_CONFIG_PATH"`
	MetricsAddress string `env:"FEDLOOP_METRICS_ADDRESS" envDefault:":9090"`
}

type runFlags struct {
	experimentName      string
	totalRounds         int
	rootOutputDir       string
	roundsPerEval       int
	roundsPerCheckpoint int
	maxRetries          int
	checkpointBackend   string
	modelDim            int
	learningRate        float64
	clientsPerRound     int
}

func main() {
	rootCmd := &cobra.Command{
		Use:   svcName,
		Short: "Resilient federated training loop driver",
		Long:  `Drives an iterative training process round by round, resuming from the latest checkpoint and retrying transient backend faults.`,
	}
	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the training loop",
		Long: `Run the training loop for an experiment.

Examples:
  # Train 120 rounds, checkpointing every 50
  fedloop run --experiment-name mnist-fedavg --total-rounds 120 --rounds-per-checkpoint 50`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.experimentName, "experiment-name", "", "Name of this experiment, appended to the root output dir")
	cmd.Flags().IntVar(&flags.totalRounds, "total-rounds", 0, "Number of total training rounds")
	cmd.Flags().StringVar(&flags.rootOutputDir, "root-output-dir", "", "Root directory for experiment output")
	cmd.Flags().IntVar(&flags.roundsPerEval, "rounds-per-eval", 0, "How often to evaluate the global model")
	cmd.Flags().IntVar(&flags.roundsPerCheckpoint, "rounds-per-checkpoint", 0, "How often to checkpoint the global model")
	cmd.Flags().IntVar(&flags.maxRetries, "max-retries", 0, "Cap on transient-fault retries per round, 0 for unlimited")
	cmd.Flags().StringVar(&flags.checkpointBackend, "checkpoint-backend", "file", "Checkpoint backend: file or badger")
	cmd.Flags().IntVar(&flags.modelDim, "model-dim", 16, "Dimension of the demo linear model")
	cmd.Flags().Float64Var(&flags.learningRate, "learning-rate", 0.1, "Client learning rate of the demo process")
	cmd.Flags().IntVar(&flags.clientsPerRound, "clients-per-round", 10, "Clients sampled per round in the demo process")

	return cmd
}

func run(cmd *cobra.Command, flags runFlags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	ecfg := envConfig{}
	if err := env.Parse(&ecfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if ecfg.InstanceID == "" {
		ecfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(ecfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	tcfg := trainer.DefaultConfig()
	backend := flags.checkpointBackend
	if ecfg.ConfigPath != "" {
		fcfg, err := fedloop.LoadConfig(ecfg.ConfigPath)
		if err != nil {
			return err
		}
		tcfg = fcfg.Apply(tcfg)
		if fcfg.Runtime.CheckpointBackend != "" && !cmd.Flags().Changed("checkpoint-backend") {
			backend = fcfg.Runtime.CheckpointBackend
		}
		if fcfg.Runtime.MetricsAddress != "" {
			ecfg.MetricsAddress = fcfg.Runtime.MetricsAddress
		}
	}
	tcfg = applyFlags(cmd, tcfg, flags)

	ckpts, closeStore, err := newCheckpointStore(backend, tcfg)
	if err != nil {
		return err
	}
	defer closeStore()

	rt, err := executor.NewRuntime(func() (io.Closer, error) {
		return executor.NopBackend{}, nil
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	world := newSyntheticWorld(flags.modelDim, flags.clientsPerRound)
	process := fl.NewLinearProcess(flags.modelDim, flags.learningRate)
	sink := results.NewSink(tcfg.ExperimentName, tcfg.RootOutputDir, logger)

	svc, err := trainer.NewService(tcfg, process, world.Datasets, world.Evaluate, ckpts, sink, executor.New(rt, logger), logger)
	if err != nil {
		return err
	}
	svc = middleware.Logging(logger, svc)
	counter := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: svcName,
		Subsystem: "trainer",
		Name:      "request_count",
		Help:      "Number of trainer operations.",
	}, []string{"method"})
	latency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
		Namespace: svcName,
		Subsystem: "trainer",
		Name:      "request_latency_seconds",
		Help:      "Latency of trainer operations.",
	}, []string{"method"})
	svc = middleware.Metrics(counter, latency, svc)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ecfg.MetricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("Serving metrics", slog.String("address", ecfg.MetricsAddress), slog.String("instance_id", ecfg.InstanceID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer cancel()
		state, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("Final model ready", slog.Int("tensors", len(state.Model)))

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))

		return err
	}

	return nil
}

func applyFlags(cmd *cobra.Command, cfg trainer.Config, flags runFlags) trainer.Config {
	if cmd.Flags().Changed("experiment-name") {
		cfg.ExperimentName = flags.experimentName
	}
	if cmd.Flags().Changed("total-rounds") {
		cfg.TotalRounds = flags.totalRounds
	}
	if cmd.Flags().Changed("root-output-dir") {
		cfg.RootOutputDir = flags.rootOutputDir
	}
	if cmd.Flags().Changed("rounds-per-eval") {
		cfg.RoundsPerEval = flags.roundsPerEval
	}
	if cmd.Flags().Changed("rounds-per-checkpoint") {
		cfg.RoundsPerCheckpoint = flags.roundsPerCheckpoint
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries = flags.maxRetries
	}

	return cfg
}

func newCheckpointStore(backend string, cfg trainer.Config) (checkpoint.Store, func(), error) {
	dir := filepath.Join(cfg.RootOutputDir, "checkpoints", cfg.ExperimentName)
	switch backend {
	case "file":
		store, err := checkpoint.NewFileStore(dir)
		if err != nil {
			return nil, nil, err
		}

		return store, func() {}, nil
	case "badger":
		store, err := checkpoint.NewBadgerStore(dir)
		if err != nil {
			return nil, nil, err
		}

		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", backend)
	}
}
