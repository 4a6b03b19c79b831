package fedloop

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"

	"github.com/absmach/fedloop/trainer"
)

type Config struct {
	Trainer TrainerConfig `toml:"trainer"`
	Runtime RuntimeConfig `toml:"runtime"`
}

type TrainerConfig struct {
	ExperimentName      string `toml:"experiment_name"`
	TotalRounds         int    `toml:"total_rounds"`
	RootOutputDir       string `toml:"root_output_dir"`
	RoundsPerEval       int    `toml:"rounds_per_eval"`
	RoundsPerCheckpoint int    `toml:"rounds_per_checkpoint"`
	MaxRetries          int    `toml:"max_retries"`
}

type RuntimeConfig struct {
	CheckpointBackend string `toml:"checkpoint_backend"`
	MetricsAddress    string `toml:"metrics_address"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Apply overlays the file configuration on top of base; zero fields keep
// the base value.
func (c *Config) Apply(base trainer.Config) trainer.Config {
	if c.Trainer.ExperimentName != "" {
		base.ExperimentName = c.Trainer.ExperimentName
	}
	if c.Trainer.TotalRounds != 0 {
		base.TotalRounds = c.Trainer.TotalRounds
	}
	if c.Trainer.RootOutputDir != "" {
		base.RootOutputDir = c.Trainer.RootOutputDir
	}
	if c.Trainer.RoundsPerEval != 0 {
		base.RoundsPerEval = c.Trainer.RoundsPerEval
	}
	if c.Trainer.RoundsPerCheckpoint != 0 {
		base.RoundsPerCheckpoint = c.Trainer.RoundsPerCheckpoint
	}
	if c.Trainer.MaxRetries != 0 {
		base.MaxRetries = c.Trainer.MaxRetries
	}

	return base
}
