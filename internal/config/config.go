// Package config loads the supervisor's configuration from defaults, an
// optional YAML config file, and SLURM_LONGRUN_* environment variables,
// in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "SLURM_LONGRUN"

// Config is the typed view of the supervisor's configuration.
type Config struct {
	// DataDir is the root for run registry state and per-run logs.
	DataDir string `mapstructure:"data_dir"`

	Run       RunConfig       `mapstructure:"run"`
	Poll      PollConfig      `mapstructure:"poll"`
	Query     QueryConfig     `mapstructure:"query"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
}

// RunConfig holds per-run defaults, overridable per invocation by flags.
type RunConfig struct {
	// MaxRestarts is the default resubmission budget.
	MaxRestarts int `mapstructure:"max_restarts"`
}

// PollConfig tunes the adaptive poll staircase.
type PollConfig struct {
	Floor   time.Duration `mapstructure:"floor"`
	Ceiling time.Duration `mapstructure:"ceiling"`
	Divisor int           `mapstructure:"divisor"`
}

// QueryConfig bounds retries of transient scheduler query failures.
type QueryConfig struct {
	RetryLimit   int           `mapstructure:"retry_limit"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// SchedulerConfig tunes the scheduler command client.
type SchedulerConfig struct {
	// RegistrationDelay is the wait after sbatch accepts a job before
	// the first query.
	RegistrationDelay time.Duration `mapstructure:"registration_delay"`

	// RateLimit caps scheduler commands per second. Zero is unlimited.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// LoggingConfig selects log verbosity ("debug", "info", "warn").
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig configures the read-only status server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RunsDir returns the run registry root under the data dir.
func (c *Config) RunsDir() string {
	return filepath.Join(c.DataDir, "runs")
}

// SetDefaults registers every configuration default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())

	v.SetDefault("run.max_restarts", 10)

	v.SetDefault("poll.floor", "5s")
	v.SetDefault("poll.ceiling", "120s")
	v.SetDefault("poll.divisor", 10)

	v.SetDefault("query.retry_limit", 5)
	v.SetDefault("query.retry_backoff", "10s")

	v.SetDefault("scheduler.registration_delay", "5s")
	v.SetDefault("scheduler.rate_limit", 2.0)

	v.SetDefault("logging.level", "info")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
}

// Load reads configuration from defaults, the optional config file, and
// the environment. configFile may be empty, in which case
// $SLURM_LONGRUN_CONFIG or <data_dir>/config.yaml is tried; a missing
// file is not an error.
func Load(ctx context.Context, configFile string) (*Config, error) {
	_ = ctx

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv(envPrefix + "_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("data_dir"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "slurmlongrun")
	}
	return filepath.Join(home, ".slurmlongrun")
}
