// Package config loads the application configuration. Values are layered:
// built-in defaults, then the config file, then PILLAR_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/retry"
)

// FileName is the config file looked up when no path is given.
const FileName = "pillar.yaml"

// EnvPrefix prefixes every environment override, e.g. PILLAR_DISPATCH_MODE.
const EnvPrefix = "PILLAR"

// Mode selects how the dispatcher schedules workers.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
)

// Config holds the top-level application configuration.
type Config struct {
	Profile    string         `mapstructure:"profile"`
	ProfileDir string         `mapstructure:"profile_dir"`
	Dispatch   DispatchConfig `mapstructure:"dispatch"`
	Retry      RetryConfig    `mapstructure:"retry"`
	Judge      JudgeConfig    `mapstructure:"judge"`
	OutputDir  string         `mapstructure:"output_dir"`
	DBPath     string         `mapstructure:"db_path"`
	LogFile    string         `mapstructure:"log_file"`
}

// DispatchConfig controls scheduling, timeouts and the dispatch order.
type DispatchConfig struct {
	Mode          Mode          `mapstructure:"mode"`
	Concurrency   int           `mapstructure:"concurrency"`
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`
	RunBudget     time.Duration `mapstructure:"run_budget"`
	Order         []string      `mapstructure:"order"`
}

// RetryConfig holds retry behavior for tool invocations inside workers.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

// JudgeConfig configures the external judge used by the performance worker.
type JudgeConfig struct {
	// Provider is "anthropic" or "none".
	Provider   string  `mapstructure:"provider"`
	Model      string  `mapstructure:"model"`
	APIKeyEnv  string  `mapstructure:"api_key_env"`
	BaseURL    string  `mapstructure:"base_url"`
	Bedrock    bool    `mapstructure:"bedrock"`
	AWSRegion  string  `mapstructure:"aws_region"`
	AWSProfile string  `mapstructure:"aws_profile"`
	Fallback   float64 `mapstructure:"fallback"`
	PromptFile string  `mapstructure:"prompt_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", "default")
	v.SetDefault("profile_dir", ".pillar/profiles")

	v.SetDefault("dispatch.mode", string(ModeSequential))
	v.SetDefault("dispatch.concurrency", 4)
	v.SetDefault("dispatch.worker_timeout", "120s")
	v.SetDefault("dispatch.run_budget", "10m")
	v.SetDefault("dispatch.order", pillar.Names())

	v.SetDefault("retry.max_retries", retry.DefaultMaxRetries)
	v.SetDefault("retry.base_delay", retry.DefaultBaseDelay.String())

	v.SetDefault("judge.provider", "anthropic")
	v.SetDefault("judge.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("judge.api_key_env", "ANTHROPIC_API_KEY")
	v.SetDefault("judge.base_url", "")
	v.SetDefault("judge.bedrock", false)
	v.SetDefault("judge.aws_region", "")
	v.SetDefault("judge.aws_profile", "")
	v.SetDefault("judge.fallback", 0.5)
	v.SetDefault("judge.prompt_file", "")

	v.SetDefault("output_dir", ".pillar/runs")
	v.SetDefault("db_path", ".pillar/history.db")
	v.SetDefault("log_file", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults always decode.
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads the config file at path, or pillar.yaml in the working
// directory when path is empty. A missing file yields the defaults plus
// environment overrides; a malformed file is an error.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, &evalerr.ConfigurationError{Field: "config", Reason: "reading config file", Err: err}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &evalerr.ConfigurationError{Field: "config", Reason: "decoding config", Err: err}
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	v := viper.New()
	setDefaults(v)
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// DispatchOrder parses the configured order. Pillars missing from it are
// appended in canonical order.
func (c *Config) DispatchOrder() ([]pillar.Pillar, error) {
	seen := make(map[pillar.Pillar]bool)
	var out []pillar.Pillar
	for _, name := range c.Dispatch.Order {
		p, err := pillar.Parse(name)
		if err != nil {
			return nil, evalerr.Configf("dispatch.order", "%v", err)
		}
		if seen[p] {
			return nil, evalerr.Configf("dispatch.order", "pillar %q listed twice", p)
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, p := range pillar.All() {
		if !seen[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// RetryPolicy converts the retry settings.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxRetries: c.Retry.MaxRetries, BaseDelay: c.Retry.BaseDelay}
}

// Validate checks every setting and reports all problems as one
// ConfigurationError.
func (c *Config) Validate() error {
	var errs []error

	switch c.Dispatch.Mode {
	case ModeSequential, ModeParallel:
	default:
		errs = append(errs, fmt.Errorf("dispatch.mode must be %q or %q, got %q", ModeSequential, ModeParallel, c.Dispatch.Mode))
	}
	if c.Dispatch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("dispatch.concurrency must be >= 1, got %d", c.Dispatch.Concurrency))
	}
	if c.Dispatch.WorkerTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.worker_timeout must be > 0, got %s", c.Dispatch.WorkerTimeout))
	}
	if c.Dispatch.RunBudget <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.run_budget must be > 0, got %s", c.Dispatch.RunBudget))
	}
	if _, err := c.DispatchOrder(); err != nil {
		errs = append(errs, err)
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry.base_delay must be >= 0, got %s", c.Retry.BaseDelay))
	}
	switch c.Judge.Provider {
	case "anthropic":
		if c.Judge.Model == "" {
			errs = append(errs, errors.New("judge.model is required for the anthropic provider"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("judge.provider must be \"anthropic\" or \"none\", got %q", c.Judge.Provider))
	}
	if c.Judge.Fallback < 0 || c.Judge.Fallback > 1 {
		errs = append(errs, fmt.Errorf("judge.fallback must be in [0, 1], got %v", c.Judge.Fallback))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}

	if err := errors.Join(errs...); err != nil {
		return &evalerr.ConfigurationError{Field: "config", Reason: "invalid configuration", Err: err}
	}
	return nil
}
