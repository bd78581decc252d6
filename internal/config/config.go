package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the harness runtime configuration, loaded from TOML.
type Config struct {
	Endpoint   string       `toml:"endpoint"`
	ReportPath string       `toml:"report_path"`
	StatusAddr string       `toml:"status_addr"`
	Signer     SignerConfig `toml:"signer"`
	Retry      RetryConfig  `toml:"retry"`
	Sweep      SweepConfig  `toml:"sweep"`
	Flows      FlowsConfig  `toml:"flows"`
}

type SignerConfig struct {
	PublicKey string `toml:"public_key"`
	KeyHandle string `toml:"key_handle"`
}

type RetryConfig struct {
	MaxAttempts      int     `toml:"max_attempts"`
	AttemptTimeoutMS int     `toml:"attempt_timeout_ms"`
	InitialDelayMS   int     `toml:"initial_delay_ms"`
	Multiplier       float64 `toml:"multiplier"`
	MaxDelayMS       int     `toml:"max_delay_ms"`
	Jitter           bool    `toml:"jitter"`
}

type SweepConfig struct {
	Enabled bool `toml:"enabled"`
	DelayMS int  `toml:"delay_ms"`
}

type FlowsConfig struct {
	Enabled  bool     `toml:"enabled"`
	Parallel bool     `toml:"parallel"`
	Only     []string `toml:"only"`
}

// Load reads, defaults and validates a harness config file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the reliability and reporting defaults.
func Default() Config {
	return Config{
		ReportPath: "styx-conformance-report.json",
		Retry: RetryConfig{
			MaxAttempts:      3,
			AttemptTimeoutMS: 15_000,
			InitialDelayMS:   250,
			Multiplier:       2.0,
			MaxDelayMS:       5_000,
			Jitter:           true,
		},
		Sweep: SweepConfig{
			Enabled: true,
			DelayMS: 100,
		},
		Flows: FlowsConfig{
			Enabled: true,
		},
	}
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("config missing endpoint")
	}
	if strings.TrimSpace(cfg.Signer.PublicKey) == "" {
		return fmt.Errorf("config missing signer public_key")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be positive")
	}
	if cfg.Retry.Multiplier < 1.0 {
		return fmt.Errorf("retry multiplier must be >= 1.0")
	}
	if cfg.Sweep.DelayMS < 0 {
		return fmt.Errorf("sweep delay_ms must not be negative")
	}
	if !cfg.Sweep.Enabled && !cfg.Flows.Enabled {
		return fmt.Errorf("config disables both sweep and flows")
	}
	return nil
}

func (r RetryConfig) AttemptTimeout() time.Duration {
	return time.Duration(r.AttemptTimeoutMS) * time.Millisecond
}

func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMS) * time.Millisecond
}

func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

func (s SweepConfig) Delay() time.Duration {
	return time.Duration(s.DelayMS) * time.Millisecond
}
