// Package config loads AXON's ambient toolchain configuration: effort
// floors, default confidence, trace verbosity, and retry defaults. None of
// this configures a concrete model provider or tool backend (those stay
// out of scope per the runtime's abstract client/registry interfaces).
// Only the Logging section is read by the CLI; the effort, confidence,
// retry and trace settings are exposed through accessors, and the checker
// and executor do not read them.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all AXON toolchain configuration.
type Config struct {
	// Logging controls the zap-backed logger built at startup.
	Logging LoggingConfig `yaml:"logging"`

	// Effort holds the floor confidence value associated with each named
	// effort tier a `run ... effort: <word>` statement may reference.
	Effort EffortConfig `yaml:"effort"`

	// DefaultConfidence is the floor EffortFloor returns for an
	// unrecognised effort word. The executor does not read it: a model
	// response with no confidence resolves to the step's confidence floor
	// (runtime.RuntimeContext.ResolveConfidence; see DESIGN.md).
	DefaultConfidence float64 `yaml:"default_confidence"`

	// Retry holds default refine-step settings. The executor does not read
	// them: a refine step without max_attempts gets 3 attempts, and one
	// without backoff gets none.
	Retry RetryConfig `yaml:"retry"`

	// Trace holds the trace verbosity reported by FullTrace. The executor
	// appends the same events whatever its value.
	Trace TraceConfig `yaml:"trace"`
}

// LoggingConfig configures the process-wide zap logger.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
}

// EffortConfig maps the three effort words EffortFloor knows to a floor
// confidence. Neither the checker nor the executor applies these floors.
type EffortConfig struct {
	Quick   float64 `yaml:"quick"`
	Precise float64 `yaml:"precise"`
	Thorough float64 `yaml:"thorough"`
}

// RetryConfig is the default refine-step policy.
type RetryConfig struct {
	MaxAttempts        int    `yaml:"max_attempts"`
	Backoff            string `yaml:"backoff"` // e.g. "linear(2)", "exponential(2.0)"
	PassFailureContext bool   `yaml:"pass_failure_context"`
}

// TraceConfig controls trace verbosity.
type TraceConfig struct {
	// Verbosity is one of "summary" (phase boundaries only) or "full"
	// (every trace event kind, including intermediate model-client calls).
	Verbosity string `yaml:"verbosity"`
}

// Default returns AXON's baked-in configuration, used whenever no config
// file is present.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Verbose: false, JSON: false},
		Effort: EffortConfig{
			Quick:    0.5,
			Precise:  0.75,
			Thorough: 0.9,
		},
		DefaultConfidence: 0.7,
		Retry: RetryConfig{
			MaxAttempts:        3,
			Backoff:            "exponential(2.0)",
			PassFailureContext: true,
		},
		Trace: TraceConfig{Verbosity: "summary"},
	}
}

// Load reads a YAML config file, falling back to Default() (with
// environment overrides applied) if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config as YAML to path, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnvOverrides() {
	if os.Getenv("AXON_VERBOSE") == "1" {
		c.Logging.Verbose = true
	}
	if os.Getenv("AXON_LOG_JSON") == "1" {
		c.Logging.JSON = true
	}
}

// EffortFloor resolves an effort word (as written in `run ... effort:
// word`) to its floor confidence, falling back to DefaultConfidence for an
// unrecognised word rather than erroring — effort is advisory, not part of
// the closed field vocabulary the checker enforces.
func (c *Config) EffortFloor(word string) float64 {
	switch word {
	case "quick":
		return c.Effort.Quick
	case "precise":
		return c.Effort.Precise
	case "thorough":
		return c.Effort.Thorough
	default:
		return c.DefaultConfidence
	}
}

// RetryMaxAttempts returns the configured default max_attempts, floored to
// 3 when unset.
func (c *Config) RetryMaxAttempts() int {
	if c.Retry.MaxAttempts <= 0 {
		return 3
	}
	return c.Retry.MaxAttempts
}

// FullTrace reports whether the configured trace verbosity is "full".
func (c *Config) FullTrace() bool {
	return c.Trace.Verbosity == "full"
}
