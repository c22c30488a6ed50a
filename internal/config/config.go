// Package config loads and validates YAML configuration for the checkpoint
// policy and the CLI's chain problems.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adjoint-ml/adjoint/internal/checkpoint"
)

// Checkpoint is the on-disk form of the checkpoint policy.
type Checkpoint struct {
	// Schedule is one of "none", "fixed-interval", "binomial".
	Schedule string `yaml:"schedule"`

	// Interval is the fixed-interval spacing (fixed-interval only).
	Interval int `yaml:"interval,omitempty"`

	// Snapshots is the snapshot count to place (binomial only).
	Snapshots int `yaml:"snapshots,omitempty"`

	// StorageBudget caps held snapshots; 0 means unlimited.
	StorageBudget int `yaml:"storage_budget,omitempty"`

	// OnExceed is "evict-oldest" or "fail".
	OnExceed string `yaml:"on_exceed,omitempty"`
}

// DefaultCheckpoint retains everything and never hits a budget.
func DefaultCheckpoint() Checkpoint {
	return Checkpoint{Schedule: "none", OnExceed: "evict-oldest"}
}

// Validate checks the enum fields and numeric ranges.
func (c Checkpoint) Validate() error {
	switch c.Schedule {
	case "none", "fixed-interval", "binomial":
	default:
		return fmt.Errorf("checkpoint: unknown schedule %q", c.Schedule)
	}
	switch c.OnExceed {
	case "", "evict-oldest", "fail":
	default:
		return fmt.Errorf("checkpoint: unknown on_exceed policy %q", c.OnExceed)
	}
	if c.Schedule == "fixed-interval" && c.Interval < 1 {
		return fmt.Errorf("checkpoint: fixed-interval schedule needs interval >= 1, got %d", c.Interval)
	}
	if c.Schedule == "binomial" && c.Snapshots < 1 {
		return fmt.Errorf("checkpoint: binomial schedule needs snapshots >= 1, got %d", c.Snapshots)
	}
	if c.StorageBudget < 0 {
		return fmt.Errorf("checkpoint: storage_budget must be >= 0, got %d", c.StorageBudget)
	}
	return nil
}

// BuildSchedule constructs the configured placement policy.
func (c Checkpoint) BuildSchedule() (checkpoint.Schedule, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Schedule {
	case "fixed-interval":
		return checkpoint.FixedIntervalSchedule{Interval: c.Interval}, nil
	case "binomial":
		return checkpoint.BinomialSchedule{Snapshots: c.Snapshots}, nil
	default:
		return checkpoint.NoneSchedule{}, nil
	}
}

// StoreOptions converts the configuration into checkpoint store options.
func (c Checkpoint) StoreOptions(logger *slog.Logger) (checkpoint.Options, error) {
	sched, err := c.BuildSchedule()
	if err != nil {
		return checkpoint.Options{}, err
	}
	onExceed := checkpoint.OnExceedEvictOldest
	if c.OnExceed == "fail" {
		onExceed = checkpoint.OnExceedFail
	}
	return checkpoint.Options{
		Schedule:      sched,
		StorageBudget: c.StorageBudget,
		OnExceed:      onExceed,
		Logger:        logger,
	}, nil
}

// Step is one link of a CLI chain problem, computing the next value from the
// previous one: either y = scale·x + offset or y = x^power.
type Step struct {
	Scale  *float64 `yaml:"scale,omitempty"`
	Offset *float64 `yaml:"offset,omitempty"`
	Power  *float64 `yaml:"power,omitempty"`
}

// Validate rejects empty and ambiguous steps.
func (s Step) Validate() error {
	if s.Power != nil && (s.Scale != nil || s.Offset != nil) {
		return fmt.Errorf("step: power cannot combine with scale/offset")
	}
	if s.Power == nil && s.Scale == nil && s.Offset == nil {
		return fmt.Errorf("step: set power, scale, or offset")
	}
	return nil
}

// Problem is a scalar chain: a control value followed by steps applied in
// order.
type Problem struct {
	Control float64 `yaml:"control"`
	Steps   []Step  `yaml:"steps"`
}

// Validate checks the chain is non-empty and every step is well formed.
func (p Problem) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("problem: no steps")
	}
	for i, s := range p.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("problem: step %d: %w", i, err)
		}
	}
	return nil
}

// Config is a full CLI configuration file.
type Config struct {
	Checkpoint Checkpoint `yaml:"checkpoint"`
	Problem    Problem    `yaml:"problem"`
}

// Parse decodes YAML, applying checkpoint defaults for absent fields.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{Checkpoint: DefaultCheckpoint()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Checkpoint.Schedule == "" {
		cfg.Checkpoint.Schedule = "none"
	}
	if cfg.Checkpoint.OnExceed == "" {
		cfg.Checkpoint.OnExceed = "evict-oldest"
	}
	if err := cfg.Checkpoint.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Problem.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}
