/*
PURPOSE:
  Defines the configuration structure and loading logic for smolvlm-bench.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Allow configuration of the benchmark matrix (backends, sizes,
    tasks), repetition/warmup counts, timeouts and paths.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Task prompts and backend commands belong in config so new tasks or
    renamed binaries need no code change.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - A missing default config file is not an error (defaults apply).

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults should be sensible (3 reps, 1 warmup, 120s timeout).

USAGE:
  cfg, err := config.Load("smolvlm_bench.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update Load() defaults.

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kornia/smolvlm-bench/internal/model"
)

// Duration wraps time.Duration so yaml configs can say "90s" or "2m".
// Bare numbers are read as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var n float64
	if err := node.Decode(&n); err == nil {
		*d = Duration(time.Duration(n * float64(time.Second)))
		return nil
	}

	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the full configuration for smolvlm-bench.
type Config struct {
	Backends    []model.Backend `yaml:"backends"`
	Sizes       []model.Size    `yaml:"sizes"`
	Tasks       []model.Task    `yaml:"tasks"`
	Repetitions int             `yaml:"repetitions"`
	WarmupCount int             `yaml:"warmup"`

	// WarmupWorkers > 0 enables the bounded warmup pool. The pool is
	// additionally clamped to the number of distinct backends in the
	// plan; timed repetitions always run sequentially.
	WarmupWorkers int `yaml:"warmup_workers"`

	// RunTimeout bounds every single backend invocation. A hung process
	// is killed and recorded as a timeout failure.
	RunTimeout Duration `yaml:"run_timeout"`

	ImagePath string `yaml:"image"`
	ModelDir  string `yaml:"model_dir"`
	OutputDir string `yaml:"output_dir"`

	// BackendCommands maps a backend name to the executable invoked for
	// it. Relative names are resolved on PATH.
	BackendCommands map[model.Backend]string `yaml:"backend_commands"`

	// TaskPrompts maps a task name to the prompt text passed to the
	// backend for that task.
	TaskPrompts map[model.Task]string `yaml:"task_prompts"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backends:      []model.Backend{model.BackendCandle, model.BackendOnnx},
		Sizes:         []model.Size{model.SizeSmall, model.SizeMedium, model.SizeLarge},
		Tasks:         []model.Task{model.TaskDescription, model.TaskObjects},
		Repetitions:   3,
		WarmupCount:   1,
		WarmupWorkers: 0, // sequential by default; shared hardware must not contend
		RunTimeout:    Duration(120 * time.Second),
		ImagePath:     "sample.jpg",
		ModelDir:      "models/smolvlm",
		OutputDir:     "benchmark_results",
		BackendCommands: map[model.Backend]string{
			model.BackendCandle: "smolvlm-candle",
			model.BackendOnnx:   "smolvlm-onnx",
		},
		TaskPrompts: map[model.Task]string{
			model.TaskDescription: "Describe this image in detail.",
			model.TaskObjects:     "What objects are in this image?",
		},
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		// Search for defaults
		defaults := []string{"smolvlm_bench.yaml", "smolvlm_bench.yml", "bench.yaml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name // record which file we loaded
				found = true
				break
			}
		}
		if !found {
			// No config file found, return default
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the invariants the planner and runner rely on.
func (c *Config) Validate() error {
	if c.Repetitions < 1 {
		return fmt.Errorf("repetitions must be positive, got %d", c.Repetitions)
	}
	if c.WarmupCount < 0 {
		return fmt.Errorf("warmup must be non-negative, got %d", c.WarmupCount)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout must be positive, got %s", c.RunTimeout.Std())
	}
	for _, task := range c.Tasks {
		if _, ok := c.TaskPrompts[task]; !ok {
			return fmt.Errorf("no prompt configured for task %q", task)
		}
	}
	for _, backend := range c.Backends {
		if _, ok := c.BackendCommands[backend]; !ok {
			return fmt.Errorf("no command configured for backend %q", backend)
		}
	}
	return nil
}
