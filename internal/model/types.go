/*
PURPOSE:
  Defines the core data structures used throughout smolvlm-bench.
  These models represent the benchmark matrix (descriptors) and its
  measured outcomes (results, aggregates).

REQUIREMENTS:
  User-specified:
  - One descriptor per (backend, size, task) combination.
  - Record per-repetition wall-clock durations and success/failure.
  - Preserve the backend's raw JSON output without interpreting it.

  Implementation-discovered:
  - (backend, size, task) is the unique key for a descriptor AND for its
    persisted record; the store relies on Key() being filename-safe.
  - Elapsed samples are seconds as float64 so the record stays readable
    as plain JSON (time.Duration serializes as opaque nanoseconds).

ARCHITECTURE INTEGRATION:
  - Used by: internal/planner, internal/engine, internal/store, internal/report
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs). Run failures are data, not errors: a failed
    repetition is an empty slot in ElapsedSeconds plus a FailureReason.

IMPLEMENTATION RULES:
  - Descriptors and Results are immutable after construction. A rerun of
    the same key produces a new Result; it never mutates the old one.
  - Keep structs simple and public.

USAGE:
  d := model.Descriptor{Backend: model.BackendCandle, Size: model.SizeSmall, ...}
  key := d.Key() // "candle_small_description"

RELATED FILES:
  - internal/store/store.go
  - internal/report/aggregate.go

MAINTENANCE:
  - Update when adding new metrics to capture.
*/

package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Backend identifies an external inference engine, invoked as an opaque
// process. Its internals are out of scope for this tool.
type Backend string

const (
	BackendCandle Backend = "candle"
	BackendOnnx   Backend = "onnx"
)

// Size is a named model tier. It is purely a lookup key into the model
// artifact directory layout, never a numeric parameter.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Dir returns the capitalized directory name the download scripts use
// for this size tier (models/<backend>/Small, etc.).
func (s Size) Dir() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Task names a benchmark prompt scenario. The prompt text itself lives
// in the configuration so new tasks need no code change.
type Task string

const (
	TaskDescription Task = "description"
	TaskObjects     Task = "objects"
)

// Descriptor is a fully resolved specification of one benchmark unit:
// which backend to invoke, against which model artifacts, with which
// task prompt, and how many timed/warmup repetitions to run.
//
// Descriptors are constructed by the planner and never mutated after
// construction. Exactly one runner invocation consumes each descriptor.
type Descriptor struct {
	Backend      Backend  `json:"backend"`
	Size         Size     `json:"size"`
	Task         Task     `json:"task"`
	Repetitions  int      `json:"repetitions"`
	WarmupCount  int      `json:"warmup_count"`
	ArtifactPath string   `json:"artifact_path"`
	ExtraFlags   []string `json:"extra_flags,omitempty"`
}

// Key returns the unique, filename-safe identity of this descriptor.
// At most one live store record exists per key at any time.
func (d Descriptor) Key() string {
	return fmt.Sprintf("%s_%s_%s", d.Backend, d.Size, d.Task)
}

// Result is the recorded outcome of executing one Descriptor.
//
// ElapsedSeconds holds one sample per successful timed repetition, in
// execution order. A repetition that failed (non-zero exit, timeout,
// missing binary) contributes no sample, so len(ElapsedSeconds) may be
// smaller than Attempts but never larger.
type Result struct {
	Descriptor Descriptor `json:"descriptor"`
	SessionID  string     `json:"session_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`

	ElapsedSeconds []float64 `json:"elapsed_seconds"`
	Attempts       int       `json:"attempts"`

	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty"`

	// RawOutput is the JSON document the backend wrote at its output
	// path, passed through verbatim. It is never parsed for metrics;
	// the aggregator trusts only our own wall-clock samples.
	RawOutput json.RawMessage `json:"raw_output,omitempty"`
}

// Successes returns the number of timed repetitions that completed.
func (r Result) Successes() int {
	return len(r.ElapsedSeconds)
}

// Group identifies a reporting group: all results for one backend at
// one model size, across tasks.
type Group struct {
	Backend Backend
	Size    Size
}

// Aggregate holds derived statistics for all results sharing a
// (backend, size) group. It is computed transiently by the reporter and
// never persisted independently of the rendered summary.
type Aggregate struct {
	Group

	// AvgDuration is the arithmetic mean of every elapsed sample in the
	// group. Valid only when HasSamples is true; rendered as "N/A"
	// otherwise.
	AvgDuration float64
	HasSamples  bool

	// SuccessRate is successful-repetition-count over attempted-count,
	// as a percentage in [0, 100]. Zero attempts yields 0, never NaN.
	SuccessRate float64
}
