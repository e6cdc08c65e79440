/*
PURPOSE:
  Computes derived statistics over persisted run records: average
  duration and success rate per (backend, size) group.

REQUIREMENTS:
  User-specified:
  - Group rows must follow the planner's enumeration order, not the
    filesystem iteration order.
  - A group with no data still gets a row (rendered N/A), so the report
    matrix always matches the requested configuration matrix.
  - Metrics come from our own wall-clock samples only. The backend's
    self-reported statistics inside raw_output are never trusted.

  Implementation-discovered:
  - Zero attempts must yield a 0 success rate, not NaN; the sentinel
    for "no duration data" is a flag, not a magic float.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine, internal/cli report subcommand
  - Consumes: internal/model.Result

ERROR HANDLING:
  - Pure computation; cannot fail.

IMPLEMENTATION RULES:
  - Keep full float64 precision here. Rounding happens once, at render
    time, so the report has a single rounding policy.

USAGE:
  aggs := report.Aggregate(planner.Groups(backends, sizes), tasks, results)

RELATED FILES:
  - internal/report/render.go
  - internal/planner/planner.go

MAINTENANCE:
  - Update when new per-group metrics are added.
*/

package report

import (
	"github.com/kornia/smolvlm-bench/internal/model"
)

// Aggregate folds every result into its (backend, size) group and
// returns one record per group, in the given group order. Groups with
// no matching results (skipped, failed, or missing records) are still
// returned, marked as having no samples.
//
// Only results for the requested tasks participate: a store can hold
// records from an earlier, wider run, and a re-aggregation must match
// the currently requested matrix exactly.
func Aggregate(groups []model.Group, tasks []model.Task, results []model.Result) []model.Aggregate {
	requested := make(map[model.Task]bool, len(tasks))
	for _, task := range tasks {
		requested[task] = true
	}
	type bucket struct {
		sum      float64
		samples  int
		attempts int
	}
	buckets := make(map[model.Group]*bucket, len(groups))
	for _, g := range groups {
		buckets[g] = &bucket{}
	}

	for _, res := range results {
		if !requested[res.Descriptor.Task] {
			continue
		}
		g := model.Group{Backend: res.Descriptor.Backend, Size: res.Descriptor.Size}
		b, ok := buckets[g]
		if !ok {
			// Record for a group outside the requested matrix (stale file
			// from an earlier, wider run). Leave it out of this report.
			continue
		}
		for _, sec := range res.ElapsedSeconds {
			b.sum += sec
		}
		b.samples += len(res.ElapsedSeconds)
		b.attempts += res.Attempts
	}

	aggs := make([]model.Aggregate, 0, len(groups))
	for _, g := range groups {
		b := buckets[g]
		agg := model.Aggregate{Group: g}
		if b.samples > 0 {
			agg.HasSamples = true
			agg.AvgDuration = b.sum / float64(b.samples)
		}
		if b.attempts > 0 {
			agg.SuccessRate = float64(b.samples) / float64(b.attempts) * 100.0
		}
		aggs = append(aggs, agg)
	}
	return aggs
}
