/*
PURPOSE:
  High-level engine that orchestrates the benchmarking process:
  setup checks, platform detection, matrix planning, per-descriptor
  execution, persistence, and the final summary.

REQUIREMENTS:
  User-specified:
  - Only setup errors (missing input image, unwritable output dir) are
    fatal. Run failures are recorded and the matrix continues.
  - Timed repetitions are strictly sequential: colocated runs contending
    for the same accelerator would make the measurements meaningless.
  - Operator interrupt stops before the next descriptor and never
    corrupts the store.

  Implementation-discovered:
  - The opt-in warmup pool is bounded by the number of distinct
    backends; warmups for one backend stay sequential among themselves
    so the pool only overlaps different backends' cache-priming I/O.
  - Results are persisted immediately after each descriptor so a crash
    mid-matrix loses at most the in-flight run.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/platform, internal/planner, internal/store,
    internal/report, internal/output

ERROR HANDLING:
  - Logs run failures but continues (resilience).
  - Returns an error only for the setup class.

IMPLEMENTATION RULES:
  - Iterate descriptors in plan order; never reorder.
  - Always render the summary, even when every combination failed.

USAGE:
  engine.Run(cfg)

RELATED FILES:
  - internal/engine/runner.go

MAINTENANCE:
  - Update phase numbering comments if phases are added.
*/

package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kornia/smolvlm-bench/internal/config"
	"github.com/kornia/smolvlm-bench/internal/model"
	"github.com/kornia/smolvlm-bench/internal/output"
	"github.com/kornia/smolvlm-bench/internal/planner"
	"github.com/kornia/smolvlm-bench/internal/platform"
	"github.com/kornia/smolvlm-bench/internal/report"
	"github.com/kornia/smolvlm-bench/internal/store"
)

// Engine drives one full benchmark session.
type Engine struct {
	cfg   *config.Config
	store *store.Store
}

// New creates an Engine with its result store rooted under the
// configured output directory.
func New(cfg *config.Config) (*Engine, error) {
	st, err := store.New(filepath.Join(cfg.OutputDir, "runs"))
	if err != nil {
		return nil, err
	}
	// Backend-emitted output files live apart from our run records so a
	// store listing never confuses one for the other.
	if err := os.MkdirAll(filepath.Join(cfg.OutputDir, "raw"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create raw output directory: %w", err)
	}
	return &Engine{cfg: cfg, store: st}, nil
}

// Run executes the full benchmark suite described by cfg. It returns an
// error only for setup failures; individual benchmark failures are
// captured in the persisted records and the summary.
func Run(cfg *config.Config) error {
	// 1. Setup. Failures here are fatal, nothing has executed yet.
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(cfg.ImagePath); err != nil {
		return fmt.Errorf("required input image %s not found: %w", cfg.ImagePath, err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}

	closeLog, logPath, err := output.StartTranscript(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer closeLog()

	e, err := New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionID := uuid.NewString()
	output.Logger.Info("Benchmark session starting",
		"session", sessionID, "log", logPath)

	// 2. Environment detection, once per process.
	class := platform.Detect()
	toolchain := platform.HasCUDAToolchain()
	output.Logger.Info("Platform detected",
		"classification", class, "cuda_toolchain", toolchain)

	// 3. Plan the matrix.
	plan, skips := planner.Plan(class, toolchain, planner.Request{
		Backends:    cfg.Backends,
		Sizes:       cfg.Sizes,
		Tasks:       cfg.Tasks,
		Repetitions: cfg.Repetitions,
		WarmupCount: cfg.WarmupCount,
		ModelDir:    cfg.ModelDir,
	}, planner.DirExists)

	for _, s := range skips {
		output.Logger.Info("Skipping combination", "reason", s.String())
	}
	output.Logger.Info("Plan ready",
		"planned", len(plan), "skipped", len(skips))

	// 4. Optional warmup pool, then the sequential timed phase.
	prewarmed := false
	if cfg.WarmupWorkers > 0 && cfg.WarmupCount > 0 && len(plan) > 0 {
		e.warmupPool(ctx, plan)
		prewarmed = true
	}

	for _, d := range plan {
		if ctx.Err() != nil {
			output.Logger.Warn("Interrupted, skipping remaining combinations")
			break
		}

		output.Logger.Info("Running benchmark",
			"key", d.Key(), "repetitions", d.Repetitions, "warmup", d.WarmupCount)

		r := e.runnerFor(d)
		if !prewarmed {
			r.Warmup(ctx, d)
		}
		res := r.Timed(ctx, d)
		res.SessionID = sessionID

		// Nothing attempted means nothing worth superseding the
		// previous record with (interrupt before the first repetition).
		if res.Attempts > 0 {
			if err := e.store.Persist(res); err != nil {
				output.Logger.Error("Failed to persist result", "key", d.Key(), "error", err)
			}
		}

		if res.Success {
			output.Logger.Info("Benchmark complete",
				"key", d.Key(), "samples", res.Successes())
		} else {
			output.Logger.Warn("Benchmark failed",
				"key", d.Key(), "samples", res.Successes(), "reason", res.FailureReason)
		}
	}

	// 5. Aggregate and report. This must succeed even if every single
	// combination above failed.
	doc, summaryPath, err := e.Report(sessionID)
	if err != nil {
		return err
	}
	fmt.Print(doc)
	output.Logger.Info("Summary written", "path", summaryPath)
	return nil
}

// Report aggregates whatever the store currently holds into a rendered
// summary document, writes it under the output directory, and returns
// both the document and its path.
func (e *Engine) Report(sessionID string) (string, string, error) {
	results, err := e.store.List()
	if err != nil {
		return "", "", err
	}

	groups := planner.Groups(e.cfg.Backends, e.cfg.Sizes)
	aggs := report.Aggregate(groups, e.cfg.Tasks, results)
	doc := report.Render(platform.Info(), sessionID, aggs, e.store.Dir(), time.Now())

	path, err := report.WriteSummary(e.cfg.OutputDir, doc)
	if err != nil {
		return "", "", err
	}
	return doc, path, nil
}

// runnerFor resolves the per-descriptor invocation details. The backend
// writes its own JSON result next to our run records, one file per key.
func (e *Engine) runnerFor(d model.Descriptor) *Runner {
	return NewRunner(
		e.cfg.BackendCommands[d.Backend],
		e.cfg.TaskPrompts[d.Task],
		e.cfg.ImagePath,
		filepath.Join(e.cfg.OutputDir, "raw", d.Key()+"_output.json"),
		e.cfg.RunTimeout.Std(),
	)
}

// warmupPool runs the warmup iterations for the whole plan with bounded
// concurrency: at most one worker per distinct backend, further capped
// by cfg.WarmupWorkers. Each worker handles its backend's descriptors
// sequentially, so the pool only overlaps different backends.
func (e *Engine) warmupPool(ctx context.Context, plan []model.Descriptor) {
	byBackend := make(map[model.Backend][]model.Descriptor)
	var order []model.Backend
	for _, d := range plan {
		if _, ok := byBackend[d.Backend]; !ok {
			order = append(order, d.Backend)
		}
		byBackend[d.Backend] = append(byBackend[d.Backend], d)
	}

	workers := e.cfg.WarmupWorkers
	if workers > len(order) {
		workers = len(order)
	}
	output.Logger.Info("Warmup pool starting",
		"backends", len(order), "workers", workers)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, backend := range order {
		descriptors := byBackend[backend]
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			for _, d := range descriptors {
				if ctx.Err() != nil {
					return
				}
				e.runnerFor(d).Warmup(ctx, d)
			}
		}()
	}
	wg.Wait()
}
