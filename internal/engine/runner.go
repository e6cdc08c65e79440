/*
PURPOSE:
  Executes a single run descriptor: builds the backend process
  invocation, runs warmup and timed repetitions, and wraps the measured
  outcome in a Result.

REQUIREMENTS:
  User-specified:
  - Wall-clock timing with monotonic-clock precision.
  - A mandatory per-repetition timeout; a hung backend is killed and
    recorded as failure(timeout), it never stalls the matrix.
  - Warmup failures are logged but never abort the run.
  - Partial successes are preserved: a failed repetition contributes no
    sample, successful ones keep theirs.

  Implementation-discovered:
  - Argv is built exclusively from whitelisted descriptor fields plus
    runner-owned paths. No shell, no string interpolation of anything
    external, so the command-injection class of bugs cannot exist here.
  - The backend's output file is opaque pass-through. We only check it
    exists and is valid JSON before embedding it in the record.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/engine.go
  - Uses: internal/model, internal/output

ERROR HANDLING:
  - Run failures are data (FailureReason on the Result), not errors.
  - Only programmer errors (nil descriptor fields) would surface as
    process exits, and Validate() upstream prevents those.

IMPLEMENTATION RULES:
  - Use exec.CommandContext so the timeout actually kills the child.
  - time.Since carries the monotonic reading; never compare wall stamps.

USAGE:
  r := engine.NewRunner(cmd, prompt, image, outPath, timeout)
  res := r.Run(ctx, desc)

RELATED FILES:
  - internal/engine/engine.go
  - internal/model/types.go

MAINTENANCE:
  - Update buildArgs when the backend CLI contract changes.
*/

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kornia/smolvlm-bench/internal/model"
	"github.com/kornia/smolvlm-bench/internal/output"
)

// stderrTailBytes bounds how much backend stderr we keep for the
// failure reason. Full transcripts belong to the backend's own logs.
const stderrTailBytes = 256

var errTimeout = errors.New("timeout")

// Runner invokes one backend binary for one descriptor.
type Runner struct {
	// Command is the backend executable; relative names resolve on PATH.
	Command string
	// Prompt is the task prompt text passed to the backend.
	Prompt string
	// ImagePath is the input image every repetition processes.
	ImagePath string
	// OutputPath is where the backend is asked to write its JSON result.
	OutputPath string
	// Timeout bounds each individual invocation.
	Timeout time.Duration
}

// NewRunner builds a Runner for a resolved backend command.
func NewRunner(command, prompt, imagePath, outputPath string, timeout time.Duration) *Runner {
	return &Runner{
		Command:    command,
		Prompt:     prompt,
		ImagePath:  imagePath,
		OutputPath: outputPath,
		Timeout:    timeout,
	}
}

// buildArgs constructs the backend argv from whitelisted descriptor
// fields only.
func (r *Runner) buildArgs(d model.Descriptor) []string {
	args := []string{
		"--image", r.ImagePath,
		"--prompt", r.Prompt,
		"--model-path", d.ArtifactPath,
		"--model-size", string(d.Size),
		"--output", r.OutputPath,
	}
	return append(args, d.ExtraFlags...)
}

// execOnce runs the backend once and returns the monotonic elapsed
// time. The error is errTimeout when the per-repetition budget expired,
// otherwise the process failure.
func (r *Runner) execOnce(ctx context.Context, d model.Descriptor) (time.Duration, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Command, r.buildArgs(d)...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// If the killed backend left a grandchild holding the output pipes,
	// give up on draining them instead of hanging past the timeout.
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		return elapsed, nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return elapsed, errTimeout
	}
	if tail := stderrTail(stderr.Bytes()); tail != "" {
		return elapsed, fmt.Errorf("%w: %s", err, tail)
	}
	return elapsed, err
}

func stderrTail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTailBytes {
		s = s[len(s)-stderrTailBytes:]
	}
	return s
}

// Warmup executes the descriptor's warmup iterations, discarding timing
// and output. Failures are logged and swallowed: warmups exist only to
// stabilize the backend's caches before the timed phase.
func (r *Runner) Warmup(ctx context.Context, d model.Descriptor) {
	for i := 0; i < d.WarmupCount; i++ {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.execOnce(ctx, d); err != nil {
			output.Logger.Warn("Warmup iteration failed",
				"key", d.Key(), "iteration", i+1, "error", err)
		}
	}
}

// Timed executes the descriptor's timed repetitions and returns the
// Result. Each repetition that completes contributes one elapsed
// sample; failed repetitions contribute nothing but still count as
// attempts. Samples are never fabricated.
func (r *Runner) Timed(ctx context.Context, d model.Descriptor) model.Result {
	res := model.Result{
		Descriptor: d,
		Timestamp:  time.Now().UTC(),
		Success:    true,
	}

	// Clear any output artifact left by a warmup or an earlier session,
	// so the record only ever embeds what this timed phase emitted.
	os.Remove(r.OutputPath)

	// A missing backend binary fails every repetition identically;
	// short-circuit instead of spawning doomed processes.
	if _, err := exec.LookPath(r.Command); err != nil {
		res.Success = false
		res.FailureReason = fmt.Sprintf("backend not installed: %v", err)
		res.Attempts = d.Repetitions
		return res
	}

	for i := 0; i < d.Repetitions; i++ {
		if ctx.Err() != nil {
			res.Success = false
			res.FailureReason = "interrupted"
			break
		}
		res.Attempts++

		elapsed, err := r.execOnce(ctx, d)
		if err != nil {
			res.Success = false
			res.FailureReason = err.Error()
			output.Logger.Warn("Repetition failed",
				"key", d.Key(), "repetition", i+1, "error", err)
			continue
		}
		res.ElapsedSeconds = append(res.ElapsedSeconds, elapsed.Seconds())
	}

	res.RawOutput = r.readRawOutput(d)
	return res
}

// Run executes warmups then the timed phase. Callers that pre-warm via
// the pool use Timed directly.
func (r *Runner) Run(ctx context.Context, d model.Descriptor) model.Result {
	r.Warmup(ctx, d)
	return r.Timed(ctx, d)
}

// readRawOutput picks up the JSON document the backend wrote, if any.
// The schema is the backend's business; we only require valid JSON so
// the record itself stays parseable.
func (r *Runner) readRawOutput(d model.Descriptor) json.RawMessage {
	data, err := os.ReadFile(r.OutputPath)
	if err != nil {
		return nil
	}
	if !json.Valid(data) {
		output.Logger.Warn("Backend output is not valid JSON, dropping from record",
			"key", d.Key(), "path", r.OutputPath)
		return nil
	}
	return json.RawMessage(data)
}
