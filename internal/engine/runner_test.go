package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kornia/smolvlm-bench/internal/model"
)

// writeScript drops an executable shell stub into dir and returns its
// path. Stubs stand in for backend binaries in these tests.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func descriptor(reps, warmup int) model.Descriptor {
	return model.Descriptor{
		Backend:      model.BackendCandle,
		Size:         model.SizeSmall,
		Task:         model.TaskDescription,
		Repetitions:  reps,
		WarmupCount:  warmup,
		ArtifactPath: "models/smolvlm/candle/Small",
	}
}

func newTestRunner(t *testing.T, command string) *Runner {
	t.Helper()
	return NewRunner(command, "Describe this image in detail.", "sample.jpg",
		filepath.Join(t.TempDir(), "out.json"), 10*time.Second)
}

func TestBuildArgsWhitelistedFieldsOnly(t *testing.T) {
	r := NewRunner("smolvlm-candle", "What objects are in this image?", "cat.jpg", "out.json", time.Second)
	d := descriptor(3, 1)
	d.ExtraFlags = []string{"--device", "cuda"}

	assert.Equal(t, []string{
		"--image", "cat.jpg",
		"--prompt", "What objects are in this image?",
		"--model-path", "models/smolvlm/candle/Small",
		"--model-size", "small",
		"--output", "out.json",
		"--device", "cuda",
	}, r.buildArgs(d))
}

func TestTimedAllRepetitionsSucceed(t *testing.T) {
	r := newTestRunner(t, writeScript(t, t.TempDir(), "ok.sh", "exit 0\n"))

	res := r.Timed(context.Background(), descriptor(3, 0))
	assert.True(t, res.Success)
	assert.Empty(t, res.FailureReason)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, res.ElapsedSeconds, 3)
	for _, s := range res.ElapsedSeconds {
		assert.Positive(t, s)
	}
}

func TestTimedNonZeroExitContributesNoSample(t *testing.T) {
	r := newTestRunner(t, writeScript(t, t.TempDir(), "fail.sh", "echo 'model load failed' >&2\nexit 3\n"))

	res := r.Timed(context.Background(), descriptor(2, 0))
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Empty(t, res.ElapsedSeconds, "failed repetitions must not fabricate samples")
	assert.Contains(t, res.FailureReason, "model load failed")
}

func TestTimedPartialSuccessPreserved(t *testing.T) {
	dir := t.TempDir()
	counter := filepath.Join(dir, "count")
	// Succeeds only on the first invocation.
	script := writeScript(t, dir, "flaky.sh",
		"if [ -f "+counter+" ]; then exit 1; fi\ntouch "+counter+"\nexit 0\n")
	r := newTestRunner(t, script)

	res := r.Timed(context.Background(), descriptor(3, 0))
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, res.ElapsedSeconds, 1, "the successful repetition keeps its sample")
	assert.LessOrEqual(t, len(res.ElapsedSeconds), res.Attempts)
}

func TestTimedMissingBackendBinary(t *testing.T) {
	r := newTestRunner(t, "smolvlm-backend-that-does-not-exist")

	res := r.Timed(context.Background(), descriptor(3, 0))
	assert.False(t, res.Success)
	assert.Contains(t, res.FailureReason, "not installed")
	assert.Equal(t, 3, res.Attempts)
	assert.Empty(t, res.ElapsedSeconds)
}

func TestTimedTimeoutKillsHungBackend(t *testing.T) {
	r := newTestRunner(t, writeScript(t, t.TempDir(), "hang.sh", "exec sleep 5\n"))
	r.Timeout = 1 * time.Second

	start := time.Now()
	res := r.Timed(context.Background(), descriptor(1, 0))
	wall := time.Since(start)

	assert.False(t, res.Success)
	assert.Equal(t, "timeout", res.FailureReason)
	assert.Empty(t, res.ElapsedSeconds)
	assert.GreaterOrEqual(t, wall, 1*time.Second)
	assert.Less(t, wall, 1500*time.Millisecond, "the hung process must be killed, not awaited")
}

func TestWarmupFailuresDoNotAbort(t *testing.T) {
	r := newTestRunner(t, writeScript(t, t.TempDir(), "fail.sh", "exit 1\n"))

	// Must return normally; warmup failures are logged only.
	r.Warmup(context.Background(), descriptor(1, 3))
}

func TestRawOutputPassedThroughVerbatim(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "emit.sh", `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output" ]; then out="$2"; fi
  shift
done
printf '{"results":[{"avg_duration":1.2}]}' > "$out"
exit 0
`)
	r := newTestRunner(t, script)

	res := r.Timed(context.Background(), descriptor(1, 0))
	require.True(t, res.Success)
	assert.JSONEq(t, `{"results":[{"avg_duration":1.2}]}`, string(res.RawOutput))
}

func TestStaleOutputArtifactNotEmbeddedInFailedRun(t *testing.T) {
	r := newTestRunner(t, writeScript(t, t.TempDir(), "fail.sh", "exit 1\n"))

	// Artifact left behind by an earlier session for the same key.
	require.NoError(t, os.WriteFile(r.OutputPath, []byte(`{"results":[{"avg_duration":9.9}]}`), 0644))

	res := r.Timed(context.Background(), descriptor(2, 0))
	assert.False(t, res.Success)
	assert.Nil(t, res.RawOutput, "a run that emitted nothing must record nothing")
}

func TestInvalidRawOutputDropped(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "garbage.sh", `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output" ]; then out="$2"; fi
  shift
done
printf 'not json at all' > "$out"
exit 0
`)
	r := newTestRunner(t, script)

	res := r.Timed(context.Background(), descriptor(1, 0))
	require.True(t, res.Success)
	assert.Nil(t, res.RawOutput)
}

func TestTimedCancelledContextStopsEarly(t *testing.T) {
	r := newTestRunner(t, writeScript(t, t.TempDir(), "ok.sh", "exit 0\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Timed(ctx, descriptor(3, 0))
	assert.False(t, res.Success)
	assert.Equal(t, "interrupted", res.FailureReason)
	assert.Zero(t, res.Attempts)
}
