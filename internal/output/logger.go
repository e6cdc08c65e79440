/*
PURPOSE:
  Provides a structured logger for smolvlm-bench.
  Wraps slog for consistent output, with an optional tee into a
  timestamped transcript file alongside the benchmark results.

REQUIREMENTS:
  User-specified:
  - "Sane" CLI output. Not spammy.
  - The full console transcript must also land in a log file so a run
    can be audited after the fact.

  Implementation-discovered:
  - Needs to support Info/Warn/Error levels.

ARCHITECTURE INTEGRATION:
  - Used everywhere.

ERROR HANDLING:
  - Transcript setup returns an error; logging itself never does.

IMPLEMENTATION RULES:
  - Use `log/slog` (Go 1.21+).

USAGE:
  output.Logger.Info("message", "key", "value")
  closeFn, path, err := output.StartTranscript(outputDir)
  defer closeFn()

RELATED FILES:
  - All.

MAINTENANCE:
  - Configurable log levels?
*/

package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var Logger *slog.Logger

func init() {
	// Default generic logger.
	Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// SetLogger allows overriding the default logger (e.g. for testing).
func SetLogger(l *slog.Logger) {
	Logger = l
}

// StartTranscript redirects the global logger through a tee so every
// line lands both on stdout and in a timestamped log file under dir.
// It returns a close function restoring the plain stdout logger, and
// the transcript path.
func StartTranscript(dir string) (func() error, string, error) {
	path := filepath.Join(dir, fmt.Sprintf("benchmark_log_%s.log", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create transcript log %s: %w", path, err)
	}

	Logger = slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, f), nil))

	closeFn := func() error {
		Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
		return f.Close()
	}
	return closeFn, path, nil
}
