/*
PURPOSE:
  Renders the aggregated benchmark statistics as the plain-text summary
  document: environment header, one block per group, pointer to the raw
  per-run records.

REQUIREMENTS:
  User-specified:
  - Missing data renders as "N/A", never as a dropped row.
  - The summary must be producible even when every combination failed.

  Implementation-discovered:
  - One rounding policy for the whole document: one decimal place, for
    both seconds and percentages.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine, internal/cli report subcommand
  - Consumes: internal/model.Aggregate, internal/platform.SystemInfo

ERROR HANDLING:
  - Rendering is pure formatting; WriteSummary only fails on I/O.

IMPLEMENTATION RULES:
  - No terminal styling. The document doubles as an artifact committed
    to CI runs and diffed between boards.

USAGE:
  doc := report.Render(info, sessionID, aggs, storeDir, time.Now())
  path, err := report.WriteSummary(outputDir, doc)

RELATED FILES:
  - internal/report/aggregate.go
  - internal/platform/platform.go

MAINTENANCE:
  - Keep the layout stable; downstream scripts grep these labels.
*/

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kornia/smolvlm-bench/internal/model"
	"github.com/kornia/smolvlm-bench/internal/platform"
)

const rule = "=============================================="

// Render produces the summary document. Groups are rendered in the
// order given, which callers derive from the planner enumeration so the
// report shape always matches the requested matrix.
func Render(info platform.SystemInfo, sessionID string, aggs []model.Aggregate, storeDir string, generated time.Time) string {
	var b strings.Builder

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, " SmolVLM Benchmark Summary")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Generated:   %s\n", generated.Format(time.RFC3339))
	if sessionID != "" {
		fmt.Fprintf(&b, "Session:     %s\n", sessionID)
	}
	fmt.Fprintf(&b, "Platform:    %s\n", info.Classification)
	fmt.Fprintf(&b, "CPU:         %s (%d cores)\n", info.CPUModel, info.CPUCores)
	if info.TotalMemoryMB > 0 {
		fmt.Fprintf(&b, "Memory:      %d MB\n", info.TotalMemoryMB)
	} else {
		fmt.Fprintf(&b, "Memory:      N/A\n")
	}
	fmt.Fprintf(&b, "Accelerator: %s\n", info.Accelerator)
	fmt.Fprintln(&b, rule)

	for _, agg := range aggs {
		fmt.Fprintf(&b, "\nBackend: %-8s Size: %s\n", agg.Backend, agg.Size)
		if agg.HasSamples {
			fmt.Fprintf(&b, "  Avg Duration: %.1f s\n", agg.AvgDuration)
		} else {
			fmt.Fprintf(&b, "  Avg Duration: N/A\n")
		}
		fmt.Fprintf(&b, "  Success Rate: %.1f %%\n", agg.SuccessRate)
	}

	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "Raw per-run JSON records: %s\n", storeDir)

	return b.String()
}

// WriteSummary writes the rendered document to a timestamped file under
// dir and returns its path.
func WriteSummary(dir, doc string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("benchmark_summary_%s.txt", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		return "", fmt.Errorf("failed to write summary %s: %w", path, err)
	}
	return path, nil
}
