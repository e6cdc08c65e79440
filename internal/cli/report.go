/*
PURPOSE:
  Defines the 'report' subcommand.
  Re-aggregates an existing output directory into a fresh summary,
  without executing any benchmarks.

REQUIREMENTS:
  User-specified:
  - Support reprocessing persisted records after a crash or interrupt.

  Implementation-discovered:
  - Must use the same matrix flags as 'run' so the report rows line up
    with the originally requested configuration.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine (store + report path)

ERROR HANDLING:
  - Prints error if the output directory is unreadable.

IMPLEMENTATION RULES:
  - Never mutate records; reporting is read-only apart from the
    summary file itself.

USAGE:
  smolvlm-bench report -o ./benchmark_results

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/engine.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kornia/smolvlm-bench/internal/config"
	"github.com/kornia/smolvlm-bench/internal/engine"
	"github.com/kornia/smolvlm-bench/internal/output"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-aggregate persisted run records into a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyMatrixOverrides(cfg)

		e, err := engine.New(cfg)
		if err != nil {
			return err
		}

		doc, path, err := e.Report("")
		if err != nil {
			return err
		}
		fmt.Print(doc)
		output.Logger.Info("Summary written", "path", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	addMatrixFlags(reportCmd)
}
