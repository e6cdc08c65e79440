/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the full benchmark matrix.

REQUIREMENTS:
  User-specified:
  - Run the benchmarks.
  - Specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.
  - Exit non-zero only on setup failures; a run where individual
    combinations failed still exits zero with the failures in the report.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load fails or setup fails.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Engine.Run.

USAGE:
  smolvlm-bench run --backends candle --sizes small,medium

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kornia/smolvlm-bench/internal/config"
	"github.com/kornia/smolvlm-bench/internal/engine"
	"github.com/kornia/smolvlm-bench/internal/model"
)

var (
	backendsOverride []string
	sizesOverride    []string
	tasksOverride    []string
	repsOverride     int
	warmupOverride   int
	workersOverride  int
	timeoutOverride  time.Duration
	imageOverride    string
	modelDirOverride string
	outputOverride   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark matrix",
	Long: `Executes the full benchmark matrix against the installed SmolVLM backends.
The process follows a strict protocol:
1. Environment detection: classifies the host (Jetson / single-board / desktop)
   and verifies the CUDA toolchain before enabling accelerator flags.
2. Planning: expands backends x sizes x tasks, skipping combinations whose
   model artifacts are not installed.
3. Execution: per combination, runs warmup iterations (discarded) and timed
   repetitions (wall-clock, with a hard per-repetition timeout).

Each run's record is persisted immediately under <output-dir>/runs/, so a
crashed or interrupted session can still be reported with 'report'.`,
	Example: `  # Run with defaults (uses smolvlm_bench.yaml)
  smolvlm-bench run --image sample.jpg

  # Only the candle backend at the small size, five timed repetitions
  smolvlm-bench run --image sample.jpg --backends candle --sizes small -r 5

  # Tighter per-repetition budget for a quick smoke pass
  smolvlm-bench run --image sample.jpg --timeout 30s --repetitions 1 --warmup 0

  # Overlap warmups of different backends (timed runs stay sequential)
  smolvlm-bench run --image sample.jpg --warmup-workers 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 2. Overrides
		applyMatrixOverrides(cfg)
		if cmd.Flags().Changed("repetitions") {
			cfg.Repetitions = repsOverride
		}
		if cmd.Flags().Changed("warmup") {
			cfg.WarmupCount = warmupOverride
		}
		if cmd.Flags().Changed("warmup-workers") {
			cfg.WarmupWorkers = workersOverride
		}
		if cmd.Flags().Changed("timeout") {
			cfg.RunTimeout = config.Duration(timeoutOverride)
		}

		// 3. Execution
		return engine.Run(cfg)
	},
}

// applyMatrixOverrides copies the shared matrix/path flags onto cfg.
// Shared by run, plan and report so all three agree on the matrix.
func applyMatrixOverrides(cfg *config.Config) {
	if len(backendsOverride) > 0 {
		cfg.Backends = nil
		for _, b := range backendsOverride {
			cfg.Backends = append(cfg.Backends, model.Backend(b))
		}
	}
	if len(sizesOverride) > 0 {
		cfg.Sizes = nil
		for _, s := range sizesOverride {
			cfg.Sizes = append(cfg.Sizes, model.Size(s))
		}
	}
	if len(tasksOverride) > 0 {
		cfg.Tasks = nil
		for _, task := range tasksOverride {
			cfg.Tasks = append(cfg.Tasks, model.Task(task))
		}
	}
	if imageOverride != "" {
		cfg.ImagePath = imageOverride
	}
	if modelDirOverride != "" {
		cfg.ModelDir = modelDirOverride
	}
	if outputOverride != "" {
		cfg.OutputDir = outputOverride
	}
}

func addMatrixFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&backendsOverride, "backends", nil, "Comma-separated backends to benchmark (candle,onnx)")
	cmd.Flags().StringSliceVar(&sizesOverride, "sizes", nil, "Comma-separated model sizes (small,medium,large)")
	cmd.Flags().StringSliceVar(&tasksOverride, "tasks", nil, "Comma-separated tasks (description,objects)")
	cmd.Flags().StringVarP(&imageOverride, "image", "i", "", "Input image every repetition processes")
	cmd.Flags().StringVar(&modelDirOverride, "model-dir", "", "Root directory of downloaded model artifacts")
	cmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for records, logs and the summary")
}

func init() {
	rootCmd.AddCommand(runCmd)

	addMatrixFlags(runCmd)
	runCmd.Flags().IntVarP(&repsOverride, "repetitions", "r", 0, "Timed repetitions per combination")
	runCmd.Flags().IntVarP(&warmupOverride, "warmup", "w", 0, "Warmup iterations per combination (discarded)")
	runCmd.Flags().IntVar(&workersOverride, "warmup-workers", 0, "Warmup pool size; 0 keeps everything sequential")
	runCmd.Flags().DurationVar(&timeoutOverride, "timeout", 0, "Per-repetition timeout (e.g. 90s)")
}
