package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kornia/smolvlm-bench/internal/config"
	"github.com/kornia/smolvlm-bench/internal/planner"
	"github.com/kornia/smolvlm-bench/internal/platform"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview the benchmark matrix without executing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyMatrixOverrides(cfg)

		class := platform.Detect()
		toolchain := platform.HasCUDAToolchain()
		fmt.Printf("Platform: %s (CUDA toolchain: %v)\n\n", class, toolchain)

		plan, skips := planner.Plan(class, toolchain, planner.Request{
			Backends:    cfg.Backends,
			Sizes:       cfg.Sizes,
			Tasks:       cfg.Tasks,
			Repetitions: cfg.Repetitions,
			WarmupCount: cfg.WarmupCount,
			ModelDir:    cfg.ModelDir,
		}, planner.DirExists)

		fmt.Printf("Planned (%d):\n", len(plan))
		for _, d := range plan {
			fmt.Printf("  %-32s reps=%d warmup=%d flags=%v\n", d.Key(), d.Repetitions, d.WarmupCount, d.ExtraFlags)
		}
		if len(skips) > 0 {
			fmt.Printf("\nSkipped (%d):\n", len(skips))
			for _, s := range skips {
				fmt.Printf("  %s\n", s)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	addMatrixFlags(planCmd)
}
