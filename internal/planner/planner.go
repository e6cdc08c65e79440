/*
PURPOSE:
  Expands the requested backend × size × task matrix into executable
  run descriptors, filtering out combinations whose model artifacts are
  not installed and annotating the rest with platform device flags.

REQUIREMENTS:
  User-specified:
  - Missing artifacts are an expected partial-install scenario: drop the
    combination with a skip notice, never an error.
  - Accelerator flags appear only when the host is a Jetson AND the CUDA
    toolchain was independently verified. No hidden third state.

  Implementation-discovered:
  - The enumeration order (backend-major, size-minor, task innermost) is
    load-bearing: it is the execution order and the ordering the reporter
    uses for its rows, so it must be stable and filesystem-independent.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine, internal/cli (plan subcommand)
  - Uses: internal/model, internal/platform

ERROR HANDLING:
  - Plan cannot fail; the only "errors" it produces are typed Skip
    notices carried alongside the descriptors.

IMPLEMENTATION RULES:
  - Pure in-memory expansion. Filesystem access happens only through the
    injected existence predicate so tests need no real artifact tree.
  - Never mutate a descriptor after appending it to the plan.

USAGE:
  plan, skips := planner.Plan(class, toolchain, req, planner.DirExists)

RELATED FILES:
  - internal/model/types.go
  - internal/engine/engine.go

MAINTENANCE:
  - Update deviceFlags when backends grow new device selectors.
*/

package planner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kornia/smolvlm-bench/internal/model"
	"github.com/kornia/smolvlm-bench/internal/platform"
)

// Request is the caller's description of the desired benchmark matrix.
type Request struct {
	Backends    []model.Backend
	Sizes       []model.Size
	Tasks       []model.Task
	Repetitions int
	WarmupCount int
	// ModelDir is the artifact root; a combination is planned only when
	// <ModelDir>/<backend>/<CapitalizedSize> exists.
	ModelDir string
}

// Skip records why a requested combination was omitted from the plan.
// Skips are informational, not failures.
type Skip struct {
	Backend model.Backend
	Size    model.Size
	Task    model.Task
	Reason  string
}

func (s Skip) String() string {
	return fmt.Sprintf("%s/%s/%s: %s", s.Backend, s.Size, s.Task, s.Reason)
}

// ExistsFunc is the artifact-presence predicate. Production code passes
// DirExists; tests inject a fake.
type ExistsFunc func(path string) bool

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// Plan expands the cross-product of req's backends × sizes × tasks into
// descriptors, in backend-major, size-minor, task-innermost order. That
// order is preserved through execution and reporting.
//
// Combinations whose artifact directory fails the exists predicate are
// returned as skips instead. Device flags are resolved once per call
// from (class, toolchain) and stamped onto every planned descriptor.
func Plan(class platform.Classification, toolchain bool, req Request, exists ExistsFunc) ([]model.Descriptor, []Skip) {
	flags := deviceFlags(class, toolchain)

	var plan []model.Descriptor
	var skips []Skip

	for _, backend := range req.Backends {
		for _, size := range req.Sizes {
			artifact := filepath.Join(req.ModelDir, string(backend), size.Dir())
			present := exists(artifact)
			for _, task := range req.Tasks {
				if !present {
					skips = append(skips, Skip{
						Backend: backend,
						Size:    size,
						Task:    task,
						Reason:  fmt.Sprintf("model artifacts not found at %s", artifact),
					})
					continue
				}
				plan = append(plan, model.Descriptor{
					Backend:      backend,
					Size:         size,
					Task:         task,
					Repetitions:  req.Repetitions,
					WarmupCount:  req.WarmupCount,
					ArtifactPath: artifact,
					ExtraFlags:   flags,
				})
			}
		}
	}

	return plan, skips
}

// deviceFlags implements the two-state accelerator substitution: on a
// Jetson the device flag is cuda when the toolchain verification passed
// and the cpu fallback when it did not. Other hosts get no device flag
// and rely on the backend's own default.
func deviceFlags(class platform.Classification, toolchain bool) []string {
	if class != platform.Jetson {
		return nil
	}
	if toolchain {
		return []string{"--device", "cuda"}
	}
	return []string{"--device", "cpu"}
}

// Groups returns the (backend, size) pairs of the full requested matrix
// in plan order, ignoring artifact presence. The reporter uses this so
// skipped combinations still render as N/A rows.
func Groups(backends []model.Backend, sizes []model.Size) []model.Group {
	groups := make([]model.Group, 0, len(backends)*len(sizes))
	for _, backend := range backends {
		for _, size := range sizes {
			groups = append(groups, model.Group{Backend: backend, Size: size})
		}
	}
	return groups
}
