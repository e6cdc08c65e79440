/*
PURPOSE:
  Classifies the host the benchmarks run on (Jetson-class accelerator
  board, generic single-board computer, or desktop) and collects the
  system metadata printed in the summary report header.

REQUIREMENTS:
  User-specified:
  - Detection must never fail: an unrecognized host is a desktop.
  - The classification is computed once and cached for the process.

  Implementation-discovered:
  - Jetson boards ship /etc/nv_tegra_release; the device-tree model
    string is the fallback marker (also covers Raspberry Pi detection).
  - The CUDA toolchain check must be independent of the board check:
    a Jetson without nvcc installed gets the CPU fallback flags.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (once per run), internal/planner (via the
    classification value), internal/report (system info header).

ERROR HANDLING:
  - None surfaced. Every probe degrades to a safe default on error.

IMPLEMENTATION RULES:
  - All host access goes through the probes struct so tests can inject
    fake marker files without real hardware.
  - Do not shell out for detection; read /proc and /etc directly.

USAGE:
  class := platform.Detect()
  if class == platform.Jetson && platform.HasCUDAToolchain() { ... }

RELATED FILES:
  - internal/planner/planner.go (consumes the classification)
  - internal/report/render.go (consumes SystemInfo)

MAINTENANCE:
  - Add new marker files here when supporting new board families.
*/

package platform

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// Classification is the host hardware class. It is derived once per
// process and affects only which descriptors the planner emits.
type Classification string

const (
	// Jetson covers NVIDIA Tegra boards (Nano, Xavier, Orin): an
	// embedded accelerator where CUDA paths may be enabled.
	Jetson Classification = "jetson"
	// SingleBoard covers accelerator-less SBCs such as the Raspberry Pi.
	SingleBoard Classification = "single-board"
	// GenericDesktop is the safe default for any unrecognized host.
	GenericDesktop Classification = "generic-desktop"
)

// SystemInfo is the environment metadata block rendered at the top of
// the summary report.
type SystemInfo struct {
	Classification Classification
	CPUModel       string
	CPUCores       int
	TotalMemoryMB  int64
	Accelerator    string
}

// probes abstracts host inspection so classification is testable
// without the real filesystem.
type probes struct {
	readFile func(string) ([]byte, error)
	exists   func(string) bool
	lookPath func(string) (string, error)
}

func defaultProbes() probes {
	return probes{
		readFile: os.ReadFile,
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		lookPath: exec.LookPath,
	}
}

var (
	detectOnce sync.Once
	detected   Classification
)

// Detect classifies the current host. The result is cached: the first
// call probes the hardware markers, later calls return the same value.
func Detect() Classification {
	detectOnce.Do(func() {
		detected = classify(defaultProbes())
	})
	return detected
}

func classify(p probes) Classification {
	// The tegra release file is the strongest Jetson marker; JetPack
	// installs it on every L4T image.
	if p.exists("/etc/nv_tegra_release") {
		return Jetson
	}

	if data, err := p.readFile("/proc/device-tree/model"); err == nil {
		m := strings.ToLower(strings.TrimRight(string(data), "\x00\n"))
		switch {
		case strings.Contains(m, "jetson"), strings.Contains(m, "tegra"):
			return Jetson
		case strings.Contains(m, "raspberry pi"):
			return SingleBoard
		}
	}

	return GenericDesktop
}

// HasCUDAToolchain reports whether the CUDA toolchain is installed.
// This is deliberately independent of Detect(): the planner only
// enables the accelerator code path when BOTH checks pass.
func HasCUDAToolchain() bool {
	return hasToolchain(defaultProbes())
}

func hasToolchain(p probes) bool {
	if _, err := p.lookPath("nvcc"); err == nil {
		return true
	}
	return p.exists("/usr/local/cuda")
}

// Info collects the system metadata for the report header. Every field
// degrades to a placeholder rather than an error.
func Info() SystemInfo {
	return info(defaultProbes(), Detect())
}

func info(p probes, class Classification) SystemInfo {
	si := SystemInfo{
		Classification: class,
		CPUModel:       "unknown",
		CPUCores:       runtime.NumCPU(),
		Accelerator:    "none detected",
	}

	if data, err := p.readFile("/proc/cpuinfo"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			// "model name" on x86, "Model" or "Hardware" on ARM boards.
			key, val, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			if key == "model name" || key == "Model" || key == "Hardware" {
				si.CPUModel = strings.TrimSpace(val)
				break
			}
		}
	}

	if data, err := p.readFile("/proc/meminfo"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if !strings.HasPrefix(line, "MemTotal:") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if kb, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
					si.TotalMemoryMB = kb / 1024
				}
			}
			break
		}
	}

	switch {
	case class == Jetson:
		si.Accelerator = "NVIDIA Tegra (integrated)"
		if data, err := p.readFile("/proc/device-tree/model"); err == nil {
			if m := strings.TrimRight(string(data), "\x00\n"); m != "" {
				si.Accelerator = m
			}
		}
		if !hasToolchain(p) {
			si.Accelerator += " (CUDA toolchain missing)"
		}
	case hasToolchain(p):
		si.Accelerator = "CUDA toolchain present"
	}

	return si
}
