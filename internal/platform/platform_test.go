package platform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProbes(files map[string]string, pathBins map[string]bool) probes {
	return probes{
		readFile: func(path string) ([]byte, error) {
			if content, ok := files[path]; ok {
				return []byte(content), nil
			}
			return nil, errors.New("no such file")
		},
		exists: func(path string) bool {
			_, ok := files[path]
			return ok
		},
		lookPath: func(bin string) (string, error) {
			if pathBins[bin] {
				return "/usr/bin/" + bin, nil
			}
			return "", errors.New("not found")
		},
	}
}

func TestClassifyTegraReleaseFile(t *testing.T) {
	p := fakeProbes(map[string]string{
		"/etc/nv_tegra_release": "# R35 (release), REVISION: 4.1",
	}, nil)
	assert.Equal(t, Jetson, classify(p))
}

func TestClassifyDeviceTreeModel(t *testing.T) {
	cases := []struct {
		model string
		want  Classification
	}{
		{"NVIDIA Jetson Orin Nano Developer Kit\x00", Jetson},
		{"NVIDIA Tegra X1\x00", Jetson},
		{"Raspberry Pi 4 Model B Rev 1.4\x00", SingleBoard},
		{"Some Vendor Board\x00", GenericDesktop},
	}
	for _, tc := range cases {
		p := fakeProbes(map[string]string{
			"/proc/device-tree/model": tc.model,
		}, nil)
		assert.Equal(t, tc.want, classify(p), "model %q", tc.model)
	}
}

func TestClassifyUnrecognizedHostDefaultsToDesktop(t *testing.T) {
	// No markers at all must never fail, only fall back.
	assert.Equal(t, GenericDesktop, classify(fakeProbes(nil, nil)))
}

func TestToolchainDetection(t *testing.T) {
	assert.True(t, hasToolchain(fakeProbes(nil, map[string]bool{"nvcc": true})))
	assert.True(t, hasToolchain(fakeProbes(map[string]string{"/usr/local/cuda": ""}, nil)))
	assert.False(t, hasToolchain(fakeProbes(nil, nil)))
}

func TestInfoReadsProcFiles(t *testing.T) {
	files := map[string]string{
		"/proc/cpuinfo": "processor\t: 0\nmodel name\t: ARMv8 Processor rev 1 (v8l)\n",
		"/proc/meminfo": "MemTotal:        8048572 kB\nMemFree:         123456 kB\n",
	}
	files["/proc/device-tree/model"] = "NVIDIA Jetson Orin Nano\x00"
	p := fakeProbes(files, map[string]bool{"nvcc": true})

	si := info(p, Jetson)
	assert.Equal(t, Jetson, si.Classification)
	assert.Equal(t, "ARMv8 Processor rev 1 (v8l)", si.CPUModel)
	assert.Equal(t, int64(7859), si.TotalMemoryMB)
	assert.Equal(t, "NVIDIA Jetson Orin Nano", si.Accelerator)
	require.Positive(t, si.CPUCores)
}

func TestInfoDegradesGracefully(t *testing.T) {
	si := info(fakeProbes(nil, nil), GenericDesktop)
	assert.Equal(t, "unknown", si.CPUModel)
	assert.Equal(t, int64(0), si.TotalMemoryMB)
	assert.Equal(t, "none detected", si.Accelerator)
}
