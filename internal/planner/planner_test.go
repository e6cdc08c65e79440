package planner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kornia/smolvlm-bench/internal/model"
	"github.com/kornia/smolvlm-bench/internal/platform"
)

var fullRequest = Request{
	Backends:    []model.Backend{model.BackendCandle, model.BackendOnnx},
	Sizes:       []model.Size{model.SizeSmall, model.SizeMedium},
	Tasks:       []model.Task{model.TaskDescription, model.TaskObjects},
	Repetitions: 3,
	WarmupCount: 1,
	ModelDir:    "models/smolvlm",
}

func allPresent(string) bool  { return true }
func nonePresent(string) bool { return false }

func TestPlanFullCrossProduct(t *testing.T) {
	plan, skips := Plan(platform.GenericDesktop, false, fullRequest, allPresent)
	require.Len(t, plan, 8)
	assert.Empty(t, skips)

	for _, d := range plan {
		assert.Equal(t, 3, d.Repetitions)
		assert.Equal(t, 1, d.WarmupCount)
	}
}

func TestPlanOrderingIsBackendMajorTaskInnermost(t *testing.T) {
	plan, _ := Plan(platform.GenericDesktop, false, fullRequest, allPresent)

	var keys []string
	for _, d := range plan {
		keys = append(keys, d.Key())
	}
	assert.Equal(t, []string{
		"candle_small_description",
		"candle_small_objects",
		"candle_medium_description",
		"candle_medium_objects",
		"onnx_small_description",
		"onnx_small_objects",
		"onnx_medium_description",
		"onnx_medium_objects",
	}, keys)
}

func TestPlanResolvesCapitalizedArtifactPath(t *testing.T) {
	plan, _ := Plan(platform.GenericDesktop, false, fullRequest, allPresent)
	assert.Equal(t, filepath.Join("models/smolvlm", "candle", "Small"), plan[0].ArtifactPath)
}

func TestPlanFiltersMissingArtifacts(t *testing.T) {
	// Only candle/Small is installed.
	exists := func(path string) bool {
		return strings.HasSuffix(path, filepath.Join("candle", "Small"))
	}

	plan, skips := Plan(platform.GenericDesktop, false, fullRequest, exists)
	require.Len(t, plan, 2) // both tasks for candle/small
	assert.Len(t, skips, 6)

	for _, d := range plan {
		assert.Equal(t, model.BackendCandle, d.Backend)
		assert.Equal(t, model.SizeSmall, d.Size)
	}
	for _, s := range skips {
		assert.Contains(t, s.Reason, "not found")
	}
}

func TestPlanAllMissingYieldsEmptyPlan(t *testing.T) {
	plan, skips := Plan(platform.GenericDesktop, false, fullRequest, nonePresent)
	assert.Empty(t, plan)
	assert.Len(t, skips, 8)
}

func TestDeviceFlagStateMachine(t *testing.T) {
	cases := []struct {
		name      string
		class     platform.Classification
		toolchain bool
		want      []string
	}{
		{"jetson with toolchain", platform.Jetson, true, []string{"--device", "cuda"}},
		{"jetson without toolchain", platform.Jetson, false, []string{"--device", "cpu"}},
		{"desktop with toolchain", platform.GenericDesktop, true, nil},
		{"desktop without toolchain", platform.GenericDesktop, false, nil},
		{"single-board", platform.SingleBoard, true, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, _ := Plan(tc.class, tc.toolchain, fullRequest, allPresent)
			require.NotEmpty(t, plan)
			assert.Equal(t, tc.want, plan[0].ExtraFlags)
		})
	}
}

func TestPlanAgainstSeededTempDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "candle", "Small"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "onnx", "Medium"), 0755))

	req := fullRequest
	req.ModelDir = dir

	plan, skips := Plan(platform.GenericDesktop, false, req, DirExists)
	require.Len(t, plan, 4)
	assert.Len(t, skips, 4)

	assert.Equal(t, "candle_small_description", plan[0].Key())
	assert.Equal(t, "onnx_medium_objects", plan[3].Key())
}

func TestGroupsCoverFullMatrixInPlanOrder(t *testing.T) {
	groups := Groups(fullRequest.Backends, fullRequest.Sizes)
	assert.Equal(t, []model.Group{
		{Backend: model.BackendCandle, Size: model.SizeSmall},
		{Backend: model.BackendCandle, Size: model.SizeMedium},
		{Backend: model.BackendOnnx, Size: model.SizeSmall},
		{Backend: model.BackendOnnx, Size: model.SizeMedium},
	}, groups)
}
