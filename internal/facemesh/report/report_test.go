package report

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
	"github.com/banshee-data/facemotion/internal/facemesh/l3filters"
	"github.com/banshee-data/facemotion/internal/facemesh/l4colour"
	"github.com/banshee-data/facemotion/internal/facemesh/l5features"
	"github.com/banshee-data/facemotion/internal/facemesh/pipeline"
	"github.com/banshee-data/facemotion/internal/fsutil"
	"github.com/banshee-data/facemotion/internal/testutil"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func processedSession(t *testing.T) *pipeline.Result {
	t.Helper()
	frames := testutil.JitteredSession(testutil.RandomPoints(40, 3), 12, 0.01, 7)
	res, err := pipeline.Run(context.Background(), frames, pipeline.Config{
		DepthScale: 1,
		Filters:    []l3filters.FilterSpec{l3filters.Spec(l3filters.AlignParams{Mode: l2align.Statistical, BaselineFrames: 6})},
		Colour:     &l4colour.Colorizer{Scale: l4colour.Sigma},
		Features: &l5features.Config{
			Displacement: l5features.DisplacementConfig{Enabled: true, Indices: []int{0, 5}},
		},
	})
	require.NoError(t, err)
	return res
}

func TestWriteSession(t *testing.T) {
	res := processedSession(t)
	mfs := fsutil.NewMemoryFileSystem()

	written, err := WriteSession(mfs, "/reports", "s01_smile", res)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("/reports", "s01_smile_rmsd.png"),
		filepath.Join("/reports", "s01_smile_displacement.png"),
		filepath.Join("/reports", "s01_smile_deviation.html"),
	}, written)

	for _, p := range written[:2] {
		data, err := mfs.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", p)
	}
	html, err := mfs.ReadFile(written[2])
	require.NoError(t, err)
	assert.Contains(t, string(html), "Deviation tiers")
	assert.Contains(t, string(html), l4colour.TierBeyond3.String())
}

func TestWriteSession_SanitisesName(t *testing.T) {
	res := processedSession(t)
	mfs := fsutil.NewMemoryFileSystem()

	written, err := WriteSession(mfs, "/reports", "../s01 smile", res)
	require.NoError(t, err)
	require.NotEmpty(t, written)
	assert.Equal(t, filepath.Join("/reports", "s01_smile_rmsd.png"), written[0])
}

func TestWriteSession_SkipsMissingData(t *testing.T) {
	frames := testutil.Frames(testutil.UnitCube(), testutil.UnitCube())
	res, err := pipeline.Run(context.Background(), frames, pipeline.Config{DepthScale: 1})
	require.NoError(t, err)

	written, err := WriteSession(fsutil.NewMemoryFileSystem(), "/reports", "empty", res)
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestRMSDPlot_NoTransforms(t *testing.T) {
	_, err := RMSDPlot(testutil.Frames(testutil.UnitCube()))
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestDisplacementPlot_NoDisplacementColumns(t *testing.T) {
	tbl := &l5features.Table{
		Columns: []string{l5features.ColQuatW},
		Rows:    []l5features.Row{{Values: []float64{1}}},
	}
	_, err := DisplacementPlot(tbl)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestDeviationPage(t *testing.T) {
	c := &l4colour.Colouring{
		Deviations: []l4colour.FrameDeviation{
			{FrameIndex: 0, Distances: []float64{0.1, 0.3}, Sigmas: []float64{0.5, 1.5}},
			{FrameIndex: 1, Distances: []float64{0.2, 0.2}, Sigmas: []float64{1, 1}},
		},
		TierCounts: [4]int{0, 2, 2, 0},
	}
	var buf bytes.Buffer
	require.NoError(t, DeviationPage(&buf, "s02_frown", c))
	out := buf.String()
	assert.Contains(t, out, "s02_frown")
	assert.Contains(t, out, "Mean deviation per frame")
	assert.True(t, strings.Contains(out, "sigma"))

	assert.True(t, errors.Is(DeviationPage(&buf, "x", nil), ErrNoData))
	assert.True(t, errors.Is(DeviationPage(&buf, "x", &l4colour.Colouring{}), ErrNoData))
}

func TestFrameX(t *testing.T) {
	frames := []l1frames.Frame{{Index: 0, Timestamp: 1.5, HasTimestamp: true}, {Index: 1}}
	x, label := frameX(frames)
	assert.Equal(t, "Frame", label)
	assert.Equal(t, 1.0, x(frames[1]))

	frames[1].HasTimestamp, frames[1].Timestamp = true, 2.5
	x, label = frameX(frames)
	assert.Equal(t, "Time (s)", label)
	assert.Equal(t, 2.5, x(frames[1]))
}
