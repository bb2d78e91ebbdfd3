package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/facemotion/internal/config"
	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
	"github.com/banshee-data/facemotion/internal/facemesh/l3filters"
	"github.com/banshee-data/facemotion/internal/facemesh/l4colour"
	"github.com/banshee-data/facemotion/internal/facemesh/l5features"
	"github.com/banshee-data/facemotion/internal/testutil"
)

func sessionConfig(workers int) Config {
	return Config{
		DepthScale: 25,
		Filters: []l3filters.FilterSpec{
			l3filters.Spec(l3filters.AlignParams{Mode: l2align.Statistical, BaselineFrames: 10}),
			l3filters.Spec(l3filters.SmoothParams{Window: 3}),
		},
		Colour: &l4colour.Colorizer{Scale: l4colour.Sigma},
		Features: &l5features.Config{
			Displacement: l5features.DisplacementConfig{Enabled: true, Indices: []int{1, 61}},
			Quaternion:   l5features.QuaternionConfig{Enabled: true},
		},
		Workers: workers,
	}
}

func TestRun_FullSession(t *testing.T) {
	base := testutil.RandomPoints(l1frames.FaceMeshLandmarks, 5)
	frames := testutil.JitteredSession(base, 24, 0.002, 9)

	res, err := Run(context.Background(), frames, sessionConfig(0).WithSource("s01_smile.csv"))
	require.NoError(t, err)

	require.Len(t, res.Frames, 24)
	assert.Empty(t, res.Chain.StepErrors)
	for _, f := range res.Frames {
		assert.Len(t, f.Colors, l1frames.FaceMeshLandmarks)
		assert.Equal(t, []string{l3filters.NameKabsch, l3filters.NameRollingAvg}, l1frames.ProvenanceKinds(f))
		require.NotNil(t, f.Transform)
	}
	require.NotNil(t, res.Baseline)
	assert.Equal(t, 10, res.Baseline.SourceFrameCount())
	assert.Equal(t, 25.0, res.Baseline.DepthScale())

	require.NotNil(t, res.Features)
	assert.Len(t, res.Features.Rows, 24)
	assert.Equal(t, "s01_smile.csv", res.Features.Rows[0].Source)
	assert.Equal(t, []string{
		"displacement_landmark_1", "displacement_landmark_61",
		"quaternion_x", "quaternion_y", "quaternion_z", "quaternion_w", "rmsd", "rotation_deg",
	}, res.Features.Columns)

	assert.Nil(t, frames[0].Colors, "input must not be modified")
	assert.Empty(t, frames[0].Provenance)
}

func TestRun_DeterministicAcrossWorkers(t *testing.T) {
	base := testutil.RandomPoints(60, 2)
	frames := testutil.JitteredSession(base, 16, 0.01, 4)

	serial, err := Run(context.Background(), frames, sessionConfig(1))
	require.NoError(t, err)
	parallel, err := Run(context.Background(), frames, sessionConfig(4))
	require.NoError(t, err)

	if diff := cmp.Diff(serial.Frames, parallel.Frames); diff != "" {
		t.Errorf("frames differ between serial and parallel runs:\n%s", diff)
	}
	if diff := cmp.Diff(serial.Features, parallel.Features); diff != "" {
		t.Errorf("features differ between serial and parallel runs:\n%s", diff)
	}
}

func TestRun_DepthScaleAppliedOnce(t *testing.T) {
	pts := []l1frames.Vec3{{X: 1, Y: 2, Z: 3}, {Z: -1}, {X: 4}}
	frames := testutil.Frames(pts, pts)

	res, err := Run(context.Background(), frames, Config{DepthScale: 2})
	require.NoError(t, err)
	assert.Equal(t, l1frames.Vec3{X: 1, Y: 2, Z: 6}, res.Frames[1].Points[0])
	assert.Equal(t, l1frames.Vec3{Z: -2}, res.Frames[1].Points[1])
	assert.Equal(t, 3.0, frames[1].Points[0].Z)
	assert.Nil(t, res.Colouring)
	assert.Nil(t, res.Features)
}

func TestRun_ColourBaselineFollowsFilteredFrames(t *testing.T) {
	base := testutil.Transform(testutil.RandomPoints(l1frames.FaceMeshLandmarks, 3), l1frames.Identity3(), l1frames.Vec3{X: 5, Y: 5, Z: 5}, 1)
	frames := testutil.JitteredSession(base, 24, 0.002, 7)
	cfg := Config{
		DepthScale: 1,
		Filters: []l3filters.FilterSpec{
			l3filters.Spec(l3filters.AlignParams{Mode: l2align.Statistical, BaselineFrames: 10}),
			l3filters.Spec(l3filters.CenterParams{}),
		},
		Colour: &l4colour.Colorizer{Scale: l4colour.Sigma},
	}

	res, err := Run(context.Background(), frames, cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Colouring)
	require.NotNil(t, res.Baseline)
	assert.Equal(t, 10, res.Baseline.SourceFrameCount())

	// Centering moved the frames to the origin; the baseline must follow.
	var centroid l1frames.Vec3
	n := float64(res.Baseline.LandmarkCount())
	for _, p := range res.Baseline.MeanShape() {
		centroid.X += p.X / n
		centroid.Y += p.Y / n
		centroid.Z += p.Z / n
	}
	testutil.AssertVecNear(t, centroid, l1frames.Vec3{}, 1e-9, "baseline centroid")

	total := len(frames) * l1frames.FaceMeshLandmarks
	counts := res.Colouring.TierCounts
	assert.Equal(t, total, counts[0]+counts[1]+counts[2]+counts[3])
	assert.Less(t, counts[l4colour.TierBeyond3], total/10, "tier counts %v", counts)
}

func TestRun_ColourBaselineFallback(t *testing.T) {
	base := testutil.RandomPoints(8, 1)
	cfg := Config{DepthScale: 1, Colour: &l4colour.Colorizer{Scale: l4colour.Sigma}, ColourBaselineFrames: 4}

	res, err := Run(context.Background(), testutil.UnitStdSession(base, 6), cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Baseline)
	assert.Equal(t, 4, res.Baseline.SourceFrameCount())
	assert.Equal(t, 6, len(res.Colouring.Deviations))

	res, err = Run(context.Background(), testutil.Frames(base), cfg)
	require.NoError(t, err)
	assert.Nil(t, res.Colouring)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, l1frames.StepFailed, res.Warnings[0].Kind)
}

func TestRun_FailingStepDoesNotAbort(t *testing.T) {
	frames := testutil.Frames(testutil.UnitCube(), testutil.UnitCube())
	cfg := Config{
		DepthScale: 1,
		Filters: []l3filters.FilterSpec{
			l3filters.DecodeFilterSpec(l3filters.NameScale, []byte(`{"scale_factor": -1}`)),
			l3filters.DecodeFilterSpec("sharpen", nil),
			l3filters.Spec(l3filters.CenterParams{}),
		},
	}
	res, err := Run(context.Background(), frames, cfg)
	require.NoError(t, err)
	require.Len(t, res.Chain.StepErrors, 1)
	assert.Equal(t, []string{l3filters.NameCenter}, l1frames.ProvenanceKinds(res.Frames[0]))
	assert.Len(t, res.Warnings, 2)
}

func TestRun_ConfigErrorsFailFast(t *testing.T) {
	frames := testutil.Frames(testutil.UnitCube(), testutil.UnitCube())
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero depth scale", Config{}},
		{"negative workers", Config{DepthScale: 1, Workers: -1}},
		{"colour baseline of one", Config{DepthScale: 1, ColourBaselineFrames: 1}},
		{"bad colour cap", Config{DepthScale: 1, Colour: &l4colour.Colorizer{SigmaCap: 2}}},
		{"feature index beyond landmarks", Config{DepthScale: 1, Features: &l5features.Config{
			Displacement: l5features.DisplacementConfig{Enabled: true, Indices: []int{8}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(context.Background(), frames, tt.cfg)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, l1frames.ErrConfiguration), "got %v", err)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frames := testutil.JitteredSession(testutil.RandomPoints(10, 1), 4, 0.01, 1)
	_, err := Run(ctx, frames, sessionConfig(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigFromPipeline_Defaults(t *testing.T) {
	cfg, err := ConfigFromPipeline(config.MustLoadDefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 25.0, cfg.DepthScale)
	require.Len(t, cfg.Filters, 2)
	assert.Equal(t, l3filters.KindAlign, cfg.Filters[0].Kind)
	assert.Equal(t, l3filters.KindSmooth, cfg.Filters[1].Kind)
	require.NotNil(t, cfg.Colour)
	assert.Equal(t, l4colour.Sigma, cfg.Colour.Scale)
	assert.Equal(t, l4colour.PerPoint, cfg.Colour.Granularity)
	require.NotNil(t, cfg.Features)
	assert.Equal(t, []int{1, 13, 14, 61, 291}, cfg.Features.Displacement.Indices)
	assert.True(t, cfg.Features.Quaternion.Enabled)
}

func TestConfigFromPipeline_Overrides(t *testing.T) {
	pc, err := config.ParsePipelineConfig([]byte(`{
		"colour_mode": "continuous",
		"colour_granularity": "cluster",
		"features": {"displacement": {"enabled": true, "selection": "3,999", "clusters": ["cheeks"], "type": "baseline"}}
	}`))
	require.NoError(t, err)

	cfg, err := ConfigFromPipeline(pc)
	require.NoError(t, err)
	assert.Empty(t, cfg.Filters)
	assert.Equal(t, l4colour.Continuous, cfg.Colour.Scale)
	assert.Equal(t, l4colour.PerCluster, cfg.Colour.Granularity)
	require.NotNil(t, cfg.Features)
	assert.Equal(t, []int{3, 205, 425}, cfg.Features.Displacement.Indices)
	assert.Equal(t, l5features.Baseline, cfg.Features.Displacement.Mode)
	assert.False(t, cfg.Features.Quaternion.Enabled)

	src := cfg.WithSource("x.csv")
	assert.Equal(t, "x.csv", src.Features.Source)
	assert.Empty(t, cfg.Features.Source, "WithSource must copy")
}
