package l4colour

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l2align"
	"github.com/banshee-data/facemotion/internal/testutil"
)

func unitBaseline(t *testing.T, base []l1frames.Vec3) *l2align.StatisticalBaseline {
	t.Helper()
	b, err := l2align.BuildBaseline(testutil.UnitStdSession(base, 30), 30, 1)
	require.NoError(t, err)
	return b
}

func assertRGBNear(t *testing.T, want, got l1frames.RGB) {
	t.Helper()
	const tol = 1e-9
	if math.Abs(want.R-got.R) > tol || math.Abs(want.G-got.G) > tol || math.Abs(want.B-got.B) > tol {
		t.Errorf("colour = %+v, want %+v", got, want)
	}
}

func displaced(base []l1frames.Vec3, by l1frames.Vec3) l1frames.Frame {
	pts := make([]l1frames.Vec3, len(base))
	for i, p := range base {
		pts[i] = l1frames.Vec3{X: p.X + by.X, Y: p.Y + by.Y, Z: p.Z + by.Z}
	}
	return l1frames.Frame{Index: 99, Points: pts}
}

func TestColour_TwoUnitDisplacementIsYellowTier(t *testing.T) {
	base := testutil.RandomPoints(l1frames.FaceMeshLandmarks, 4)
	b := unitBaseline(t, base)
	query := displaced(base, l1frames.Vec3{X: 2})

	res, err := Colorizer{Granularity: PerPoint, Scale: Sigma}.Colour([]l1frames.Frame{query}, b)
	require.NoError(t, err)
	require.Len(t, res.Deviations, 1)
	for j, tier := range res.Deviations[0].Tiers {
		if tier != TierBetween1And3 {
			t.Fatalf("landmark %d: tier %s (σ=%.4f), want %s", j, tier, res.Deviations[0].Sigmas[j], TierBetween1And3)
		}
	}
	assert.Equal(t, l1frames.FaceMeshLandmarks, res.TierCounts[TierBetween1And3])
	assert.InDelta(t, 2/math.Sqrt(3), res.Deviations[0].Sigmas[0], 1e-9)
	assert.Nil(t, query.Colors, "input must not be modified")
}

func TestColour_Idempotent(t *testing.T) {
	base := testutil.RandomPoints(l1frames.FaceMeshLandmarks, 4)
	b := unitBaseline(t, base)
	frames := testutil.JitteredSession(base, 5, 2, 3)
	before := b.MeanShape()

	for _, c := range []Colorizer{
		{Granularity: PerPoint, Scale: Continuous},
		{Granularity: PerPoint, Scale: Sigma},
		{Granularity: PerCluster, Scale: Continuous},
		{Granularity: PerCluster, Scale: Sigma, SigmaCap: 8},
	} {
		first, err := c.Colour(frames, b)
		require.NoError(t, err)
		second, err := c.Colour(frames, b)
		require.NoError(t, err)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%+v: second colouring differs:\n%s", c, diff)
		}
	}
	assert.Equal(t, before, b.MeanShape(), "baseline must not change")
}

func TestColour_ClusterMode(t *testing.T) {
	base := testutil.RandomPoints(6, 1)
	b := unitBaseline(t, base)
	table := l1frames.ClusterTable{
		{Name: "left", Indices: []int{0, 1}},
		{Name: "right", Indices: []int{1, 2, 3, 42}},
	}
	query := displaced(base, l1frames.Vec3{})
	query.Points[0].X += 8 * math.Sqrt(3)

	res, err := Colorizer{Granularity: PerCluster, Scale: Sigma, Clusters: table}.Colour([]l1frames.Frame{query}, b)
	require.NoError(t, err)
	dev := res.Deviations[0]

	require.Len(t, dev.Clusters, 2)
	assert.InDelta(t, 4.0, dev.Clusters[0].Sigma, 1e-9, "mean of 8σ and 0σ")
	assert.Equal(t, TierBeyond3, dev.Clusters[0].Tier)
	assert.Equal(t, TierWithin1, dev.Clusters[1].Tier)

	cols := res.Frames[0].Colors
	assert.Equal(t, cols[0], cols[1], "landmark 1 takes its first cluster's colour")
	assert.NotEqual(t, cols[1], cols[2])
	assert.Equal(t, Neutral, cols[4])
	assert.Equal(t, Neutral, cols[5])
	assert.Equal(t, TierNone, dev.Tiers[5])
}

func TestColour_ContinuousNormalisation(t *testing.T) {
	base := testutil.RandomPoints(4, 1)
	b := unitBaseline(t, base)
	query := displaced(base, l1frames.Vec3{})
	query.Points[2].Y += 0.5

	perFrame, err := Colorizer{}.Colour([]l1frames.Frame{query}, b)
	require.NoError(t, err)
	assertRGBNear(t, HeatColour(1), perFrame.Frames[0].Colors[2])
	assertRGBNear(t, HeatColour(0), perFrame.Frames[0].Colors[0])
	assert.Nil(t, perFrame.Deviations[0].Sigmas)

	fixed, err := Colorizer{MaxDistance: 1}.Colour([]l1frames.Frame{query}, b)
	require.NoError(t, err)
	assertRGBNear(t, HeatColour(0.5), fixed.Frames[0].Colors[2])
}

func TestColour_MismatchPassThrough(t *testing.T) {
	base := testutil.RandomPoints(5, 1)
	b := unitBaseline(t, base)
	short := l1frames.Frame{Index: 3, Points: base[:4]}

	res, err := Colorizer{Scale: Sigma}.Colour([]l1frames.Frame{short, displaced(base, l1frames.Vec3{})}, b)
	require.NoError(t, err)
	require.Len(t, res.Frames, 2)
	assert.Nil(t, res.Frames[0].Colors)
	assert.Len(t, res.Frames[1].Colors, 5)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, l1frames.DataMismatch, res.Warnings[0].Kind)
}

func TestColour_ZeroStdGuarded(t *testing.T) {
	mean := []l1frames.Vec3{{}, {X: 1}, {Y: 1}}
	b, err := l2align.NewBaseline(mean, make([]l1frames.Vec3, 3), 2, 1)
	require.NoError(t, err)
	query := l1frames.Frame{Points: []l1frames.Vec3{{X: 1e-3}, {X: 1}, {Y: 1}}}

	res, err := Colorizer{Scale: Sigma}.Colour([]l1frames.Frame{query}, b)
	require.NoError(t, err)
	assert.False(t, math.IsInf(res.Deviations[0].Sigmas[0], 0))
	assert.Equal(t, TierBeyond3, res.Deviations[0].Tiers[0])
	assert.Equal(t, TierWithin1, res.Deviations[0].Tiers[1])
}

func TestColorizer_Validate(t *testing.T) {
	tests := []struct {
		name string
		c    Colorizer
	}{
		{"cap at 3", Colorizer{Scale: Sigma, SigmaCap: 3}},
		{"negative max distance", Colorizer{MaxDistance: -1}},
		{"bad granularity", Colorizer{Granularity: Granularity(7)}},
		{"bad scale", Colorizer{Scale: Scale(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.c.Validate(), l1frames.ErrConfiguration))
		})
	}
	_, err := Colorizer{}.Colour(nil, nil)
	assert.True(t, errors.Is(err, l1frames.ErrConfiguration))
}
