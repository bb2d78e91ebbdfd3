// Package testutil provides shared test utilities and synthetic landmark
// fixtures.
//
// Fixtures are deterministic: every generator takes a seed so tests that
// compare runs get bit-identical inputs.
package testutil

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertVecNear fails the test if got and want differ by more than tol on
// any axis.
func AssertVecNear(t *testing.T, got, want l1frames.Vec3, tol float64, msg string) {
	t.Helper()
	if math.Abs(got.X-want.X) > tol || math.Abs(got.Y-want.Y) > tol || math.Abs(got.Z-want.Z) > tol {
		t.Errorf("%s: got %v, want %v (tol %g)", msg, got, want, tol)
	}
}

// UnitCube returns the 8 vertices of the unit cube at the origin.
func UnitCube() []l1frames.Vec3 {
	pts := make([]l1frames.Vec3, 0, 8)
	for _, x := range []float64{0, 1} {
		for _, y := range []float64{0, 1} {
			for _, z := range []float64{0, 1} {
				pts = append(pts, l1frames.Vec3{X: x, Y: y, Z: z})
			}
		}
	}
	return pts
}

// RandomPoints returns n points uniformly distributed in [-1, 1]^3.
func RandomPoints(n int, seed int64) []l1frames.Vec3 {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]l1frames.Vec3, n)
	for i := range pts {
		pts[i] = l1frames.Vec3{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1}
	}
	return pts
}

// Transform returns c·R·p + t for every p.
func Transform(pts []l1frames.Vec3, rot l1frames.Mat3, t l1frames.Vec3, c float64) []l1frames.Vec3 {
	out := make([]l1frames.Vec3, len(pts))
	for i, p := range pts {
		out[i] = r3.Add(r3.Scale(c, rot.MulVec(p)), t)
	}
	return out
}

// Frames wraps point sets as indexed frames with timestamps at 30 fps.
func Frames(sets ...[]l1frames.Vec3) []l1frames.Frame {
	out := make([]l1frames.Frame, len(sets))
	for i, pts := range sets {
		out[i] = l1frames.Frame{
			Index:        i,
			Timestamp:    float64(i) / 30,
			HasTimestamp: true,
			Points:       pts,
		}
	}
	return out
}

// JitteredSession returns frames of a base face moved by a random small
// rigid motion plus per-landmark noise of the given amplitude.
func JitteredSession(base []l1frames.Vec3, frames int, noise float64, seed int64) []l1frames.Frame {
	rng := rand.New(rand.NewSource(seed))
	sets := make([][]l1frames.Vec3, frames)
	for f := range sets {
		rot := l1frames.RotationZ((rng.Float64() - 0.5) * 0.2).Mul(l1frames.RotationX((rng.Float64() - 0.5) * 0.2))
		t := l1frames.Vec3{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}
		moved := Transform(base, rot, t, 1)
		for i := range moved {
			moved[i] = r3.Add(moved[i], l1frames.Vec3{
				X: (rng.Float64()*2 - 1) * noise,
				Y: (rng.Float64()*2 - 1) * noise,
				Z: (rng.Float64()*2 - 1) * noise,
			})
		}
		sets[f] = moved
	}
	return Frames(sets...)
}

// UnitStdSession returns an even number of frames whose landmarks alternate
// between base+(1,1,1) and base-(1,1,1), so every landmark has a population
// std of exactly 1 on each axis and a mean equal to base.
func UnitStdSession(base []l1frames.Vec3, frames int) []l1frames.Frame {
	sets := make([][]l1frames.Vec3, frames)
	for f := range sets {
		sign := 1.0
		if f%2 == 1 {
			sign = -1
		}
		pts := make([]l1frames.Vec3, len(base))
		for i, p := range base {
			pts[i] = l1frames.Vec3{X: p.X + sign, Y: p.Y + sign, Z: p.Z + sign}
		}
		sets[f] = pts
	}
	return Frames(sets...)
}
