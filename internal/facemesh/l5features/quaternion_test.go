package l5features

import (
	"math"
	"testing"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

// toRotation is the standard unit-quaternion to matrix formula.
func toRotation(q Quaternion) l1frames.Mat3 {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	return l1frames.Mat3{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	}
}

func quatNear(a, b Quaternion, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol && math.Abs(a.W-b.W) <= tol
}

func TestFromRotation(t *testing.T) {
	h := math.Sqrt2 / 2
	tests := []struct {
		name string
		r    l1frames.Mat3
		want Quaternion
	}{
		{"identity", l1frames.Identity3(), IdentityQuaternion},
		{"z 90", l1frames.RotationZ(math.Pi / 2), Quaternion{Z: h, W: h}},
		{"z -90 keeps w positive", l1frames.RotationZ(-math.Pi / 2), Quaternion{Z: -h, W: h}},
		{"x 180", l1frames.Mat3{1, 0, 0, 0, -1, 0, 0, 0, -1}, Quaternion{X: 1}},
		{"y 180", l1frames.Mat3{-1, 0, 0, 0, 1, 0, 0, 0, -1}, Quaternion{Y: 1}},
		{"z 180", l1frames.Mat3{-1, 0, 0, 0, -1, 0, 0, 0, 1}, Quaternion{Z: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromRotation(tt.r)
			if !quatNear(got, tt.want, 1e-12) {
				t.Errorf("FromRotation = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFromRotation_RoundTripsArbitraryRotations(t *testing.T) {
	for _, angles := range [][3]float64{
		{0.1, 0.2, 0.3},
		{2.5, -1.1, 0.7},
		{-3.0, 0.4, 2.9},
		{1.5, 1.5, 1.5},
	} {
		r := l1frames.RotationZ(angles[0]).Mul(l1frames.RotationY(angles[1])).Mul(l1frames.RotationX(angles[2]))
		q := FromRotation(r)
		if q.W < 0 {
			t.Errorf("%v: w = %g, want >= 0", angles, q.W)
		}
		norm := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
		if math.Abs(norm-1) > 1e-12 {
			t.Errorf("%v: |q| = %g, want 1", angles, norm)
		}
		if d := toRotation(q).MaxAbsDiff(r); d > 1e-12 {
			t.Errorf("%v: reconstructed rotation differs by %g", angles, d)
		}
	}
}
