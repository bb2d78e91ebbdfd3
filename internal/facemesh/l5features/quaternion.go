package l5features

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

// Quaternion is a unit rotation quaternion in (x, y, z, w) order.
type Quaternion struct {
	X, Y, Z, W float64
}

// IdentityQuaternion is the rotation used when a frame has no transform.
var IdentityQuaternion = Quaternion{W: 1}

// FromRotation converts a rotation matrix to a unit quaternion with
// Shepperd's method, pivoting on the largest of the trace and the diagonal.
// The sign is fixed so that W >= 0.
func FromRotation(r l1frames.Mat3) Quaternion {
	tr := r.Trace()
	var q quat.Number
	switch {
	case tr >= r.At(0, 0) && tr >= r.At(1, 1) && tr >= r.At(2, 2):
		s := 2 * math.Sqrt(1+tr)
		q = quat.Number{
			Real: s / 4,
			Imag: (r.At(2, 1) - r.At(1, 2)) / s,
			Jmag: (r.At(0, 2) - r.At(2, 0)) / s,
			Kmag: (r.At(1, 0) - r.At(0, 1)) / s,
		}
	case r.At(0, 0) >= r.At(1, 1) && r.At(0, 0) >= r.At(2, 2):
		s := 2 * math.Sqrt(1+r.At(0, 0)-r.At(1, 1)-r.At(2, 2))
		q = quat.Number{
			Real: (r.At(2, 1) - r.At(1, 2)) / s,
			Imag: s / 4,
			Jmag: (r.At(0, 1) + r.At(1, 0)) / s,
			Kmag: (r.At(0, 2) + r.At(2, 0)) / s,
		}
	case r.At(1, 1) >= r.At(2, 2):
		s := 2 * math.Sqrt(1+r.At(1, 1)-r.At(0, 0)-r.At(2, 2))
		q = quat.Number{
			Real: (r.At(0, 2) - r.At(2, 0)) / s,
			Imag: (r.At(0, 1) + r.At(1, 0)) / s,
			Jmag: s / 4,
			Kmag: (r.At(1, 2) + r.At(2, 1)) / s,
		}
	default:
		s := 2 * math.Sqrt(1+r.At(2, 2)-r.At(0, 0)-r.At(1, 1))
		q = quat.Number{
			Real: (r.At(1, 0) - r.At(0, 1)) / s,
			Imag: (r.At(0, 2) + r.At(2, 0)) / s,
			Jmag: (r.At(1, 2) + r.At(2, 1)) / s,
			Kmag: s / 4,
		}
	}

	if n := quat.Abs(q); n > 0 {
		q = quat.Scale(1/n, q)
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}
