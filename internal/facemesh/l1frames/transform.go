package l1frames

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mat3 is a row-major 3x3 matrix. It is a value type so records that hold
// one are immutable once built.
type Mat3 [9]float64

// Identity3 returns the 3x3 identity.
func Identity3() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// At returns the element at row i, column j.
func (m Mat3) At(i, j int) float64 { return m[i*3+j] }

// MulVec returns m·v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// Mul returns m·o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += m[i*3+k] * o[k*3+j]
			}
			out[i*3+j] = s
		}
	}
	return out
}

// T returns the transpose.
func (m Mat3) T() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Det returns the determinant.
func (m Mat3) Det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Trace returns the sum of the diagonal.
func (m Mat3) Trace() float64 { return m[0] + m[4] + m[8] }

// MaxAbsDiff returns the largest element-wise difference between m and o.
func (m Mat3) MaxAbsDiff(o Mat3) float64 {
	var d float64
	for i := range m {
		d = math.Max(d, math.Abs(m[i]-o[i]))
	}
	return d
}

// RotationZ returns the rotation by theta radians about +Z.
func RotationZ(theta float64) Mat3 {
	s, c := math.Sincos(theta)
	return Mat3{c, -s, 0, s, c, 0, 0, 0, 1}
}

// RotationX returns the rotation by theta radians about +X.
func RotationX(theta float64) Mat3 {
	s, c := math.Sincos(theta)
	return Mat3{1, 0, 0, 0, c, -s, 0, s, c}
}

// RotationY returns the rotation by theta radians about +Y.
func RotationY(theta float64) Mat3 {
	s, c := math.Sincos(theta)
	return Mat3{c, 0, s, 0, 1, 0, -s, 0, c}
}

// ReferenceKind identifies what a frame was aligned against.
type ReferenceKind int

const (
	// ReferenceSingleFrame aligns every frame to one chosen frame.
	ReferenceSingleFrame ReferenceKind = iota
	// ReferenceStatistical aligns every frame to a baseline mean shape.
	ReferenceStatistical
)

func (k ReferenceKind) String() string {
	switch k {
	case ReferenceSingleFrame:
		return "single_frame"
	case ReferenceStatistical:
		return "statistical"
	default:
		return "unknown"
	}
}

// ReferenceDescriptor records the reference a transform was computed against.
type ReferenceDescriptor struct {
	Kind ReferenceKind
	// FrameIndex is the reference frame for ReferenceSingleFrame.
	FrameIndex int
	// BaselineFrameCount is the number of frames that built the mean shape
	// for ReferenceStatistical.
	BaselineFrameCount int
	// IsBaselineContributor is true when the aligned frame itself was one
	// of the frames averaged into the baseline.
	IsBaselineContributor bool
}

// TransformRecord is the rigid (optionally similarity) transform that maps a
// frame's raw points onto its reference: p' = Scale·Rotation·p + Translation.
type TransformRecord struct {
	Rotation    Mat3
	Translation Vec3
	Scale       float64
	RMSD        float64
	Reference   ReferenceDescriptor
}

// IdentityRecord returns the record attached to a frame that is its own
// reference.
func IdentityRecord(ref ReferenceDescriptor) TransformRecord {
	return TransformRecord{
		Rotation:  Identity3(),
		Scale:     1,
		Reference: ref,
	}
}

// ApplyPoint maps a single point through the transform.
func (t TransformRecord) ApplyPoint(p Vec3) Vec3 {
	return r3.Add(r3.Scale(t.Scale, t.Rotation.MulVec(p)), t.Translation)
}

// Apply maps pts through the transform into a new slice.
func (t TransformRecord) Apply(pts []Vec3) []Vec3 {
	out := make([]Vec3, len(pts))
	for i, p := range pts {
		out[i] = t.ApplyPoint(p)
	}
	return out
}
