package l2align

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

// VarianceEpsilon is the smallest moving-set variance used to estimate
// scale. Below it the scale falls back to 1 and the result is marked
// Degenerate; the variance itself is never floored.
const VarianceEpsilon = 1e-12

// MinPoints is the smallest point set that determines a rotation.
const MinPoints = 3

var (
	// ErrSVD is returned when the cross-covariance could not be factorised.
	ErrSVD = errors.New("l2align: SVD factorisation failed")
	// ErrNonFinite is returned when a point set contains NaN or Inf.
	ErrNonFinite = errors.New("l2align: non-finite coordinate")
)

// Result is the output of a rigid registration. The transform maps the
// moving set onto the reference set: reference ≈ Scale·Rotation·moving + Translation.
type Result struct {
	Rotation    l1frames.Mat3
	Translation l1frames.Vec3
	Scale       float64
	RMSD        float64
	// Degenerate is set when the moving set had (near) zero variance under
	// scaling; Scale is then reported as 1.
	Degenerate bool
}

// Record converts the result into a transform record for ref.
func (r Result) Record(ref l1frames.ReferenceDescriptor) l1frames.TransformRecord {
	return l1frames.TransformRecord{
		Rotation:    r.Rotation,
		Translation: r.Translation,
		Scale:       r.Scale,
		RMSD:        r.RMSD,
		Reference:   ref,
	}
}

// Align estimates the rotation, translation and (optionally) uniform scale
// that best superimpose moving onto reference in the least-squares sense.
//
// The rotation follows Kabsch: H = Pcᵀ·Qc, H = U·S·Vᵀ, R = U·Vᵀ with U's last
// column negated when det(U·Vᵀ) < 0 so R is always proper. With scaling
// enabled the Umeyama estimate c = trace(D·S)/Σ|Qc|² is used, where D is the
// reflection correction. Collinear or otherwise degenerate sets are left to
// the SVD.
func Align(reference, moving []l1frames.Vec3, enableScaling bool) (Result, error) {
	if err := checkPair(reference, moving); err != nil {
		return Result{}, err
	}

	cp := l1frames.Centroid(reference)
	cq := l1frames.Centroid(moving)
	pc := centredMatrix(reference, cp)
	qc := centredMatrix(moving, cq)

	var h mat.Dense
	h.Mul(pc.T(), qc)

	var svd mat.SVD
	if ok := svd.Factorize(&h, mat.SVDFull); !ok {
		return Result{}, ErrSVD
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	var uvt mat.Dense
	uvt.Mul(&u, v.T())
	reflected := mat.Det(&uvt) < 0
	if reflected {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		uvt.Mul(&u, v.T())
	}
	rot := toMat3(&uvt)

	res := Result{Rotation: rot, Scale: 1}
	if enableScaling {
		trace := s[0] + s[1] + s[2]
		if reflected {
			trace = s[0] + s[1] - s[2]
		}
		variance := mat.Sum(elementSquares(qc))
		if variance < VarianceEpsilon {
			res.Degenerate = true
			opsf("moving set variance %.3g below epsilon %.0e; scale clamped to 1", variance, VarianceEpsilon)
		} else {
			res.Scale = trace / variance
		}
	}

	res.Translation = r3.Sub(cp, r3.Scale(res.Scale, rot.MulVec(cq)))
	res.RMSD = RMSD(reference, applyResult(moving, res))
	return res, nil
}

// Kabsch is the rotation-and-translation-only registration, kept as its own
// code path so the scale-free behaviour of Align can be checked against it.
// It factorises Qcᵀ·Pc and builds R = V·diag(1, 1, d)·Uᵀ.
func Kabsch(reference, moving []l1frames.Vec3) (l1frames.Mat3, l1frames.Vec3, float64, error) {
	if err := checkPair(reference, moving); err != nil {
		return l1frames.Mat3{}, l1frames.Vec3{}, 0, err
	}
	cp := l1frames.Centroid(reference)
	cq := l1frames.Centroid(moving)

	var h mat.Dense
	h.Mul(centredMatrix(moving, cq).T(), centredMatrix(reference, cp))

	var svd mat.SVD
	if ok := svd.Factorize(&h, mat.SVDFull); !ok {
		return l1frames.Mat3{}, l1frames.Vec3{}, 0, ErrSVD
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1
	}
	corr := mat.NewDiagDense(3, []float64{1, 1, d})
	var r mat.Dense
	r.Product(&v, corr, u.T())

	rot := toMat3(&r)
	t := r3.Sub(cp, rot.MulVec(cq))
	moved := make([]l1frames.Vec3, len(moving))
	for i, q := range moving {
		moved[i] = r3.Add(rot.MulVec(q), t)
	}
	return rot, t, RMSD(reference, moved), nil
}

// RMSD returns the root-mean-square distance between corresponding points.
// Slices of different length compare over the shorter prefix.
func RMSD(a, b []l1frames.Vec3) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += r3.Norm2(r3.Sub(a[i], b[i]))
	}
	return math.Sqrt(sum / float64(n))
}

// Apply maps pts through res into a new slice.
func Apply(pts []l1frames.Vec3, res Result) []l1frames.Vec3 {
	return applyResult(pts, res)
}

func applyResult(pts []l1frames.Vec3, res Result) []l1frames.Vec3 {
	out := make([]l1frames.Vec3, len(pts))
	for i, p := range pts {
		out[i] = r3.Add(r3.Scale(res.Scale, res.Rotation.MulVec(p)), res.Translation)
	}
	return out
}

func checkPair(reference, moving []l1frames.Vec3) error {
	if len(reference) != len(moving) {
		return l1frames.Configf("align", "point sets differ in length: reference %d, moving %d", len(reference), len(moving))
	}
	if len(reference) < MinPoints {
		return l1frames.Configf("align", "need at least %d points, got %d", MinPoints, len(reference))
	}
	for _, set := range [][]l1frames.Vec3{reference, moving} {
		for i, p := range set {
			if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
				return fmt.Errorf("%w at point %d", ErrNonFinite, i)
			}
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func centredMatrix(pts []l1frames.Vec3, c l1frames.Vec3) *mat.Dense {
	data := make([]float64, 0, len(pts)*3)
	for _, p := range pts {
		data = append(data, p.X-c.X, p.Y-c.Y, p.Z-c.Z)
	}
	return mat.NewDense(len(pts), 3, data)
}

func elementSquares(m *mat.Dense) *mat.Dense {
	var sq mat.Dense
	sq.MulElem(m, m)
	return &sq
}

func toMat3(m mat.Matrix) l1frames.Mat3 {
	var out l1frames.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i*3+j] = m.At(i, j)
		}
	}
	return out
}
