package l2align

import (
	"fmt"
	"math"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

// AlignmentQuality is the assessed quality of a frame's registration.
type AlignmentQuality string

const (
	// QualityExcellent indicates RMSD below RMSDThresholdExcellent.
	QualityExcellent AlignmentQuality = "excellent"
	// QualityGood indicates RMSD below RMSDThresholdGood.
	QualityGood AlignmentQuality = "good"
	// QualityFair indicates RMSD below RMSDThresholdFair; expression or
	// tracking noise dominates.
	QualityFair AlignmentQuality = "fair"
	// QualityPoor indicates a registration that should not be trusted.
	QualityPoor AlignmentQuality = "poor"
)

// RMSD thresholds in landmark units (normalised image coordinates, depth
// scaled).
const (
	RMSDThresholdExcellent = 0.005
	RMSDThresholdGood      = 0.02
	RMSDThresholdFair      = 0.05
	// RotationTolerance bounds |det(R)-1| and the orthonormality residual.
	RotationTolerance = 1e-6
)

// TransformValidation is the outcome of ValidateTransform.
type TransformValidation struct {
	Valid   bool
	Quality AlignmentQuality
	Issues  []string
}

// ValidateTransform checks that rec holds a proper rotation, a positive
// scale and a finite, non-negative RMSD, and grades the RMSD.
func ValidateTransform(rec *l1frames.TransformRecord) TransformValidation {
	result := TransformValidation{Quality: QualityPoor, Issues: make([]string, 0)}
	if rec == nil {
		result.Issues = append(result.Issues, "transform record is nil")
		return result
	}

	if !IsProperRotation(rec.Rotation) {
		result.Issues = append(result.Issues, "rotation is not proper (RᵀR ≠ I or det ≠ 1)")
	}
	if !(rec.Scale > 0) || math.IsInf(rec.Scale, 0) {
		result.Issues = append(result.Issues, fmt.Sprintf("scale must be > 0, got %g", rec.Scale))
	}
	if rec.RMSD < 0 || math.IsNaN(rec.RMSD) || math.IsInf(rec.RMSD, 0) {
		result.Issues = append(result.Issues, fmt.Sprintf("rmsd must be finite and >= 0, got %g", rec.RMSD))
	}
	if len(result.Issues) > 0 {
		return result
	}

	switch {
	case rec.RMSD < RMSDThresholdExcellent:
		result.Quality = QualityExcellent
	case rec.RMSD < RMSDThresholdGood:
		result.Quality = QualityGood
	case rec.RMSD < RMSDThresholdFair:
		result.Quality = QualityFair
	default:
		result.Quality = QualityPoor
		result.Issues = append(result.Issues, "alignment residual is high - check for tracking loss")
	}
	result.Valid = true
	return result
}

// IsProperRotation reports whether r is orthonormal with determinant +1.
func IsProperRotation(r l1frames.Mat3) bool {
	if math.Abs(r.Det()-1) > RotationTolerance {
		return false
	}
	return r.Mul(r.T()).MaxAbsDiff(l1frames.Identity3()) <= RotationTolerance
}

// String returns a human-readable description of the quality.
func (q AlignmentQuality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent (RMSD < 0.005)"
	case QualityGood:
		return "good (RMSD 0.005-0.02)"
	case QualityFair:
		return "fair (RMSD 0.02-0.05)"
	case QualityPoor:
		return "poor (RMSD > 0.05 or invalid)"
	default:
		return string(q)
	}
}

// RotationAngleDeg returns the geodesic angle in degrees between two
// rotations: arccos((trace(AᵀB) - 1) / 2).
func RotationAngleDeg(a, b l1frames.Mat3) float64 {
	c := (a.T().Mul(b).Trace() - 1) / 2
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180 / math.Pi
}
