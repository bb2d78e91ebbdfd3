package l2align

import (
	"math"
	"testing"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

func TestValidateTransform(t *testing.T) {
	tests := []struct {
		name        string
		rec         *l1frames.TransformRecord
		wantValid   bool
		wantQuality AlignmentQuality
	}{
		{
			name:        "nil record",
			rec:         nil,
			wantValid:   false,
			wantQuality: QualityPoor,
		},
		{
			name:        "identity excellent",
			rec:         &l1frames.TransformRecord{Rotation: l1frames.Identity3(), Scale: 1, RMSD: 0.001},
			wantValid:   true,
			wantQuality: QualityExcellent,
		},
		{
			name:        "good",
			rec:         &l1frames.TransformRecord{Rotation: l1frames.RotationZ(1), Scale: 2, RMSD: 0.01},
			wantValid:   true,
			wantQuality: QualityGood,
		},
		{
			name:        "fair",
			rec:         &l1frames.TransformRecord{Rotation: l1frames.RotationX(1), Scale: 1, RMSD: 0.03},
			wantValid:   true,
			wantQuality: QualityFair,
		},
		{
			name:        "poor residual",
			rec:         &l1frames.TransformRecord{Rotation: l1frames.Identity3(), Scale: 1, RMSD: 1},
			wantValid:   true,
			wantQuality: QualityPoor,
		},
		{
			name:        "reflection",
			rec:         &l1frames.TransformRecord{Rotation: l1frames.Mat3{-1, 0, 0, 0, 1, 0, 0, 0, 1}, Scale: 1},
			wantValid:   false,
			wantQuality: QualityPoor,
		},
		{
			name:        "zero scale",
			rec:         &l1frames.TransformRecord{Rotation: l1frames.Identity3(), Scale: 0},
			wantValid:   false,
			wantQuality: QualityPoor,
		},
		{
			name:        "nan rmsd",
			rec:         &l1frames.TransformRecord{Rotation: l1frames.Identity3(), Scale: 1, RMSD: math.NaN()},
			wantValid:   false,
			wantQuality: QualityPoor,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateTransform(tt.rec)
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (issues %v)", got.Valid, tt.wantValid, got.Issues)
			}
			if got.Quality != tt.wantQuality {
				t.Errorf("Quality = %v, want %v", got.Quality, tt.wantQuality)
			}
		})
	}
}

func TestAlignmentQualityString(t *testing.T) {
	if QualityGood.String() == "" || AlignmentQuality("custom").String() != "custom" {
		t.Error("unexpected quality strings")
	}
}

func TestRotationAngleDeg(t *testing.T) {
	tests := []struct {
		name string
		a, b l1frames.Mat3
		want float64
	}{
		{"same", l1frames.Identity3(), l1frames.Identity3(), 0},
		{"rz90", l1frames.Identity3(), l1frames.RotationZ(math.Pi / 2), 90},
		{"rx180", l1frames.Identity3(), l1frames.RotationX(math.Pi), 180},
		{"relative", l1frames.RotationY(0.2), l1frames.RotationY(0.5), 0.3 * 180 / math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RotationAngleDeg(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("RotationAngleDeg() = %v, want %v", got, tt.want)
			}
		})
	}
}
