package l1frames

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a single landmark position.
type Vec3 = r3.Vec

// RGB is a colour with channels in [0, 1].
type RGB struct {
	R, G, B float64
}

// Frame is one snapshot of all N landmarks.
//
// Optional attributes are explicit: Colors is nil until a colourer runs,
// Transform is nil until an aligner runs. Frames are treated as values by
// every stage; stages return new frames and never modify their input.
type Frame struct {
	Index        int
	Timestamp    float64
	HasTimestamp bool
	Points       []Vec3
	Colors       []RGB
	Transform    *TransformRecord
	Provenance   []AppliedFilter
}

// Len returns the number of landmarks in the frame.
func (f Frame) Len() int { return len(f.Points) }

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	out := f
	out.Points = append([]Vec3(nil), f.Points...)
	if f.Colors != nil {
		out.Colors = append([]RGB(nil), f.Colors...)
	}
	if f.Transform != nil {
		rec := *f.Transform
		out.Transform = &rec
	}
	if f.Provenance != nil {
		out.Provenance = append([]AppliedFilter(nil), f.Provenance...)
	}
	return out
}

// WithPoints returns a copy of the frame carrying pts. The provenance slice
// is shared because it is never appended to in place.
func (f Frame) WithPoints(pts []Vec3) Frame {
	out := f
	out.Points = pts
	return out
}

// WithProvenance returns a copy of the frame with entry appended to a
// freshly allocated provenance slice.
func (f Frame) WithProvenance(entry AppliedFilter) Frame {
	prov := make([]AppliedFilter, len(f.Provenance), len(f.Provenance)+1)
	copy(prov, f.Provenance)
	out := f
	out.Provenance = append(prov, entry)
	return out
}

// CloneFrames deep-copies a sequence.
func CloneFrames(frames []Frame) []Frame {
	out := make([]Frame, len(frames))
	for i := range frames {
		out[i] = frames[i].Clone()
	}
	return out
}

// Centroid returns the arithmetic mean of pts. An empty slice yields the
// zero vector.
func Centroid(pts []Vec3) Vec3 {
	var c Vec3
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(pts)), c)
}

// ScaleDepth returns copies of frames with every Z coordinate multiplied by
// scale. Raw face-mesh depth is emitted on a different scale to X/Y, so
// loaders call this once before any alignment.
func ScaleDepth(frames []Frame, scale float64) []Frame {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		pts := make([]Vec3, len(f.Points))
		for j, p := range f.Points {
			pts[j] = Vec3{X: p.X, Y: p.Y, Z: p.Z * scale}
		}
		out[i] = f.WithPoints(pts)
	}
	return out
}
