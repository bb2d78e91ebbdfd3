package l5features

import (
	"fmt"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
)

// Column names shared with downstream training code.
const (
	ColQuatX       = "quaternion_x"
	ColQuatY       = "quaternion_y"
	ColQuatZ       = "quaternion_z"
	ColQuatW       = "quaternion_w"
	ColRMSD        = "rmsd"
	ColRotationDeg = "rotation_deg"

	// Metadata columns written ahead of the feature columns by exporters.
	ColSource      = "source_file"
	ColFrameIndex  = "frame_index"
	ColTimeSeconds = "time_seconds"
)

// DisplacementPrefix starts every displacement column name.
const DisplacementPrefix = "displacement_landmark_"

// DisplacementColumn names the displacement feature of landmark idx.
func DisplacementColumn(idx int) string {
	return fmt.Sprintf("%s%d", DisplacementPrefix, idx)
}

// Row is one frame's features. Values line up with Table.Columns.
type Row struct {
	FrameIndex  int
	Source      string
	TimeSeconds *float64
	Values      []float64
}

// Table is the output of Derive: one row per input frame, in input order.
type Table struct {
	Columns  []string
	Rows     []Row
	Warnings []l1frames.Warning
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the values of the named column down all rows.
func (t *Table) Column(name string) ([]float64, bool) {
	ci := t.ColumnIndex(name)
	if ci < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[ci]
	}
	return out, true
}

// HasTime reports whether every row carries a timestamp.
func (t *Table) HasTime() bool {
	if len(t.Rows) == 0 {
		return false
	}
	for _, r := range t.Rows {
		if r.TimeSeconds == nil {
			return false
		}
	}
	return true
}
