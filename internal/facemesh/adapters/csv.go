// Package adapters converts between face-mesh recordings on disk and the
// in-memory frame and feature types.
package adapters

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l5features"
	"github.com/banshee-data/facemotion/internal/fsutil"
)

// Column names of the recording format.
const (
	ColTime    = "Time (s)"
	ColSubject = "Subject Name"
	ColTest    = "Test Name"
)

// ErrNoLandmarks is returned for a recording without feat_<i>_x|y|z columns.
var ErrNoLandmarks = errors.New("no landmark columns found")

// Session is a loaded recording.
type Session struct {
	Frames []l1frames.Frame
	// Landmarks are the landmark ids in point order, ascending.
	Landmarks []int
	Subject   string
	Test      string
}

type axisColumns struct {
	x, y, z int
}

// LoadFramesCSV reads the frames of a recording.
func LoadFramesCSV(r io.Reader) ([]l1frames.Frame, error) {
	s, err := LoadSessionCSV(r)
	if err != nil {
		return nil, err
	}
	return s.Frames, nil
}

// LoadSessionCSV reads a recording with one row per frame and columns
// feat_<i>_x, feat_<i>_y, feat_<i>_z per landmark. Points are ordered by
// landmark id. When a "Time (s)" column is present rows are sorted by it
// (stable) and frames carry their timestamps; Index is the position after
// sorting. Other columns, including derived ones like feat_<i>_xdiff, are
// ignored apart from the subject and test names.
func LoadSessionCSV(r io.Reader) (*Session, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	landmarks := make(map[int]*axisColumns)
	timeCol, subjectCol, testCol := -1, -1, -1
	for ci, name := range header {
		name = strings.TrimSpace(name)
		switch name {
		case ColTime:
			timeCol = ci
			continue
		case ColSubject:
			subjectCol = ci
			continue
		case ColTest:
			testCol = ci
			continue
		}
		id, axis, ok := parseFeatColumn(name)
		if !ok {
			continue
		}
		ac := landmarks[id]
		if ac == nil {
			ac = &axisColumns{-1, -1, -1}
			landmarks[id] = ac
		}
		switch axis {
		case "x":
			ac.x = ci
		case "y":
			ac.y = ci
		case "z":
			ac.z = ci
		}
	}
	if len(landmarks) == 0 {
		return nil, ErrNoLandmarks
	}

	ids := make([]int, 0, len(landmarks))
	for id, ac := range landmarks {
		if ac.x < 0 || ac.y < 0 || ac.z < 0 {
			return nil, fmt.Errorf("landmark %d is missing an axis column", id)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	s := &Session{Landmarks: ids}
	type row struct {
		t   float64
		pts []l1frames.Vec3
	}
	var rows []row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 2 {
			if subjectCol >= 0 {
				s.Subject = rec[subjectCol]
			}
			if testCol >= 0 {
				s.Test = rec[testCol]
			}
		}
		rw := row{pts: make([]l1frames.Vec3, len(ids))}
		for k, id := range ids {
			ac := landmarks[id]
			x, err1 := parseCell(rec, ac.x)
			y, err2 := parseCell(rec, ac.y)
			z, err3 := parseCell(rec, ac.z)
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("line %d landmark %d: %w", line, id, err)
			}
			rw.pts[k] = l1frames.Vec3{X: x, Y: y, Z: z}
		}
		if timeCol >= 0 {
			t, err := parseCell(rec, timeCol)
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, ColTime, err)
			}
			rw.t = t
		}
		rows = append(rows, rw)
	}

	if timeCol >= 0 {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].t < rows[j].t })
	}
	s.Frames = make([]l1frames.Frame, len(rows))
	for i, rw := range rows {
		s.Frames[i] = l1frames.Frame{
			Index:        i,
			Timestamp:    rw.t,
			HasTimestamp: timeCol >= 0,
			Points:       rw.pts,
		}
	}
	return s, nil
}

// LoadSessionFile opens path on fsys and loads it.
func LoadSessionFile(fsys fsutil.FileSystem, path string) (*Session, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := LoadSessionCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func parseFeatColumn(name string) (id int, axis string, ok bool) {
	rest, found := strings.CutPrefix(name, "feat_")
	if !found {
		return 0, "", false
	}
	num, axis, found := strings.Cut(rest, "_")
	if !found || (axis != "x" && axis != "y" && axis != "z") {
		return 0, "", false
	}
	id, err := strconv.Atoi(num)
	if err != nil || id < 0 {
		return 0, "", false
	}
	return id, axis, true
}

func parseCell(rec []string, col int) (float64, error) {
	if col >= len(rec) {
		return 0, fmt.Errorf("column %d missing", col)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
	if err != nil {
		return 0, fmt.Errorf("column %d: %w", col, err)
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteFramesCSV writes frames in the recording format, so filtered output
// can be loaded again. The time column is written only when every frame has
// a timestamp. landmarks gives the id of each point; nil means 0..N-1.
// Frames whose landmark count differs from the first are an error.
func WriteFramesCSV(w io.Writer, frames []l1frames.Frame, landmarks []int) error {
	if len(frames) == 0 {
		return nil
	}
	n := frames[0].Len()
	if landmarks == nil {
		landmarks = make([]int, n)
		for i := range landmarks {
			landmarks[i] = i
		}
	}
	if len(landmarks) != n {
		return fmt.Errorf("%d landmark ids for %d points", len(landmarks), n)
	}

	withTime := true
	for _, f := range frames {
		withTime = withTime && f.HasTimestamp
	}

	cw := csv.NewWriter(w)
	var header []string
	if withTime {
		header = append(header, ColTime)
	}
	for _, id := range landmarks {
		header = append(header, fmt.Sprintf("feat_%d_x", id), fmt.Sprintf("feat_%d_y", id), fmt.Sprintf("feat_%d_z", id))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, f := range frames {
		if f.Len() != n {
			return fmt.Errorf("frame %d has %d landmarks, expected %d", f.Index, f.Len(), n)
		}
		rec := make([]string, 0, len(header))
		if withTime {
			rec = append(rec, formatFloat(f.Timestamp))
		}
		for _, p := range f.Points {
			rec = append(rec, formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFeatureCSV writes a feature table with metadata columns source_file,
// frame_index and, when every row has one, time_seconds, followed by the
// table's columns.
func WriteFeatureCSV(w io.Writer, t *l5features.Table) error {
	cw := csv.NewWriter(w)
	withTime := t.HasTime()
	header := []string{l5features.ColSource, l5features.ColFrameIndex}
	if withTime {
		header = append(header, l5features.ColTimeSeconds)
	}
	header = append(header, t.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range t.Rows {
		rec := []string{r.Source, strconv.Itoa(r.FrameIndex)}
		if withTime {
			rec = append(rec, formatFloat(*r.TimeSeconds))
		}
		for _, v := range r.Values {
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFeatureFile writes t to path on fsys, creating parent directories.
func WriteFeatureFile(fsys fsutil.FileSystem, path string, t *l5features.Table) (err error) {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteFeatureCSV(f, t)
}
