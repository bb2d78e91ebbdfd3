package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/facemotion/internal/db"
	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l5features"
	"github.com/banshee-data/facemotion/internal/timeutil"
)

func setupFeatureStore(t *testing.T) *FeatureStore {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "features.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewFeatureStore(database.DB)
}

func sampleTable() *l5features.Table {
	t0, t1 := 0.0, 0.0333
	return &l5features.Table{
		Columns: []string{"displacement_landmark_1", "quaternion_w"},
		Rows: []l5features.Row{
			{FrameIndex: 0, Source: "s01_smile.csv", TimeSeconds: &t0, Values: []float64{0, 1}},
			{FrameIndex: 1, Source: "s01_smile.csv", TimeSeconds: &t1, Values: []float64{0.125, 0.99}},
			{FrameIndex: 2, Source: "s01_smile.csv", Values: []float64{0.5, 0.98}},
		},
		Warnings: []l1frames.Warning{{Kind: l1frames.DataMismatch, FrameIndex: 2}},
	}
}

func sampleFrames() []l1frames.Frame {
	rec := l1frames.TransformRecord{
		Rotation:    l1frames.Mat3{0, -1, 0, 1, 0, 0, 0, 0, 1},
		Translation: l1frames.Vec3{X: 1, Y: -2, Z: 0.5},
		Scale:       1,
		RMSD:        0.0125,
		Reference: l1frames.ReferenceDescriptor{
			Kind:                  l1frames.ReferenceStatistical,
			BaselineFrameCount:    30,
			IsBaselineContributor: true,
		},
	}
	return []l1frames.Frame{
		{Index: 0, Transform: &rec},
		{Index: 1},
		{Index: 2, Transform: &l1frames.TransformRecord{Rotation: l1frames.Identity3(), Scale: 1, Reference: l1frames.ReferenceDescriptor{FrameIndex: 2}}},
	}
}

func TestFeatureStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := setupFeatureStore(t)

	run := &Run{SourceFile: "s01_smile.csv", Subject: "s01", Test: "smile", ParamsJSON: json.RawMessage(`{"workers":2}`)}
	require.NoError(t, s.SaveRun(ctx, run, sampleTable(), sampleFrames()))
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.CreatedAt)
	assert.Equal(t, 3, run.FrameCount)
	assert.Equal(t, 1, run.WarningCount)

	got, err := s.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}

	tbl, err := s.LoadTable(ctx, run.RunID)
	require.NoError(t, err)
	want := sampleTable()
	want.Warnings = nil
	if diff := cmp.Diff(want, tbl); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	trs, err := s.LoadTransforms(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, trs, 2)
	frames := sampleFrames()
	assert.Equal(t, *frames[0].Transform, trs[0])
	assert.Equal(t, *frames[2].Transform, trs[2])
}

func TestFeatureStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := setupFeatureStore(t)

	a := &Run{SourceFile: "a.csv", CreatedAt: 100}
	b := &Run{SourceFile: "b.csv", CreatedAt: 200}
	a2 := &Run{SourceFile: "a.csv", CreatedAt: 300}
	for _, r := range []*Run{a, b, a2} {
		require.NoError(t, s.SaveRun(ctx, r, sampleTable(), nil))
	}

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{a2.RunID, b.RunID, a.RunID}, []string{all[0].RunID, all[1].RunID, all[2].RunID})

	onlyA, err := s.ListRuns(ctx, "a.csv")
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	require.NoError(t, s.DeleteRun(ctx, a.RunID))
	_, err = s.GetRun(ctx, a.RunID)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, errors.Is(s.DeleteRun(ctx, a.RunID), ErrRunNotFound))

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM feature_rows WHERE run_id = ?`, a.RunID).Scan(&rows))
	assert.Zero(t, rows, "rows cascade with their run")
}

func TestFeatureStore_DuplicateRunID(t *testing.T) {
	ctx := context.Background()
	s := setupFeatureStore(t)

	require.NoError(t, s.SaveRun(ctx, &Run{RunID: "fixed", SourceFile: "a.csv"}, sampleTable(), nil))
	err := s.SaveRun(ctx, &Run{RunID: "fixed", SourceFile: "b.csv"}, sampleTable(), sampleFrames())
	require.Error(t, err)

	trs, err := s.LoadTransforms(ctx, "fixed")
	require.NoError(t, err)
	assert.Empty(t, trs, "failed save must not leave partial records")
}

func TestFeatureStore_CreatedAtFromClock(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	s := setupFeatureStore(t).WithClock(timeutil.NewMockClock(now))

	run := &Run{SourceFile: "s01_smile.csv"}
	require.NoError(t, s.SaveRun(context.Background(), run, sampleTable(), nil))
	assert.Equal(t, now.UnixNano(), run.CreatedAt)

	got, err := s.GetRun(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.Equal(t, now.UnixNano(), got.CreatedAt)
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), timeutil.RealClock{}, func() error {
		calls++
		return errors.New("constraint failed")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "non-busy errors are not retried")
}

func TestRetryWhile(t *testing.T) {
	errBusy := errors.New("busy")
	retryable := func(err error) bool { return errors.Is(err, errBusy) }

	t.Run("succeeds after backoff", func(t *testing.T) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		calls := 0
		err := retryWhile(context.Background(), clock, retryable, func() error {
			calls++
			if calls < 3 {
				return errBusy
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{busyBackoff, 2 * busyBackoff}, clock.Waits())
	})

	t.Run("gives up", func(t *testing.T) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		calls := 0
		err := retryWhile(context.Background(), clock, retryable, func() error {
			calls++
			return errBusy
		})
		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, busyRetries, calls)
		assert.Len(t, clock.Waits(), busyRetries-1)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		// A never-firing clock leaves only the context to end the wait.
		err := retryWhile(ctx, stalledClock{}, retryable, func() error { return errBusy })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type stalledClock struct{}

func (stalledClock) Now() time.Time                       { return time.Unix(0, 0) }
func (stalledClock) After(time.Duration) <-chan time.Time { return nil }
