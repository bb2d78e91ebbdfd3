package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"

	"github.com/banshee-data/facemotion/internal/facemesh/l1frames"
	"github.com/banshee-data/facemotion/internal/facemesh/l5features"
	"github.com/banshee-data/facemotion/internal/timeutil"
)

// ErrRunNotFound is returned when a run id has no stored run.
var ErrRunNotFound = errors.New("feature run not found")

// Run describes one stored feature table.
type Run struct {
	RunID      string          `json:"run_id"`
	SourceFile string          `json:"source_file"`
	Subject    string          `json:"subject"`
	Test       string          `json:"test"`
	Columns    []string        `json:"columns"`
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`
	FrameCount int             `json:"frame_count"`
	// WarningCount is the number of warnings the table was derived with.
	WarningCount int   `json:"warning_count"`
	CreatedAt    int64 `json:"created_at"`
}

// FeatureStore provides persistence for feature tables and the alignment
// records of the frames they were derived from.
type FeatureStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewFeatureStore creates a new FeatureStore using the system clock.
func NewFeatureStore(db *sql.DB) *FeatureStore {
	return &FeatureStore{db: db, clock: timeutil.RealClock{}}
}

// WithClock replaces the clock used for run timestamps and busy backoff.
func (s *FeatureStore) WithClock(c timeutil.Clock) *FeatureStore {
	s.clock = c
	return s
}

// SaveRun stores t and the transform of every aligned frame in frames as
// one run. If run.RunID is empty a UUID is generated; CreatedAt defaults to
// now. Columns, FrameCount and WarningCount are taken from t.
func (s *FeatureStore) SaveRun(ctx context.Context, run *Run, t *l5features.Table, frames []l1frames.Frame) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	run.Columns = append([]string(nil), t.Columns...)
	run.FrameCount = len(t.Rows)
	run.WarningCount = len(t.Warnings)

	columns, err := json.Marshal(run.Columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}
	values := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		b, err := json.Marshal(r.Values)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		values[i] = string(b)
	}

	err = retryOnBusy(ctx, s.clock, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO feature_runs (
				run_id, source_file, subject, test, columns_json, params_json,
				frame_count, warning_count, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.SourceFile, run.Subject, run.Test, string(columns),
			nullJSON(run.ParamsJSON), run.FrameCount, run.WarningCount, run.CreatedAt,
		)
		if err != nil {
			return err
		}

		rowStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO feature_rows (run_id, row_index, frame_index, time_seconds, values_json)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer rowStmt.Close()
		for i, r := range t.Rows {
			if _, err := rowStmt.ExecContext(ctx, run.RunID, i, r.FrameIndex, r.TimeSeconds, values[i]); err != nil {
				return err
			}
		}

		alignStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO frame_alignments (
				run_id, frame_index, rotation_json, tx, ty, tz, scale, rmsd,
				reference_kind, reference_frame, baseline_frame_count, is_baseline_contributor
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer alignStmt.Close()
		for _, f := range frames {
			tr := f.Transform
			if tr == nil {
				continue
			}
			rot, err := json.Marshal(tr.Rotation)
			if err != nil {
				return err
			}
			_, err = alignStmt.ExecContext(ctx,
				run.RunID, f.Index, string(rot),
				tr.Translation.X, tr.Translation.Y, tr.Translation.Z, tr.Scale, tr.RMSD,
				tr.Reference.Kind.String(), tr.Reference.FrameIndex,
				tr.Reference.BaselineFrameCount, tr.Reference.IsBaselineContributor,
			)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("saving feature run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun returns the run metadata for runID.
func (s *FeatureStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, source_file, subject, test, columns_json, params_json,
		       frame_count, warning_count, created_at
		FROM feature_runs
		WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// ListRuns returns stored runs, newest first. A non-empty source restricts
// the list to runs of that source file.
func (s *FeatureStore) ListRuns(ctx context.Context, source string) ([]*Run, error) {
	query := `
		SELECT run_id, source_file, subject, test, columns_json, params_json,
		       frame_count, warning_count, created_at
		FROM feature_runs`
	var args []interface{}
	if source != "" {
		query += ` WHERE source_file = ?`
		args = append(args, source)
	}
	query += ` ORDER BY created_at DESC, run_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feature runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadTable rebuilds the feature table of runID. Warnings are not stored,
// so the returned table has none.
func (s *FeatureStore) LoadTable(ctx context.Context, runID string) (*l5features.Table, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame_index, time_seconds, values_json
		FROM feature_rows
		WHERE run_id = ?
		ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query feature rows: %w", err)
	}
	defer rows.Close()

	t := &l5features.Table{Columns: run.Columns, Rows: make([]l5features.Row, 0, run.FrameCount)}
	for rows.Next() {
		var (
			r      l5features.Row
			ts     sql.NullFloat64
			values string
		)
		if err := rows.Scan(&r.FrameIndex, &ts, &values); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		if err := json.Unmarshal([]byte(values), &r.Values); err != nil {
			return nil, fmt.Errorf("decode feature row %d: %w", r.FrameIndex, err)
		}
		if ts.Valid {
			v := ts.Float64
			r.TimeSeconds = &v
		}
		r.Source = run.SourceFile
		t.Rows = append(t.Rows, r)
	}
	return t, rows.Err()
}

// LoadTransforms returns the stored alignment records of runID keyed by
// frame index.
func (s *FeatureStore) LoadTransforms(ctx context.Context, runID string) (map[int]l1frames.TransformRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame_index, rotation_json, tx, ty, tz, scale, rmsd,
		       reference_kind, reference_frame, baseline_frame_count, is_baseline_contributor
		FROM frame_alignments
		WHERE run_id = ?
		ORDER BY frame_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frame alignments: %w", err)
	}
	defer rows.Close()

	out := make(map[int]l1frames.TransformRecord)
	for rows.Next() {
		var (
			idx  int
			rot  string
			kind string
			tr   l1frames.TransformRecord
		)
		err := rows.Scan(&idx, &rot,
			&tr.Translation.X, &tr.Translation.Y, &tr.Translation.Z, &tr.Scale, &tr.RMSD,
			&kind, &tr.Reference.FrameIndex, &tr.Reference.BaselineFrameCount, &tr.Reference.IsBaselineContributor,
		)
		if err != nil {
			return nil, fmt.Errorf("scan frame alignment: %w", err)
		}
		if err := json.Unmarshal([]byte(rot), &tr.Rotation); err != nil {
			return nil, fmt.Errorf("decode rotation of frame %d: %w", idx, err)
		}
		if kind == l1frames.ReferenceStatistical.String() {
			tr.Reference.Kind = l1frames.ReferenceStatistical
		}
		out[idx] = tr
	}
	return out, rows.Err()
}

// DeleteRun removes a run with its rows and alignment records.
func (s *FeatureStore) DeleteRun(ctx context.Context, runID string) error {
	return retryOnBusy(ctx, s.clock, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM feature_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete feature run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r       Run
		columns string
		params  sql.NullString
	)
	err := sc.Scan(&r.RunID, &r.SourceFile, &r.Subject, &r.Test, &columns, &params,
		&r.FrameCount, &r.WarningCount, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan feature run: %w", err)
	}
	if err := json.Unmarshal([]byte(columns), &r.Columns); err != nil {
		return nil, fmt.Errorf("decode columns of run %s: %w", r.RunID, err)
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	return &r, nil
}

// nullJSON treats nil or empty JSON as NULL.
func nullJSON(data json.RawMessage) *string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	return &s
}
