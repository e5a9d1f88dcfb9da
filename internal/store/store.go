// Package store persists sweep runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/seizure-classifier/internal/monitoring"
	"github.com/banshee-data/seizure-classifier/internal/pareto"
	"github.com/banshee-data/seizure-classifier/internal/scoring"
	"github.com/banshee-data/seizure-classifier/internal/sweep"
	"github.com/banshee-data/seizure-classifier/internal/version"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when a run ID is not in the database.
var ErrRunNotFound = errors.New("store: run not found")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// Store is a result database.
type Store struct {
	*sql.DB
}

// Open opens or creates the database at path and migrates it to the latest
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps PRAGMAs and in-memory databases consistent.
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// MigrateUp runs all pending migrations. An up-to-date schema is not an error.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version and dirty state.
// Returns 0, false, nil if no migrations have been applied yet.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// nullable maps NaN to SQL NULL.
func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// orNaN maps SQL NULL back to NaN.
func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// SaveRun writes a run, its sweep table and its fold results in one
// transaction.
func (s *Store) SaveRun(ctx context.Context, res *sweep.Result) error {
	grid, err := json.Marshal(res.Grid)
	if err != nil {
		return fmt.Errorf("marshal grid: %w", err)
	}
	criteria, err := json.Marshal(res.Criteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}
	recordings, err := json.Marshal(res.Recordings)
	if err != nil {
		return fmt.Errorf("marshal recordings: %w", err)
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_at, version, git_sha, grid_json, criteria_json,
			recordings_json, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.CreatedAt.UnixNano(), version.Version, version.GitSHA,
		string(grid), string(criteria), string(recordings), res.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := insertCells(ctx, tx, res); err != nil {
		return err
	}
	if err := insertFolds(ctx, tx, res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	monitoring.Logf("saved run %s: %d folds", res.RunID, len(res.Folds))
	return nil
}

func insertCells(ctx context.Context, tx *sql.Tx, res *sweep.Result) error {
	if res.Table == nil {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sweep_cells (
			run_id, recording_id, pair_id, threshold, min_duration,
			event_tp, event_fp, event_ref_true, sample_tp, sample_fp, sample_ref_true,
			duration, detection_delay
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sweep cell insert: %w", err)
	}
	defer stmt.Close()

	grid := res.Table.Grid()
	for r := 0; r < res.Table.Recordings(); r++ {
		for k := 0; k < grid.Len(); k++ {
			pair := grid.Pair(k)
			c := res.Table.Cell(r, k)
			_, err := stmt.ExecContext(ctx,
				res.RunID, res.Recordings[r], k, pair.Threshold, pair.MinDuration,
				c.Event.TP, c.Event.FP, c.Event.RefTrue, c.Sample.TP, c.Sample.FP, c.Sample.RefTrue,
				c.Event.Duration, nullable(c.DetectionDelay),
			)
			if err != nil {
				return fmt.Errorf("insert sweep cell %s/%d: %w", res.Recordings[r], k, err)
			}
		}
	}
	return nil
}

func insertFolds(ctx context.Context, tx *sql.Tx, res *sweep.Result) error {
	for _, fr := range res.Folds {
		selected := -1
		threshold, minDuration := math.NaN(), math.NaN()
		if fr.Selection.OK {
			selected = fr.Selection.Selected
			threshold, minDuration = fr.Selected.Threshold, fr.Selected.MinDuration
		}
		sc := fr.TestScore
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fold_results (
				run_id, fold_id, test_recording, selected_pair, threshold, min_duration,
				front_size, strict_front_size,
				event_sensitivity, event_precision, event_f1, event_fp_rate,
				sample_sensitivity, sample_precision, sample_f1, sample_fp_rate,
				detection_delay, test_auc
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, fr.Fold.ID, res.Recordings[fr.Fold.Test], selected,
			nullable(threshold), nullable(minDuration),
			len(fr.Selection.Front), len(fr.Selection.StrictFront),
			nullable(sc.EventSensitivity), nullable(sc.EventPrecision), nullable(sc.EventF1), nullable(sc.EventFPRate),
			nullable(sc.SampleSensitivity), nullable(sc.SamplePrecision), nullable(sc.SampleF1), nullable(sc.SampleFPRate),
			nullable(sc.DetectionDelay), nullable(fr.TestAUC),
		)
		if err != nil {
			return fmt.Errorf("insert fold %d: %w", fr.Fold.ID, err)
		}
	}
	return nil
}

// Run is a stored run header.
type Run struct {
	RunID      string          `json:"run_id"`
	CreatedAt  int64           `json:"created_at"` // unix nanoseconds
	Version    string          `json:"version"`
	GitSHA     string          `json:"git_sha"`
	DurationMs int64           `json:"duration_ms"`
	Grid       sweep.Grid      `json:"grid"`
	Criteria   pareto.Criteria `json:"criteria"`
	Recordings []string        `json:"recordings"`
}

// GetRun returns the header of one run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.QueryRowContext(ctx, `
		SELECT run_id, created_at, version, git_sha, duration_ms,
		       grid_json, criteria_json, recordings_json
		FROM runs
		WHERE run_id = ?`, runID)

	var r Run
	var grid, criteria, recordings string
	err := row.Scan(&r.RunID, &r.CreatedAt, &r.Version, &r.GitSHA, &r.DurationMs, &grid, &criteria, &recordings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(grid), &r.Grid); err != nil {
		return nil, fmt.Errorf("decode grid: %w", err)
	}
	if err := json.Unmarshal([]byte(recordings), &r.Recordings); err != nil {
		return nil, fmt.Errorf("decode recordings: %w", err)
	}
	if err := json.Unmarshal([]byte(criteria), &r.Criteria); err != nil {
		return nil, fmt.Errorf("decode criteria: %w", err)
	}
	return &r, nil
}

// ListRuns returns run IDs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FoldRow is one stored fold result.
type FoldRow struct {
	FoldID          int    `json:"fold_id"`
	TestRecording   string `json:"test_recording"`
	SelectedPair    int    `json:"selected_pair"` // -1 when nothing was selected
	Threshold       float64                `json:"threshold"`
	MinDuration     float64                `json:"min_duration"`
	FrontSize       int                    `json:"front_size"`
	StrictFrontSize int                    `json:"strict_front_size"`
	Score           scoring.AggregateScore `json:"score"`
	TestAUC         float64                `json:"test_auc"`
}

// FoldResults returns a run's folds ordered by fold ID.
func (s *Store) FoldResults(ctx context.Context, runID string) ([]FoldRow, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT fold_id, test_recording, selected_pair, threshold, min_duration,
		       front_size, strict_front_size,
		       event_sensitivity, event_precision, event_f1, event_fp_rate,
		       sample_sensitivity, sample_precision, sample_f1, sample_fp_rate,
		       detection_delay, test_auc
		FROM fold_results
		WHERE run_id = ?
		ORDER BY fold_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query fold results: %w", err)
	}
	defer rows.Close()

	var out []FoldRow
	for rows.Next() {
		var f FoldRow
		var vals [12]sql.NullFloat64
		err := rows.Scan(
			&f.FoldID, &f.TestRecording, &f.SelectedPair, &vals[0], &vals[1],
			&f.FrontSize, &f.StrictFrontSize,
			&vals[2], &vals[3], &vals[4], &vals[5],
			&vals[6], &vals[7], &vals[8], &vals[9],
			&vals[10], &vals[11],
		)
		if err != nil {
			return nil, fmt.Errorf("scan fold result: %w", err)
		}
		f.Threshold, f.MinDuration = orNaN(vals[0]), orNaN(vals[1])
		f.Score = scoring.AggregateScore{
			EventSensitivity:  orNaN(vals[2]),
			EventPrecision:    orNaN(vals[3]),
			EventF1:           orNaN(vals[4]),
			EventFPRate:       orNaN(vals[5]),
			SampleSensitivity: orNaN(vals[6]),
			SamplePrecision:   orNaN(vals[7]),
			SampleF1:          orNaN(vals[8]),
			SampleFPRate:      orNaN(vals[9]),
			DetectionDelay:    orNaN(vals[10]),
		}
		f.TestAUC = orNaN(vals[11])
		out = append(out, f)
	}
	return out, rows.Err()
}

// Cell is one stored sweep table cell.
type Cell struct {
	RecordingID string
	PairID      int
	Pair        sweep.Pair
	Score       scoring.Recording
}

// Cells returns the sweep table of a run for one recording, ordered by pair.
func (s *Store) Cells(ctx context.Context, runID, recordingID string) ([]Cell, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT pair_id, threshold, min_duration,
		       event_tp, event_fp, event_ref_true, sample_tp, sample_fp, sample_ref_true,
		       duration, detection_delay
		FROM sweep_cells
		WHERE run_id = ? AND recording_id = ?
		ORDER BY pair_id`, runID, recordingID)
	if err != nil {
		return nil, fmt.Errorf("query sweep cells: %w", err)
	}
	defer rows.Close()

	var out []Cell
	for rows.Next() {
		c := Cell{RecordingID: recordingID}
		var delay sql.NullFloat64
		err := rows.Scan(
			&c.PairID, &c.Pair.Threshold, &c.Pair.MinDuration,
			&c.Score.Event.TP, &c.Score.Event.FP, &c.Score.Event.RefTrue,
			&c.Score.Sample.TP, &c.Score.Sample.FP, &c.Score.Sample.RefTrue,
			&c.Score.Event.Duration, &delay,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sweep cell: %w", err)
		}
		c.Score.Sample.Duration = c.Score.Event.Duration
		c.Score.DetectionDelay = orNaN(delay)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything stored with it.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"sweep_cells", "fold_results"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}
