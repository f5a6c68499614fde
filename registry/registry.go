// Package registry keeps a history of training runs in a SQLite database.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// Run status values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("lidarml: run not found")

// Run is one recorded training run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
	DataPath   string
	NRows      int
	NDropped   int
	NTrain     int
	NTest      int
	// R2 is NaN when the holdout target had zero variance.
	R2        float64
	MSE       float64
	MAE       float64
	Features  []string
	Coef      []float64
	Intercept float64
	ModelPath string
}

// DB wraps the SQLite run registry.
type DB struct{ sql *sql.DB }

// Open opens or creates the registry at path and applies the schema.
func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open registry %s", path)
	}
	// one connection keeps ":memory:" databases shared
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, errors.Wrap(err, "configure registry")
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
	  id TEXT PRIMARY KEY,
	  started_at INTEGER NOT NULL,
	  finished_at INTEGER NOT NULL,
	  status TEXT NOT NULL,
	  error TEXT,
	  data_path TEXT NOT NULL,
	  n_rows INTEGER NOT NULL,
	  n_dropped INTEGER NOT NULL,
	  n_train INTEGER NOT NULL,
	  n_test INTEGER NOT NULL,
	  r2 REAL,
	  mse REAL,
	  mae REAL,
	  features TEXT,
	  coef TEXT,
	  intercept REAL,
	  model_path TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`)
	return errors.Wrap(err, "migrate registry")
}

// Record inserts a run. Recording the same ID twice fails.
func (d *DB) Record(ctx context.Context, r Run) error {
	if r.ID == "" {
		return errors.NewValidationError("run.id", "is required", r.ID)
	}
	features, err := json.Marshal(r.Features)
	if err != nil {
		return errors.Wrap(err, "encode features")
	}
	coef, err := json.Marshal(r.Coef)
	if err != nil {
		return errors.Wrap(err, "encode coefficients")
	}

	_, err = d.sql.ExecContext(ctx, `INSERT INTO runs(
	  id, started_at, finished_at, status, error, data_path,
	  n_rows, n_dropped, n_train, n_test, r2, mse, mae,
	  features, coef, intercept, model_path
	) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), r.Status, nullString(r.Error), r.DataPath,
		r.NRows, r.NDropped, r.NTrain, r.NTest, nullFloat(r.R2), nullFloat(r.MSE), nullFloat(r.MAE),
		string(features), string(coef), r.Intercept, r.ModelPath)
	return errors.Wrapf(err, "record run %s", r.ID)
}

const selectRuns = `SELECT id, started_at, finished_at, status, COALESCE(error, ''), data_path,
  n_rows, n_dropped, n_train, n_test, r2, mse, mae,
  COALESCE(features, 'null'), COALESCE(coef, 'null'), COALESCE(intercept, 0), COALESCE(model_path, '')
  FROM runs`

// List returns the most recent runs first. limit <= 0 returns every run.
func (d *DB) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + ` ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "list runs")
}

// Get returns the run with the given ID or ErrRunNotFound.
func (d *DB) Get(ctx context.Context, id string) (Run, error) {
	row := d.sql.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                  Run
		started, finished  int64
		r2, mse, mae       sql.NullFloat64
		features, coefJSON string
	)
	err := s.Scan(&r.ID, &started, &finished, &r.Status, &r.Error, &r.DataPath,
		&r.NRows, &r.NDropped, &r.NTrain, &r.NTest, &r2, &mse, &mae,
		&features, &coefJSON, &r.Intercept, &r.ModelPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, errors.Wrap(err, "scan run")
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	r.FinishedAt = time.UnixMilli(finished).UTC()
	r.R2, r.MSE, r.MAE = floatOrNaN(r2), floatOrNaN(mse), floatOrNaN(mae)
	if err := json.Unmarshal([]byte(features), &r.Features); err != nil {
		return Run{}, errors.Wrap(err, "decode features")
	}
	if err := json.Unmarshal([]byte(coefJSON), &r.Coef); err != nil {
		return Run{}, errors.Wrap(err, "decode coefficients")
	}
	return r, nil
}

// SQLite stores NaN as NULL; map both ways explicitly.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
