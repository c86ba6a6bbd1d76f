// Package store archives forecast runs and their predictions in SQLite for
// audit and run-over-run comparison.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JTDingwall/herringspawnprediction/internal/domain"
	"github.com/JTDingwall/herringspawnprediction/internal/pipeline"
)

// Store persists forecast runs using modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database at the given path and configures WAL mode.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id                   TEXT PRIMARY KEY,
	target_year          INTEGER NOT NULL,
	window_start_year    INTEGER NOT NULL,
	window_end_year      INTEGER NOT NULL,
	rows_read            INTEGER NOT NULL,
	rows_retained        INTEGER NOT NULL,
	rows_dropped         TEXT NOT NULL,
	locations_considered INTEGER NOT NULL,
	locations_retained   INTEGER NOT NULL,
	locations_forecast   INTEGER NOT NULL,
	duration_ms          INTEGER NOT NULL,
	created_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
	run_id            TEXT NOT NULL REFERENCES runs(id),
	location_code     TEXT NOT NULL,
	location_name     TEXT NOT NULL,
	lat               REAL NOT NULL,
	lon               REAL NOT NULL,
	target_year       INTEGER NOT NULL,
	predicted_doy     REAL NOT NULL,
	spawn_probability REAL NOT NULL,
	predicted_biomass REAL NOT NULL,
	data              TEXT NOT NULL,
	PRIMARY KEY (run_id, location_code)
);

CREATE INDEX IF NOT EXISTS idx_runs_target_year ON runs(target_year);
CREATE INDEX IF NOT EXISTS idx_predictions_location ON predictions(location_code);
`

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migration); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records one completed forecast run and its full prediction set in a
// single transaction, returning the generated run ID.
func (s *Store) SaveRun(ctx context.Context, report pipeline.Report, preds []domain.Prediction) (string, error) {
	id := uuid.New().String()
	createdAt := report.GeneratedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	dropped, err := json.Marshal(report.RowsDropped)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal drop counts: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, target_year, window_start_year, window_end_year,
			rows_read, rows_retained, rows_dropped,
			locations_considered, locations_retained, locations_forecast,
			duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, report.TargetYear, report.Window.StartYear, report.Window.EndYear,
		report.RowsRead, report.RowsRetained, string(dropped),
		report.LocationsConsidered, report.LocationsRetained, report.LocationsForecast,
		report.Duration.Milliseconds(), createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: insert run: %w", err)
	}

	for i := range preds {
		p := &preds[i]
		data, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("sqlite: marshal prediction %s: %w", p.LocationCode, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO predictions (run_id, location_code, location_name, lat, lon,
				target_year, predicted_doy, spawn_probability, predicted_biomass, data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.LocationCode, p.LocationName, p.Geo.Lat, p.Geo.Lon,
			p.TargetYear, p.PredictedDOY, p.SpawnProbability, p.PredictedBiomass, string(data),
		)
		if err != nil {
			return "", fmt.Errorf("sqlite: insert prediction %s: %w", p.LocationCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlite: commit: %w", err)
	}
	return id, nil
}

// LatestRun returns the most recent run's report, or sql.ErrNoRows when the
// archive is empty.
func (s *Store) LatestRun(ctx context.Context) (pipeline.Report, error) {
	var report pipeline.Report
	var dropped string
	var durationMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT target_year, window_start_year, window_end_year,
			rows_read, rows_retained, rows_dropped,
			locations_considered, locations_retained, locations_forecast,
			duration_ms, created_at
		FROM runs ORDER BY created_at DESC LIMIT 1`,
	).Scan(
		&report.TargetYear, &report.Window.StartYear, &report.Window.EndYear,
		&report.RowsRead, &report.RowsRetained, &dropped,
		&report.LocationsConsidered, &report.LocationsRetained, &report.LocationsForecast,
		&durationMS, &report.GeneratedAt,
	)
	if err != nil {
		return pipeline.Report{}, fmt.Errorf("sqlite: latest run: %w", err)
	}
	if err := json.Unmarshal([]byte(dropped), &report.RowsDropped); err != nil {
		return pipeline.Report{}, fmt.Errorf("sqlite: parse drop counts: %w", err)
	}
	report.Duration = time.Duration(durationMS) * time.Millisecond
	return report, nil
}
