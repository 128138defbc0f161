package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/afrimetrics/atlas-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id         TEXT PRIMARY KEY,
	dataset    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	error      TEXT NOT NULL DEFAULT '',
	countries  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS indicator_observations (
	indicator    TEXT NOT NULL,
	country_code TEXT NOT NULL,
	country_name TEXT NOT NULL DEFAULT '',
	year         INTEGER NOT NULL,
	value        REAL NOT NULL,
	PRIMARY KEY (indicator, country_code, year)
);

CREATE TABLE IF NOT EXISTS disaster_events (
	id            TEXT PRIMARY KEY,
	iso3          TEXT NOT NULL,
	country       TEXT NOT NULL,
	year          INTEGER NOT NULL,
	disaster_type TEXT NOT NULL,
	deaths        REAL NOT NULL DEFAULT 0,
	affected      REAL NOT NULL DEFAULT 0,
	damage_usd    REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS flood_exposure (
	iso3          TEXT NOT NULL,
	year          INTEGER NOT NULL,
	return_period TEXT NOT NULL DEFAULT '',
	exposed_pop   REAL NOT NULL,
	total_pop     REAL NOT NULL,
	relative_pct  REAL NOT NULL,
	PRIMARY KEY (iso3, year, return_period)
);

CREATE TABLE IF NOT EXISTS class_breaks (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL DEFAULT '',
	dataset    TEXT NOT NULL,
	iso3       TEXT NOT NULL,
	method     TEXT NOT NULL,
	classes    INTEGER NOT NULL,
	breaks     TEXT NOT NULL,
	cell_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (dataset, iso3, method, classes)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_dataset ON pipeline_runs(dataset);
CREATE INDEX IF NOT EXISTS idx_events_iso3_year ON disaster_events(iso3, year);
CREATE INDEX IF NOT EXISTS idx_events_type ON disaster_events(disaster_type);
CREATE INDEX IF NOT EXISTS idx_breaks_dataset ON class_breaks(dataset);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, dataset string) (*model.PipelineRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, dataset, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, dataset, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.PipelineRun{
		ID:        id,
		Dataset:   dataset,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset, status, error, countries, created_at, updated_at FROM pipeline_runs WHERE id = ?`,
		runID,
	)

	var r model.PipelineRun
	err := row.Scan(&r.ID, &r.Dataset, &r.Status, &r.Error, &r.Countries, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, dataset, status, error, countries, created_at, updated_at FROM pipeline_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Dataset != "" {
		query += ` AND dataset = ?`
		args = append(args, filter.Dataset)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		if err := rows.Scan(&r.ID, &r.Dataset, &r.Status, &r.Error, &r.Countries, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) UpsertObservations(ctx context.Context, obs []model.IndicatorObservation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin observations tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO indicator_observations (indicator, country_code, country_name, year, value)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (indicator, country_code, year) DO UPDATE SET value = excluded.value, country_name = excluded.country_name`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare observations upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.Indicator, o.CountryCode, o.CountryName, o.Year, o.Value); err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert observation")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit observations")
	}
	return int64(len(obs)), nil
}

func (s *SQLiteStore) IndicatorSeries(ctx context.Context, indicator, countryCode string) ([]model.IndicatorObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT indicator, country_code, country_name, year, value FROM indicator_observations
		 WHERE indicator = ? AND country_code = ? ORDER BY year`,
		indicator, countryCode,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: indicator series")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.IndicatorObservation
	for rows.Next() {
		var o model.IndicatorObservation
		if err := rows.Scan(&o.Indicator, &o.CountryCode, &o.CountryName, &o.Year, &o.Value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: indicator series iterate")
}

func (s *SQLiteStore) UpsertEvents(ctx context.Context, events []model.DisasterEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin events tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO disaster_events (id, iso3, country, year, disaster_type, deaths, affected, damage_usd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare events upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.ID, e.ISO3, e.Country, e.Year, e.DisasterType, e.Deaths, e.Affected, e.DamageUSD); err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert event")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit events")
	}
	return int64(len(events)), nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, filter EventFilter) ([]model.DisasterEvent, error) {
	query := `SELECT id, iso3, country, year, disaster_type, deaths, affected, damage_usd FROM disaster_events WHERE 1=1`
	var args []any

	if filter.ISO3 != "" {
		query += ` AND iso3 = ?`
		args = append(args, filter.ISO3)
	}
	if filter.DisasterType != "" {
		query += ` AND disaster_type = ?`
		args = append(args, filter.DisasterType)
	}
	if filter.FromYear > 0 {
		query += ` AND year >= ?`
		args = append(args, filter.FromYear)
	}
	if filter.ToYear > 0 {
		query += ` AND year <= ?`
		args = append(args, filter.ToYear)
	}
	query += ` ORDER BY year, country`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close() //nolint:errcheck

	var events []model.DisasterEvent
	for rows.Next() {
		var e model.DisasterEvent
		if err := rows.Scan(&e.ID, &e.ISO3, &e.Country, &e.Year, &e.DisasterType, &e.Deaths, &e.Affected, &e.DamageUSD); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) UpsertFlood(ctx context.Context, rowsIn []model.FloodExposure) (int64, error) {
	if len(rowsIn) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin flood tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO flood_exposure (iso3, year, return_period, exposed_pop, total_pop, relative_pct)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare flood upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range rowsIn {
		if _, err := stmt.ExecContext(ctx, r.ISO3, r.Year, r.ReturnPeriod, r.ExposedPop, r.TotalPop, r.RelativePct); err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert flood row")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit flood")
	}
	return int64(len(rowsIn)), nil
}

func (s *SQLiteStore) FloodSeries(ctx context.Context, iso3 string) ([]model.FloodExposure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT iso3, year, return_period, exposed_pop, total_pop, relative_pct FROM flood_exposure
		 WHERE iso3 = ? ORDER BY year, return_period`,
		iso3,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: flood series")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.FloodExposure
	for rows.Next() {
		var r model.FloodExposure
		if err := rows.Scan(&r.ISO3, &r.Year, &r.ReturnPeriod, &r.ExposedPop, &r.TotalPop, &r.RelativePct); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan flood row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: flood series iterate")
}

func (s *SQLiteStore) SaveBreaks(ctx context.Context, rec *model.BreaksRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	breaksJSON, err := json.Marshal(rec.Breaks)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal breaks")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO class_breaks (id, run_id, dataset, iso3, method, classes, breaks, cell_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dataset, iso3, method, classes) DO UPDATE SET
		   breaks = excluded.breaks, cell_count = excluded.cell_count,
		   run_id = excluded.run_id, created_at = excluded.created_at`,
		rec.ID, rec.RunID, rec.Dataset, rec.ISO3, rec.Method, rec.Classes, string(breaksJSON), rec.CellCount, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: save breaks")
}

func (s *SQLiteStore) GetBreaks(ctx context.Context, dataset, iso3, method string, classes int) (*model.BreaksRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, dataset, iso3, method, classes, breaks, cell_count, created_at FROM class_breaks
		 WHERE dataset = ? AND iso3 = ? AND method = ? AND classes = ?`,
		dataset, iso3, method, classes,
	)
	return scanBreaks(row)
}

func (s *SQLiteStore) ListBreaks(ctx context.Context, dataset string) ([]model.BreaksRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, dataset, iso3, method, classes, breaks, cell_count, created_at FROM class_breaks
		 WHERE dataset = ? ORDER BY iso3, method, classes`,
		dataset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list breaks")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.BreaksRecord
	for rows.Next() {
		rec, err := scanBreaks(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list breaks iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBreaks(row scannable) (*model.BreaksRecord, error) {
	var rec model.BreaksRecord
	var breaksJSON string

	err := row.Scan(&rec.ID, &rec.RunID, &rec.Dataset, &rec.ISO3, &rec.Method, &rec.Classes, &breaksJSON, &rec.CellCount, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "breaks")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan breaks")
	}
	if err := json.Unmarshal([]byte(breaksJSON), &rec.Breaks); err != nil {
		return nil, eris.Wrap(err, "unmarshal breaks")
	}
	return &rec, nil
}
