package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/afrimetrics/atlas-cli/internal/db"
	"github.com/afrimetrics/atlas-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests hand in a pgxmock pool
// here.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	dataset    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	error      TEXT NOT NULL DEFAULT '',
	countries  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS indicator_observations (
	indicator    TEXT NOT NULL,
	country_code TEXT NOT NULL,
	country_name TEXT NOT NULL DEFAULT '',
	year         INTEGER NOT NULL,
	value        DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (indicator, country_code, year)
);

CREATE TABLE IF NOT EXISTS disaster_events (
	id            TEXT PRIMARY KEY,
	iso3          TEXT NOT NULL,
	country       TEXT NOT NULL,
	year          INTEGER NOT NULL,
	disaster_type TEXT NOT NULL,
	deaths        DOUBLE PRECISION NOT NULL DEFAULT 0,
	affected      DOUBLE PRECISION NOT NULL DEFAULT 0,
	damage_usd    DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS flood_exposure (
	iso3          TEXT NOT NULL,
	year          INTEGER NOT NULL,
	return_period TEXT NOT NULL DEFAULT '',
	exposed_pop   DOUBLE PRECISION NOT NULL,
	total_pop     DOUBLE PRECISION NOT NULL,
	relative_pct  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (iso3, year, return_period)
);

CREATE TABLE IF NOT EXISTS class_breaks (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL DEFAULT '',
	dataset    TEXT NOT NULL,
	iso3       TEXT NOT NULL,
	method     TEXT NOT NULL,
	classes    INTEGER NOT NULL,
	breaks     DOUBLE PRECISION[] NOT NULL,
	cell_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (dataset, iso3, method, classes)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_events_iso3_year ON disaster_events(iso3, year);
CREATE INDEX IF NOT EXISTS idx_breaks_dataset ON class_breaks(dataset);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, dataset string) (*model.PipelineRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, dataset, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, dataset, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.PipelineRun{
		ID:        id,
		Dataset:   dataset,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, dataset, status, error, countries, created_at, updated_at FROM pipeline_runs WHERE id = $1`,
		runID,
	)

	var r model.PipelineRun
	err := row.Scan(&r.ID, &r.Dataset, &r.Status, &r.Error, &r.Countries, &r.CreatedAt, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, dataset, status, error, countries, created_at, updated_at FROM pipeline_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.Dataset != "" {
		args = append(args, filter.Dataset)
		query += ` AND dataset = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var r model.PipelineRun
		if err := rows.Scan(&r.ID, &r.Dataset, &r.Status, &r.Error, &r.Countries, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

var observationColumns = []string{"indicator", "country_code", "country_name", "year", "value"}

func (s *PostgresStore) UpsertObservations(ctx context.Context, obs []model.IndicatorObservation) (int64, error) {
	rows := make([][]any, len(obs))
	for i, o := range obs {
		rows[i] = []any{o.Indicator, o.CountryCode, o.CountryName, o.Year, o.Value}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "indicator_observations",
		Columns:      observationColumns,
		ConflictKeys: []string{"indicator", "country_code", "year"},
	}, rows)
}

func (s *PostgresStore) IndicatorSeries(ctx context.Context, indicator, countryCode string) ([]model.IndicatorObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT indicator, country_code, country_name, year, value FROM indicator_observations
		 WHERE indicator = $1 AND country_code = $2 ORDER BY year`,
		indicator, countryCode,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: indicator series")
	}
	defer rows.Close()

	var out []model.IndicatorObservation
	for rows.Next() {
		var o model.IndicatorObservation
		if err := rows.Scan(&o.Indicator, &o.CountryCode, &o.CountryName, &o.Year, &o.Value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: indicator series iterate")
}

var eventColumns = []string{"id", "iso3", "country", "year", "disaster_type", "deaths", "affected", "damage_usd"}

func (s *PostgresStore) UpsertEvents(ctx context.Context, events []model.DisasterEvent) (int64, error) {
	rows := make([][]any, len(events))
	for i, e := range events {
		rows[i] = []any{e.ID, e.ISO3, e.Country, e.Year, e.DisasterType, e.Deaths, e.Affected, e.DamageUSD}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "disaster_events",
		Columns:      eventColumns,
		ConflictKeys: []string{"id"},
	}, rows)
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter EventFilter) ([]model.DisasterEvent, error) {
	query := `SELECT id, iso3, country, year, disaster_type, deaths, affected, damage_usd FROM disaster_events WHERE 1=1`
	var args []any

	if filter.ISO3 != "" {
		args = append(args, filter.ISO3)
		query += ` AND iso3 = $` + strconv.Itoa(len(args))
	}
	if filter.DisasterType != "" {
		args = append(args, filter.DisasterType)
		query += ` AND disaster_type = $` + strconv.Itoa(len(args))
	}
	if filter.FromYear > 0 {
		args = append(args, filter.FromYear)
		query += ` AND year >= $` + strconv.Itoa(len(args))
	}
	if filter.ToYear > 0 {
		args = append(args, filter.ToYear)
		query += ` AND year <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY year, country`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.DisasterEvent
	for rows.Next() {
		var e model.DisasterEvent
		if err := rows.Scan(&e.ID, &e.ISO3, &e.Country, &e.Year, &e.DisasterType, &e.Deaths, &e.Affected, &e.DamageUSD); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

var floodColumns = []string{"iso3", "year", "return_period", "exposed_pop", "total_pop", "relative_pct"}

func (s *PostgresStore) UpsertFlood(ctx context.Context, rowsIn []model.FloodExposure) (int64, error) {
	rows := make([][]any, len(rowsIn))
	for i, r := range rowsIn {
		rows[i] = []any{r.ISO3, r.Year, r.ReturnPeriod, r.ExposedPop, r.TotalPop, r.RelativePct}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "flood_exposure",
		Columns:      floodColumns,
		ConflictKeys: []string{"iso3", "year", "return_period"},
	}, rows)
}

func (s *PostgresStore) FloodSeries(ctx context.Context, iso3 string) ([]model.FloodExposure, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT iso3, year, return_period, exposed_pop, total_pop, relative_pct FROM flood_exposure
		 WHERE iso3 = $1 ORDER BY year, return_period`,
		iso3,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: flood series")
	}
	defer rows.Close()

	var out []model.FloodExposure
	for rows.Next() {
		var r model.FloodExposure
		if err := rows.Scan(&r.ISO3, &r.Year, &r.ReturnPeriod, &r.ExposedPop, &r.TotalPop, &r.RelativePct); err != nil {
			return nil, eris.Wrap(err, "postgres: scan flood row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: flood series iterate")
}

func (s *PostgresStore) SaveBreaks(ctx context.Context, rec *model.BreaksRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO class_breaks (id, run_id, dataset, iso3, method, classes, breaks, cell_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (dataset, iso3, method, classes) DO UPDATE SET
		   breaks = EXCLUDED.breaks, cell_count = EXCLUDED.cell_count,
		   run_id = EXCLUDED.run_id, created_at = EXCLUDED.created_at`,
		rec.ID, rec.RunID, rec.Dataset, rec.ISO3, rec.Method, rec.Classes, rec.Breaks, rec.CellCount, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: save breaks")
}

func (s *PostgresStore) GetBreaks(ctx context.Context, dataset, iso3, method string, classes int) (*model.BreaksRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, run_id, dataset, iso3, method, classes, breaks, cell_count, created_at FROM class_breaks
		 WHERE dataset = $1 AND iso3 = $2 AND method = $3 AND classes = $4`,
		dataset, iso3, method, classes,
	)

	var rec model.BreaksRecord
	err := row.Scan(&rec.ID, &rec.RunID, &rec.Dataset, &rec.ISO3, &rec.Method, &rec.Classes, &rec.Breaks, &rec.CellCount, &rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "postgres: breaks")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan breaks")
	}
	return &rec, nil
}

func (s *PostgresStore) ListBreaks(ctx context.Context, dataset string) ([]model.BreaksRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, dataset, iso3, method, classes, breaks, cell_count, created_at FROM class_breaks
		 WHERE dataset = $1 ORDER BY iso3, method, classes`,
		dataset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list breaks")
	}
	defer rows.Close()

	var out []model.BreaksRecord
	for rows.Next() {
		var rec model.BreaksRecord
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Dataset, &rec.ISO3, &rec.Method, &rec.Classes, &rec.Breaks, &rec.CellCount, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan breaks")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list breaks iterate")
}
