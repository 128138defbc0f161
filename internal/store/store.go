// Package store persists cleaned observations, disaster events, flood
// exposure, computed class breaks, and pipeline run bookkeeping. Two
// engines implement the same interface: SQLite for local work and
// PostgreSQL for the shared warehouse.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/afrimetrics/atlas-cli/internal/model"
)

// RunFilter specifies criteria for listing pipeline runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	Dataset string          `json:"dataset,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// EventFilter specifies criteria for listing disaster events.
type EventFilter struct {
	ISO3         string `json:"iso3,omitempty"`
	DisasterType string `json:"disaster_type,omitempty"`
	FromYear     int    `json:"from_year,omitempty"`
	ToYear       int    `json:"to_year,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// ErrNotFound signals a missing record.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, dataset string) (*model.PipelineRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.PipelineRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error)

	// Indicator observations
	UpsertObservations(ctx context.Context, obs []model.IndicatorObservation) (int64, error)
	IndicatorSeries(ctx context.Context, indicator, countryCode string) ([]model.IndicatorObservation, error)

	// Disaster events
	UpsertEvents(ctx context.Context, events []model.DisasterEvent) (int64, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]model.DisasterEvent, error)

	// Flood exposure
	UpsertFlood(ctx context.Context, rows []model.FloodExposure) (int64, error)
	FloodSeries(ctx context.Context, iso3 string) ([]model.FloodExposure, error)

	// Class breaks
	SaveBreaks(ctx context.Context, rec *model.BreaksRecord) error
	GetBreaks(ctx context.Context, dataset, iso3, method string, classes int) (*model.BreaksRecord, error)
	ListBreaks(ctx context.Context, dataset string) ([]model.BreaksRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a storage engine.
type Config struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	// Path is the SQLite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// DSN is the PostgreSQL connection string.
	DSN      string      `yaml:"dsn" mapstructure:"dsn"`
	PoolConf *PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open constructs the configured store engine.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "atlas.db"
		}
		return NewSQLite(path)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN, cfg.PoolConf)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
