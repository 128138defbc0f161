package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrimetrics/atlas-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS pipeline_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO pipeline_runs`).
		WithArgs(pgxmock.AnyArg(), "gdp", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "gdp")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, dataset, status, error, countries, created_at, updated_at FROM pipeline_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "dataset", "status", "error", "countries", "created_at", "updated_at"}).
			AddRow("run-1", "gdp", model.RunStatusComplete, "", 48, now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 48, run.Countries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, dataset, status, error, countries, created_at, updated_at FROM pipeline_runs`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE pipeline_runs SET status`).
		WithArgs("failed", "timeout", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing-run", model.RunStatusFailed, "timeout")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertObservations(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	obs := []model.IndicatorObservation{
		{Indicator: "NY.GDP.MKTP.CD", CountryCode: "KEN", CountryName: "Kenya", Year: 2020, Value: 1.0e11},
		{Indicator: "NY.GDP.MKTP.CD", CountryCode: "NGA", CountryName: "Nigeria", Year: 2020, Value: 4.3e11},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_indicator_observations"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_indicator_observations"}, observationColumns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "indicator_observations" .* ON CONFLICT`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.UpsertObservations(context.Background(), obs)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_IndicatorSeries(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT indicator, country_code, country_name, year, value FROM indicator_observations`).
		WithArgs("SP.POP.TOTL", "GHA").
		WillReturnRows(pgxmock.NewRows([]string{"indicator", "country_code", "country_name", "year", "value"}).
			AddRow("SP.POP.TOTL", "GHA", "Ghana", 2019, 30_417_856.0).
			AddRow("SP.POP.TOTL", "GHA", "Ghana", 2020, 31_072_940.0))

	series, err := s.IndicatorSeries(context.Background(), "SP.POP.TOTL", "GHA")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 2019, series[0].Year)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListEvents_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, iso3, country, year, disaster_type, deaths, affected, damage_usd FROM disaster_events`).
		WithArgs("MOZ", 2019, 1000).
		WillReturnRows(pgxmock.NewRows([]string{"id", "iso3", "country", "year", "disaster_type", "deaths", "affected", "damage_usd"}).
			AddRow("2019-0001-MOZ", "MOZ", "Mozambique", 2019, "storm", 603.0, 1_850_000.0, 2_200_000_000.0))

	events, err := s.ListEvents(context.Background(), EventFilter{ISO3: "MOZ", FromYear: 2019})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "storm", events[0].DisasterType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveBreaks(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rec := &model.BreaksRecord{
		Dataset: "population",
		ISO3:    "ETH",
		Method:  "quantile",
		Classes: 5,
		Breaks:  []float64{0, 10, 50, 200, 900, 12000},
	}

	mock.ExpectExec(`INSERT INTO class_breaks .* ON CONFLICT \(dataset, iso3, method, classes\)`).
		WithArgs(pgxmock.AnyArg(), "", "population", "ETH", "quantile", 5, rec.Breaks, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveBreaks(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetBreaks_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, run_id, dataset, iso3, method, classes, breaks, cell_count, created_at FROM class_breaks`).
		WithArgs("gdp", "ZZZ", "hybrid", 5).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetBreaks(context.Background(), "gdp", "ZZZ", "hybrid", 5)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FloodSeries(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT iso3, year, return_period, exposed_pop, total_pop, relative_pct FROM flood_exposure`).
		WithArgs("NGA").
		WillReturnRows(pgxmock.NewRows([]string{"iso3", "year", "return_period", "exposed_pop", "total_pop", "relative_pct"}).
			AddRow("NGA", 2020, "1in100", 12_000_000.0, 206_000_000.0, 5.82))

	rows, err := s.FloodSeries(context.Background(), "NGA")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 5.82, rows[0].RelativePct, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
