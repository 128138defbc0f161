package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "indicator_observations",
		Columns:      []string{"indicator", "country_code", "year", "value"},
		ConflictKeys: []string{"indicator", "country_code", "year"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "indicator_observations",
		ConflictKeys: []string{"year"},
	}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:   "indicator_observations",
		Columns: []string{"year", "value"},
	}, [][]any{{2020, 1.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"breaks"`, sanitizeTable("breaks"))
	assert.Equal(t, `"atlas"."breaks"`, sanitizeTable("atlas.breaks"))
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"iso3", "year", "value"`, quoteAndJoin([]string{"iso3", "year", "value"}))
}
