package etl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emdatRows() [][]string {
	return [][]string{
		{"DisNo.", "ISO", "Country", "Start Year", "Start Date", "Disaster Type", "Total Deaths", "No Affected", "Total Damages ('000 US$)"},
		{"2019-0001-KEN", "KEN", "Kenya", "2019", "2019-03-01", "Flood (Riverine)", "120", "50000", "2500"},
		{"2020-0002-NGA", "NGA", "Nigeria", "2020", "", "Drought", "No Data", "100000", "Unknown"},
		{"2018-0003-EGY", "EGY", "Egypt", "2018", "", "Flood", "10", "100", "50"},
		{"2018-0004-FRA", "FRA", "France", "2018", "", "Storm", "5", "10", "25"},
		{"2021-0005-ETH", "ETH", "Ethiopia", "", "2021-07-15", "Epidemic", "300", "12000", ""},
		{"2021-0006-TZA", "TZA", "Tanzania", "", "", "Landslide", "7", "90", "10"},
	}
}

func TestCleanEMDAT(t *testing.T) {
	events, err := CleanEMDAT(emdatRows())
	require.NoError(t, err)

	// Egypt (North Africa), France (not African), and the Tanzania row
	// with no resolvable year are dropped.
	require.Len(t, events, 3)

	// Sorted by year then country.
	assert.Equal(t, 2019, events[0].Year)
	assert.Equal(t, "KEN", events[0].ISO3)
	assert.Equal(t, "flood", events[0].DisasterType)
	assert.Equal(t, 120.0, events[0].Deaths)
	// Damage rescaled from '000 US$.
	assert.Equal(t, 2_500_000.0, events[0].DamageUSD)
	assert.Equal(t, "2019-0001-KEN", events[0].ID)

	// Missing-data tokens coerce to zero.
	assert.Equal(t, "NGA", events[1].ISO3)
	assert.Zero(t, events[1].Deaths)
	assert.Zero(t, events[1].DamageUSD)

	// Year recovered from the start date.
	assert.Equal(t, 2021, events[2].Year)
	assert.Equal(t, "ETH", events[2].ISO3)
}

func TestCleanEMDAT_NameOnlyCountryColumn(t *testing.T) {
	rows := [][]string{
		{"Country", "Year", "Disaster Type", "Total Deaths"},
		{"Kenya", "2020", "Flood", "3"},
		{"Atlantis", "2020", "Flood", "3"},
	}
	events, err := CleanEMDAT(rows)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "KEN", events[0].ISO3)
	// Generated ID when the export carries no DisNo column.
	assert.NotEmpty(t, events[0].ID)
}

func TestCleanEMDAT_MissingColumns(t *testing.T) {
	_, err := CleanEMDAT([][]string{{"a", "b"}, {"1", "2"}})
	assert.Error(t, err)

	_, err = CleanEMDAT([][]string{{"Country", "Year"}})
	assert.Error(t, err)
}

func TestNormalizeDisasterType(t *testing.T) {
	assert.Equal(t, "flood", NormalizeDisasterType("Flood (Coastal)"))
	assert.Equal(t, "extreme_temperature", NormalizeDisasterType("Extreme temperature"))
	assert.Equal(t, "volcanic", NormalizeDisasterType("Volcanic activity"))
	assert.Equal(t, "glacial_lake_outburst", NormalizeDisasterType("Glacial lake outburst"))
}

func TestWriteEventsCSV(t *testing.T) {
	events, err := CleanEMDAT(emdatRows())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "disasters.csv")
	require.NoError(t, WriteEventsCSV(path, events))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], "economic_damage_usd")
	assert.Contains(t, lines[1], "2500000")
}
