package etl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exposureCSV = `ISO_A3,ghsl_year,flood_type,return_period,ftm3_ghsl_total_pop_#
KEN,2023,FLUVIAL_PLUVIAL_DEFENDED,1in100,500000
KEN,2023,FLUVIAL_PLUVIAL_UNDEFENDED,1in100,900000
NGA,2023,FLUVIAL_PLUVIAL_DEFENDED,1in100,2000000
ZAF,2023,FLUVIAL_PLUVIAL_DEFENDED,1in100,750000
`

const totalsCSV = `ISO_A3,ghsl_year,ghsl_total_pop_#
KEN,2023,50000000
NGA,2023,200000000
ZAF,2023,60000000
`

func TestReadFloodCSV(t *testing.T) {
	rows, err := ReadFloodCSV(strings.NewReader(exposureCSV), "ftm3_ghsl_total_pop_#")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "KEN", rows[0].ISO3)
	assert.Equal(t, 2023, rows[0].Year)
	assert.Equal(t, "1in100", rows[0].ReturnPeriod)
	assert.Equal(t, 500000.0, rows[0].Value)

	totals, err := ReadFloodCSV(strings.NewReader(totalsCSV), "ghsl_total_pop_#")
	require.NoError(t, err)
	require.Len(t, totals, 3)
	assert.Empty(t, totals[0].FloodType)

	_, err = ReadFloodCSV(strings.NewReader(totalsCSV), "missing_col")
	assert.Error(t, err)
}

func TestAddRegionalRows(t *testing.T) {
	rows, err := ReadFloodCSV(strings.NewReader(exposureCSV), "ftm3_ghsl_total_pop_#")
	require.NoError(t, err)

	out := AddRegionalRows(rows)

	find := func(iso3, floodType string) (FloodRow, bool) {
		for _, r := range out {
			if r.ISO3 == iso3 && r.FloodType == floodType {
				return r, true
			}
		}
		return FloodRow{}, false
	}

	// KEN and ZAF are AFE; NGA is AFW; all three are SSA.
	afe, ok := find("AFE", defendedScenario)
	require.True(t, ok)
	assert.Equal(t, 1250000.0, afe.Value)

	afw, ok := find("AFW", defendedScenario)
	require.True(t, ok)
	assert.Equal(t, 2000000.0, afw.Value)

	ssa, ok := find("SSA", defendedScenario)
	require.True(t, ok)
	assert.Equal(t, 3250000.0, ssa.Value)

	// The undefended scenario aggregates separately.
	undef, ok := find("SSA", "FLUVIAL_PLUVIAL_UNDEFENDED")
	require.True(t, ok)
	assert.Equal(t, 900000.0, undef.Value)
}

func TestAddRegionalRows_OrderedByFloodType(t *testing.T) {
	rows, err := ReadFloodCSV(strings.NewReader(exposureCSV), "ftm3_ghsl_total_pop_#")
	require.NoError(t, err)

	var appended []FloodRow
	for _, r := range AddRegionalRows(rows)[len(rows):] {
		appended = append(appended, r)
	}
	require.Len(t, appended, 5)

	// Aggregate rows sort by region, year, flood type, return period, so
	// mixed-scenario input yields a stable order.
	for i := 1; i < len(appended); i++ {
		a, b := appended[i-1], appended[i]
		if a.ISO3 != b.ISO3 {
			assert.Less(t, a.ISO3, b.ISO3)
			continue
		}
		require.Equal(t, a.Year, b.Year)
		assert.Less(t, a.FloodType, b.FloodType, "rows %d and %d out of order", i-1, i)
	}
}

func TestJoinExposure(t *testing.T) {
	exposure, err := ReadFloodCSV(strings.NewReader(exposureCSV), "ftm3_ghsl_total_pop_#")
	require.NoError(t, err)
	totals, err := ReadFloodCSV(strings.NewReader(totalsCSV), "ghsl_total_pop_#")
	require.NoError(t, err)

	joined := JoinExposure(exposure, totals)

	byISO := make(map[string]float64, len(joined))
	for _, e := range joined {
		byISO[e.ISO3] = e.RelativePct
	}

	// Undefended scenario excluded everywhere.
	assert.InDelta(t, 1.0, byISO["KEN"], 1e-9)
	assert.InDelta(t, 1.0, byISO["NGA"], 1e-9)
	assert.InDelta(t, 1.25, byISO["ZAF"], 1e-9)

	// Regional rollups join against regional totals.
	assert.InDelta(t, 100.0*1250000/110000000, byISO["AFE"], 1e-9)
	assert.InDelta(t, 100.0*3250000/310000000, byISO["SSA"], 1e-9)
}
