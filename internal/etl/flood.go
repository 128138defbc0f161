package etl

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/afrimetrics/atlas-cli/internal/model"
	"github.com/afrimetrics/atlas-cli/internal/registry"
)

// defendedScenario is the only Fathom flood scenario the dashboard uses.
const defendedScenario = "FLUVIAL_PLUVIAL_DEFENDED"

// FloodRow is one country row from a Fathom/GHSL intersection CSV.
type FloodRow struct {
	ISO3         string
	Year         int
	FloodType    string
	ReturnPeriod string
	Value        float64
}

// ReadFloodCSV parses a Fathom/GHSL country CSV. valueCol names the
// population or built-up column to read (ftm3_ghsl_total_pop_# for the
// exposure file, ghsl_total_pop_# for the totals file). The totals file
// carries no flood_type or return_period columns; those fields stay empty.
func ReadFloodCSV(r io.Reader, valueCol string) ([]FloodRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "etl: read flood header")
	}
	idx := headerIndex(header)

	isoIdx, ok := idx["iso_a3"]
	if !ok {
		return nil, eris.New("etl: flood file missing ISO_A3 column")
	}
	valIdx, ok := idx[valueCol]
	if !ok {
		return nil, eris.Errorf("etl: flood file missing %s column", valueCol)
	}
	yearIdx, hasYear := idx["ghsl_year"]
	typeIdx, hasType := idx["flood_type"]
	rpIdx, hasRP := idx["return_period"]

	var rows []FloodRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "etl: read flood row")
		}

		v, ok := coerceNumber(cell(rec, valIdx))
		if !ok {
			continue
		}
		row := FloodRow{ISO3: cell(rec, isoIdx), Value: v}
		if hasYear {
			row.Year, _ = strconv.Atoi(cell(rec, yearIdx))
		}
		if hasType {
			row.FloodType = cell(rec, typeIdx)
		}
		if hasRP {
			row.ReturnPeriod = cell(rec, rpIdx)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AddRegionalRows appends SSA/AFE/AFW aggregate rows, summing the
// constituent countries per (year, flood type, return period) group.
// Aggregates are simple sums of the absolute exposure columns.
func AddRegionalRows(rows []FloodRow) []FloodRow {
	type groupKey struct {
		region       string
		year         int
		floodType    string
		returnPeriod string
	}
	sums := make(map[groupKey]float64)

	for _, region := range []string{"SSA", "AFE", "AFW"} {
		members, err := registry.RegionMembers(region)
		if err != nil {
			continue
		}
		inRegion := make(map[string]bool, len(members))
		for _, iso3 := range members {
			inRegion[iso3] = true
		}
		for _, row := range rows {
			if !inRegion[row.ISO3] {
				continue
			}
			sums[groupKey{region, row.Year, row.FloodType, row.ReturnPeriod}] += row.Value
		}
	}

	keys := make([]groupKey, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.region != b.region {
			return a.region < b.region
		}
		if a.year != b.year {
			return a.year < b.year
		}
		if a.floodType != b.floodType {
			return a.floodType < b.floodType
		}
		return a.returnPeriod < b.returnPeriod
	})

	out := rows
	for _, k := range keys {
		out = append(out, FloodRow{
			ISO3:         k.region,
			Year:         k.year,
			FloodType:    k.floodType,
			ReturnPeriod: k.returnPeriod,
			Value:        sums[k],
		})
	}
	return out
}

// JoinExposure filters exposure rows to the defended scenario, adds
// regional aggregates to both sides, and joins exposure against totals on
// (ISO3, year) to compute relative exposure.
func JoinExposure(exposure, totals []FloodRow) []model.FloodExposure {
	var defended []FloodRow
	for _, row := range exposure {
		if row.FloodType == defendedScenario {
			defended = append(defended, row)
		}
	}
	defended = AddRegionalRows(defended)
	totals = AddRegionalRows(totals)

	type popKey struct {
		iso3 string
		year int
	}
	totalPop := make(map[popKey]float64, len(totals))
	for _, row := range totals {
		totalPop[popKey{row.ISO3, row.Year}] = row.Value
	}

	var out []model.FloodExposure
	var unmatched int
	for _, row := range defended {
		total, ok := totalPop[popKey{row.ISO3, row.Year}]
		if !ok || total == 0 {
			unmatched++
			continue
		}
		out = append(out, model.FloodExposure{
			ISO3:         row.ISO3,
			Year:         row.Year,
			ReturnPeriod: row.ReturnPeriod,
			ExposedPop:   row.Value,
			TotalPop:     total,
			RelativePct:  row.Value / total * 100,
		})
	}

	if unmatched > 0 {
		zap.L().Warn("etl: flood rows without matching totals", zap.Int("rows", unmatched))
	}
	return out
}

// CleanFloodFiles reads the exposure and totals CSVs and writes the joined
// relative-exposure table.
func CleanFloodFiles(exposurePath, totalsPath, outPath, exposureCol, totalsCol string) error {
	exposure, err := readFloodFile(exposurePath, exposureCol)
	if err != nil {
		return err
	}
	totals, err := readFloodFile(totalsPath, totalsCol)
	if err != nil {
		return err
	}

	joined := JoinExposure(exposure, totals)
	return WriteExposureCSV(outPath, joined)
}

func readFloodFile(path, valueCol string) ([]FloodRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "etl: open flood file %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadFloodCSV(f, valueCol)
}

// WriteExposureCSV writes the joined flood exposure table.
func WriteExposureCSV(path string, rows []model.FloodExposure) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "etl: create output dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "etl: create exposure csv")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	header := []string{"ISO_A3", "ghsl_year", "return_period", "exposed_pop", "total_pop", "relative_exposure_pct"}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "etl: write exposure header")
	}
	for _, row := range rows {
		rec := []string{
			row.ISO3,
			strconv.Itoa(row.Year),
			row.ReturnPeriod,
			strconv.FormatFloat(row.ExposedPop, 'f', -1, 64),
			strconv.FormatFloat(row.TotalPop, 'f', -1, 64),
			strconv.FormatFloat(row.RelativePct, 'f', 4, 64),
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "etl: write exposure row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "etl: flush exposure csv")
}
