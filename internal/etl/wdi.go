package etl

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/afrimetrics/atlas-cli/internal/fetcher"
	"github.com/afrimetrics/atlas-cli/internal/model"
	"github.com/afrimetrics/atlas-cli/internal/registry"
)

// regionalCodes are the World Bank aggregate rows kept alongside country
// rows for benchmarking.
var regionalCodes = map[string]string{
	"SSA": "Sub-Saharan Africa",
	"AFE": "Eastern and Southern Africa",
	"AFW": "Western and Central Africa",
}

// MeltWDI streams the wide-format WDICSV.csv and reshapes the selected
// indicators to long form, one observation per country-year. Rows outside
// the SSA table (regional aggregates excepted) and years before startYear
// are dropped, as are missing values. Results are keyed by indicator code
// and sorted by year then country code.
func MeltWDI(ctx context.Context, r io.Reader, indicators []string, startYear int) (map[string][]model.IndicatorObservation, error) {
	wanted := make(map[string]bool, len(indicators))
	for _, code := range indicators {
		wanted[code] = true
	}

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var (
		header                   []string
		yearCols                 []int // column index -> year, 0 when not a kept year column
		codeIdx, nameIdx, indIdx int
	)
	out := make(map[string][]model.IndicatorObservation)

	for row := range rowCh {
		if header == nil {
			header = <-headerCh
			idx := headerIndex(header)
			var ok bool
			if codeIdx, ok = idx["country code"]; !ok {
				return nil, eris.New("etl: wdi file missing Country Code column")
			}
			if nameIdx, ok = idx["country name"]; !ok {
				return nil, eris.New("etl: wdi file missing Country Name column")
			}
			if indIdx, ok = idx["indicator code"]; !ok {
				return nil, eris.New("etl: wdi file missing Indicator Code column")
			}
			yearCols = make([]int, len(header))
			for i, h := range header {
				y, err := strconv.Atoi(h)
				if err == nil && y >= startYear {
					yearCols[i] = y
				}
			}
		}

		code := cell(row, codeIdx)
		name := cell(row, nameIdx)
		indicator := cell(row, indIdx)

		if !wanted[indicator] {
			continue
		}
		if _, regional := regionalCodes[code]; !regional && !registry.IsSubSaharan(code) {
			continue
		}

		for i, year := range yearCols {
			if year == 0 {
				continue
			}
			v, ok := coerceNumber(cell(row, i))
			if !ok {
				continue
			}
			out[indicator] = append(out[indicator], model.IndicatorObservation{
				Indicator:   indicator,
				CountryCode: code,
				CountryName: name,
				Year:        year,
				Value:       v,
			})
		}
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "etl: stream wdi csv")
	}

	for _, obs := range out {
		sort.Slice(obs, func(i, j int) bool {
			if obs[i].Year != obs[j].Year {
				return obs[i].Year < obs[j].Year
			}
			return obs[i].CountryCode < obs[j].CountryCode
		})
	}

	zap.L().Info("etl: wdi melted", zap.Int("indicators", len(out)))
	return out, nil
}

// CleanWDIFile melts a raw WDI dump and writes one CSV per indicator into
// outDir, named <indicator code>.csv.
func CleanWDIFile(ctx context.Context, inPath, outDir string, indicators []string, startYear int) error {
	f, err := os.Open(inPath)
	if err != nil {
		return eris.Wrapf(err, "etl: open wdi %s", inPath)
	}
	defer f.Close() //nolint:errcheck

	byIndicator, err := MeltWDI(ctx, f, indicators, startYear)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return eris.Wrap(err, "etl: create wdi output dir")
	}
	for code, obs := range byIndicator {
		if err := WriteIndicatorCSV(filepath.Join(outDir, code+".csv"), obs); err != nil {
			return err
		}
	}
	return nil
}

// WriteIndicatorCSV writes one indicator's long-form observations.
func WriteIndicatorCSV(path string, obs []model.IndicatorObservation) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "etl: create indicator csv")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Country Code", "Year", "Value"}); err != nil {
		return eris.Wrap(err, "etl: write indicator header")
	}
	for _, o := range obs {
		rec := []string{o.CountryCode, strconv.Itoa(o.Year), strconv.FormatFloat(o.Value, 'g', -1, 64)}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "etl: write indicator row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "etl: flush indicator csv")
}
