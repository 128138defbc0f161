package fetcher

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/afrimetrics/atlas-cli/internal/model"
)

// writeObservationsCSV drops World Bank API results as a raw long-form CSV
// with the same column layout the cleaners expect.
func writeObservationsCSV(path string, obs []model.IndicatorObservation) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "fetcher: create observations csv")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write([]string{"indicator", "country_code", "country_name", "year", "value"}); err != nil {
		return eris.Wrap(err, "fetcher: write observations header")
	}
	for _, o := range obs {
		rec := []string{
			o.Indicator,
			o.CountryCode,
			o.CountryName,
			strconv.Itoa(o.Year),
			strconv.FormatFloat(o.Value, 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "fetcher: write observations row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "fetcher: flush observations csv")
}
