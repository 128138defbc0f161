package etl

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/afrimetrics/atlas-cli/internal/fetcher"
	"github.com/afrimetrics/atlas-cli/internal/model"
	"github.com/afrimetrics/atlas-cli/internal/registry"
)

// emdatColumns maps the header spellings seen across EM-DAT exports onto
// canonical names.
var emdatColumns = map[string]string{
	"year":                    "year",
	"start year":              "year",
	"country":                 "country",
	"country name":            "country",
	"iso":                     "country_code",
	"iso3":                    "country_code",
	"country iso":             "country_code",
	"iso_code":                "country_code",
	"disaster type":           "disaster_type",
	"disaster_type":           "disaster_type",
	"disaster subtype":        "disaster_subtype",
	"disaster_subtype":        "disaster_subtype",
	"total deaths":            "deaths",
	"deaths":                  "deaths",
	"total_deaths":            "deaths",
	"no affected":             "affected",
	"affected":                "affected",
	"total_affected":          "affected",
	"total damages ('000 us$)": "damage",
	"total damage ('000 us$)":  "damage",
	"total damages":            "damage",
	"damage":                   "damage",
	"start date":               "start_date",
	"date":                     "start_date",
	"disno.":                   "dis_no",
	"dis no":                   "dis_no",
}

// disasterTypes normalizes EM-DAT type labels to lowercase tokens. Matching
// is by substring, case-insensitive, so "Flood (Riverine)" still lands on
// "flood".
var disasterTypes = []struct{ label, token string }{
	{"drought", "drought"},
	{"flood", "flood"},
	{"storm", "storm"},
	{"earthquake", "earthquake"},
	{"wildfire", "wildfire"},
	{"epidemic", "epidemic"},
	{"volcanic", "volcanic"},
	{"landslide", "landslide"},
	{"extreme temperature", "extreme_temperature"},
	{"mass movement", "mass_movement"},
}

// NormalizeDisasterType maps a raw EM-DAT type label to its canonical token.
// Unrecognized labels pass through lowercased.
func NormalizeDisasterType(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, dt := range disasterTypes {
		if strings.Contains(lower, dt.label) {
			return dt.token
		}
	}
	return strings.ReplaceAll(lower, " ", "_")
}

// CleanEMDAT transforms raw EM-DAT rows (header first) into disaster
// events: Sub-Saharan countries only, canonical type tokens, damage
// rescaled from thousands of dollars, rows without a year, country, or
// type dropped. Output is sorted by year then country.
func CleanEMDAT(rows [][]string) ([]model.DisasterEvent, error) {
	if len(rows) < 2 {
		return nil, eris.New("etl: emdat export has no data rows")
	}

	idx := headerIndex(rows[0])
	col := func(canonical string) int {
		for name, c := range emdatColumns {
			if c != canonical {
				continue
			}
			if i, ok := idx[name]; ok {
				return i
			}
		}
		return -1
	}

	yearIdx := col("year")
	dateIdx := col("start_date")
	countryIdx := col("country")
	isoIdx := col("country_code")
	typeIdx := col("disaster_type")
	if isoIdx < 0 && countryIdx < 0 {
		return nil, eris.New("etl: emdat export has no country column")
	}
	if typeIdx < 0 {
		return nil, eris.New("etl: emdat export has no disaster type column")
	}

	deathsIdx := col("deaths")
	affectedIdx := col("affected")
	damageIdx := col("damage")
	disNoIdx := col("dis_no")

	var events []model.DisasterEvent
	var skipped int
	for _, row := range rows[1:] {
		country, ok := resolveCountry(cell(row, isoIdx), cell(row, countryIdx))
		if !ok {
			skipped++
			continue
		}

		year, ok := extractYear(cell(row, yearIdx), cell(row, dateIdx))
		if !ok {
			skipped++
			continue
		}

		rawType := cell(row, typeIdx)
		if rawType == "" {
			skipped++
			continue
		}

		deaths, _ := coerceNumber(cell(row, deathsIdx))
		affected, _ := coerceNumber(cell(row, affectedIdx))
		damage, _ := coerceNumber(cell(row, damageIdx))

		id := cell(row, disNoIdx)
		if id == "" {
			id = uuid.New().String()
		}

		events = append(events, model.DisasterEvent{
			ID:           id,
			ISO3:         country.ISO3,
			Country:      country.Name,
			Year:         year,
			DisasterType: NormalizeDisasterType(rawType),
			Deaths:       deaths,
			Affected:     affected,
			// EM-DAT publishes damage in '000 US$.
			DamageUSD: damage * 1000,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Year != events[j].Year {
			return events[i].Year < events[j].Year
		}
		return events[i].Country < events[j].Country
	})

	zap.L().Info("etl: emdat cleaned",
		zap.Int("events", len(events)),
		zap.Int("skipped", skipped),
	)
	return events, nil
}

// resolveCountry matches a row to the SSA table by ISO3 first, country
// name second. Non-SSA rows (including North Africa) report false.
func resolveCountry(iso3, name string) (registry.Country, bool) {
	if iso3 != "" {
		c, err := registry.Lookup(iso3)
		if err == nil {
			return c, true
		}
	}
	if name != "" {
		c, err := registry.ByName(name)
		if err == nil {
			return c, true
		}
	}
	return registry.Country{}, false
}

// extractYear reads the year column, falling back to the leading year of a
// start date.
func extractYear(yearCell, dateCell string) (int, bool) {
	if yearCell != "" {
		if y, err := strconv.Atoi(yearCell); err == nil {
			return y, true
		}
		if f, err := strconv.ParseFloat(yearCell, 64); err == nil {
			return int(f), true
		}
	}
	// Dates arrive as YYYY-MM-DD or DD/MM/YYYY.
	for _, sep := range []string{"-", "/"} {
		parts := strings.Split(dateCell, sep)
		for _, p := range parts {
			if len(p) == 4 {
				if y, err := strconv.Atoi(p); err == nil {
					return y, true
				}
			}
		}
	}
	return 0, false
}

// CleanEMDATFile reads a raw EM-DAT XLSX export and writes the cleaned
// CSV.
func CleanEMDATFile(inPath, outPath string) error {
	rows, err := fetcher.ReadXLSX(inPath, fetcher.XLSXOptions{})
	if err != nil {
		return eris.Wrapf(err, "etl: read emdat %s", inPath)
	}

	events, err := CleanEMDAT(rows)
	if err != nil {
		return err
	}

	return WriteEventsCSV(outPath, events)
}

// WriteEventsCSV writes cleaned disaster events in the dashboard layout.
func WriteEventsCSV(path string, events []model.DisasterEvent) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "etl: create output dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "etl: create events csv")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	header := []string{"id", "year", "country", "country_code", "disaster_type", "deaths", "affected_population", "economic_damage_usd"}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "etl: write events header")
	}
	for _, e := range events {
		rec := []string{
			e.ID,
			strconv.Itoa(e.Year),
			e.Country,
			e.ISO3,
			e.DisasterType,
			strconv.FormatFloat(e.Deaths, 'f', -1, 64),
			strconv.FormatFloat(e.Affected, 'f', -1, 64),
			strconv.FormatFloat(e.DamageUSD, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "etl: write events row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "etl: flush events csv")
}
