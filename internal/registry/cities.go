package registry

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// City is one Africapolis agglomeration centroid.
type City struct {
	Name       string
	ISO3       string
	Lon, Lat   float64
	Population float64
}

// CityIndex holds the Africapolis agglomeration table, loaded once and
// owned by the pipeline driver. It replaces ad-hoc per-country reloads of
// the source file with a single in-memory index keyed by country.
type CityIndex struct {
	byCountry map[string][]City
	total     int
}

// LoadCities reads an Africapolis centroid CSV. Required columns:
// agglosName, ISO3, Longitude, Latitude, Pop2020 (header names matched
// case-insensitively). Rows with unparseable coordinates or population are
// skipped.
func LoadCities(path string) (*CityIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open cities file %s", path)
	}
	defer func() { _ = f.Close() }()
	return ReadCities(f)
}

// ReadCities parses the Africapolis CSV from a reader.
func ReadCities(r io.Reader) (*CityIndex, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "registry: read cities header")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameIdx, ok1 := col["agglosname"]
	isoIdx, ok2 := col["iso3"]
	lonIdx, ok3 := col["longitude"]
	latIdx, ok4 := col["latitude"]
	popIdx, ok5 := col["pop2020"]
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return nil, eris.Errorf("registry: cities file missing required columns, got %v", header)
	}

	idx := &CityIndex{byCountry: make(map[string][]City)}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "registry: read cities row")
		}
		max := nameIdx
		for _, i := range []int{isoIdx, lonIdx, latIdx, popIdx} {
			if i > max {
				max = i
			}
		}
		if len(rec) <= max {
			continue
		}

		lon, errLon := strconv.ParseFloat(strings.TrimSpace(rec[lonIdx]), 64)
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec[latIdx]), 64)
		pop, errPop := strconv.ParseFloat(strings.TrimSpace(rec[popIdx]), 64)
		if errLon != nil || errLat != nil || errPop != nil {
			continue
		}

		iso3 := strings.ToUpper(strings.TrimSpace(rec[isoIdx]))
		idx.byCountry[iso3] = append(idx.byCountry[iso3], City{
			Name:       strings.TrimSpace(rec[nameIdx]),
			ISO3:       iso3,
			Lon:        lon,
			Lat:        lat,
			Population: pop,
		})
		idx.total++
	}

	for _, cities := range idx.byCountry {
		sort.Slice(cities, func(i, j int) bool {
			return cities[i].Population > cities[j].Population
		})
	}
	return idx, nil
}

// Len reports the total number of indexed agglomerations.
func (ci *CityIndex) Len() int { return ci.total }

// TopCities returns up to n agglomerations for a country, largest 2020
// population first. An unknown country yields an empty slice.
func (ci *CityIndex) TopCities(iso3 string, n int) []City {
	cities := ci.byCountry[strings.ToUpper(strings.TrimSpace(iso3))]
	if n > len(cities) {
		n = len(cities)
	}
	if n <= 0 {
		return nil
	}
	out := make([]City, n)
	copy(out, cities[:n])
	return out
}
