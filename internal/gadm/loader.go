// Package gadm loads country boundary polygons from GADM 4.1 level-0
// shapefiles laid out one directory per country.
package gadm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// ErrBoundaryNotFound signals that no GADM shapefile exists for the
// requested country under the boundary directory.
var ErrBoundaryNotFound = eris.New("gadm: boundary not found")

// Boundary is a country outline read from a GADM level-0 shapefile.
type Boundary struct {
	ISO3 string
	// Name is the COUNTRY attribute from the DBF table.
	Name string
	Geom *geom.MultiPolygon
}

// Path returns the expected shapefile location for a country, following the
// GADM download layout: <dir>/<ISO3>/gadm41_<ISO3>_0.shp.
func Path(dir, iso3 string) string {
	iso3 = strings.ToUpper(iso3)
	return filepath.Join(dir, iso3, fmt.Sprintf("gadm41_%s_0.shp", iso3))
}

// Load reads the level-0 boundary for one country. A missing file maps to
// ErrBoundaryNotFound so callers can skip countries without boundary data.
func Load(dir, iso3 string) (*Boundary, error) {
	path := Path(dir, iso3)
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(ErrBoundaryNotFound, "gadm: %s (%s)", iso3, path)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gadm: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	countryIdx := -1
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, "COUNTRY") {
			countryIdx = i
			break
		}
	}

	b := &Boundary{ISO3: strings.ToUpper(iso3)}
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			continue
		}
		appendPolygon(mp, poly)

		if countryIdx >= 0 && b.Name == "" {
			b.Name = decodeAttribute(reader.Attribute(countryIdx))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil, eris.Errorf("gadm: %s: shapefile carries no polygon records", iso3)
	}
	b.Geom = mp
	return b, nil
}

// appendPolygon converts a shapefile polygon record into go-geom polygons on
// mp. Shapefile part ordering is flat: exterior rings wind clockwise and
// hole rings counter-clockwise, with each hole following its exterior. A
// leading counter-clockwise ring with no preceding exterior is promoted to
// its own polygon rather than dropped.
func appendPolygon(mp *geom.MultiPolygon, p *shp.Polygon) {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return
	}

	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("gadm: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if clockwise(flat) || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("gadm: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()
}

// clockwise reports whether a flat XY ring winds clockwise, using the
// shoelace signed area. Screen-coordinate shapefile convention: clockwise
// rings are exteriors.
func clockwise(flat []float64) bool {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += (flat[2*j] - flat[2*i]) * (flat[2*j+1] + flat[2*i+1])
	}
	return sum > 0
}

// decodeAttribute cleans a DBF string attribute. GADM tables are Latin-1
// encoded (Côte d'Ivoire, São Tomé), so non-ASCII bytes are transcoded.
func decodeAttribute(raw string) string {
	raw = strings.TrimRight(raw, "\x00")
	raw = strings.TrimSpace(raw)
	if isASCII(raw) {
		return raw
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().String(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
