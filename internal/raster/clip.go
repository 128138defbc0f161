package raster

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// ErrBadGrid signals a malformed or inconsistent grid file.
var ErrBadGrid = eris.New("raster: bad grid")

// ClipResult holds the cells of a grid that fall inside a boundary.
type ClipResult struct {
	// Values are the raw cell values inside the boundary, in row-major
	// order. Nodata cells inside the boundary are reported as 0: missing
	// data within a country counts as zero, not as absence of territory.
	Values []float64
	// Inside is the number of cells whose center fell inside the boundary.
	Inside int
	// Bounds is the geographic envelope of the boundary geometry.
	Bounds *geom.Bounds
}

// Clip extracts the grid cells whose centers fall inside the boundary
// polygon. The grid is not mutated. An empty intersection is not an error:
// the result simply carries no values and sample construction downstream
// reports the empty sample.
func Clip(g *Grid, boundary geom.T) (*ClipResult, error) {
	if g == nil || len(g.Values) == 0 {
		return nil, eris.Wrap(ErrBadGrid, "clip: empty grid")
	}

	polys, err := polygons(boundary)
	if err != nil {
		return nil, err
	}

	bounds := boundary.Bounds()
	res := &ClipResult{Bounds: bounds}

	// Restrict the scan to the rows/cols overlapping the boundary envelope.
	minCol := int(math.Floor((bounds.Min(0) - g.Xll) / g.CellSize))
	maxCol := int(math.Ceil((bounds.Max(0) - g.Xll) / g.CellSize))
	minRow := g.Rows - 1 - int(math.Ceil((bounds.Max(1)-g.Yll)/g.CellSize))
	maxRow := g.Rows - 1 - int(math.Floor((bounds.Min(1)-g.Yll)/g.CellSize))
	// One cell of slack protects boundary rows from rounding.
	minCol = clamp(minCol-1, 0, g.Cols-1)
	maxCol = clamp(maxCol+1, 0, g.Cols-1)
	minRow = clamp(minRow-1, 0, g.Rows-1)
	maxRow = clamp(maxRow+1, 0, g.Rows-1)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			x, y := g.CellCenter(row, col)
			if !pointInAny(polys, x, y) {
				continue
			}
			res.Inside++
			v := g.At(row, col)
			if g.IsNoData(v) {
				v = 0
			}
			res.Values = append(res.Values, v)
		}
	}
	return res, nil
}

// polygons normalizes a boundary geometry to a polygon list.
// ClipGrid returns a copy of the grid masked to the boundary: cells whose
// centers fall outside become nodata, nodata cells inside become 0. The
// output keeps the input's extent so downstream tools can overlay it.
func ClipGrid(g *Grid, boundary geom.T) (*Grid, error) {
	if g == nil || len(g.Values) == 0 {
		return nil, eris.Wrap(ErrBadGrid, "clip: empty grid")
	}

	polys, err := polygons(boundary)
	if err != nil {
		return nil, err
	}

	out := &Grid{
		Cols:     g.Cols,
		Rows:     g.Rows,
		Xll:      g.Xll,
		Yll:      g.Yll,
		CellSize: g.CellSize,
		NoData:   g.NoData,
		Values:   make([]float64, len(g.Values)),
	}
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			i := row*g.Cols + col
			x, y := g.CellCenter(row, col)
			if !pointInAny(polys, x, y) {
				out.Values[i] = g.NoData
				continue
			}
			v := g.Values[i]
			if g.IsNoData(v) {
				v = 0
			}
			out.Values[i] = v
		}
	}
	return out, nil
}

func polygons(boundary geom.T) ([]*geom.Polygon, error) {
	switch b := boundary.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{b}, nil
	case *geom.MultiPolygon:
		polys := make([]*geom.Polygon, b.NumPolygons())
		for i := range polys {
			polys[i] = b.Polygon(i)
		}
		return polys, nil
	case nil:
		return nil, eris.New("raster: clip: nil boundary")
	default:
		return nil, eris.Errorf("raster: clip: unsupported boundary type %T", boundary)
	}
}

// pointInAny tests the point against each polygon: inside the exterior ring
// and outside every hole.
func pointInAny(polys []*geom.Polygon, x, y float64) bool {
	pt := geom.Coord{x, y}
	for _, p := range polys {
		if p.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for i := 1; i < p.NumLinearRings(); i++ {
			if xy.IsPointInRing(p.Layout(), pt, p.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
