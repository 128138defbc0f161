// Package raster models single-band gridded data and clips it to country
// boundaries for classification.
package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Grid is a single-band raster in a geographic coordinate system. Values are
// row-major with row 0 at the top (north). Cells are square.
type Grid struct {
	Cols, Rows int
	// Xll, Yll locate the lower-left corner of the grid.
	Xll, Yll float64
	CellSize float64
	NoData   float64
	Values   []float64
}

// At returns the value at (row, col). Row 0 is the northernmost row.
func (g *Grid) At(row, col int) float64 {
	return g.Values[row*g.Cols+col]
}

// IsNoData reports whether v is the grid's missing-value marker.
func (g *Grid) IsNoData(v float64) bool {
	return math.IsNaN(v) || v == g.NoData
}

// CellCenter returns the geographic coordinates of a cell's center.
func (g *Grid) CellCenter(row, col int) (x, y float64) {
	x = g.Xll + (float64(col)+0.5)*g.CellSize
	y = g.Yll + (float64(g.Rows-1-row)+0.5)*g.CellSize
	return x, y
}

// Extent returns the outer bounds of the grid (minx, miny, maxx, maxy).
func (g *Grid) Extent() (minX, minY, maxX, maxY float64) {
	return g.Xll, g.Yll,
		g.Xll + float64(g.Cols)*g.CellSize,
		g.Yll + float64(g.Rows)*g.CellSize
}

// ReadASCII parses an ESRI ASCII grid. Header keys are case-insensitive;
// nodata_value is optional and defaults to -9999.
func ReadASCII(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	g := &Grid{NoData: -9999}
	header := map[string]float64{}
	var cornerSet, centerSet bool

	// Header lines first; the first non-header line starts the data.
	var pending string
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		key := strings.ToLower(fields[0])
		if len(fields) == 2 && isHeaderKey(key) {
			val, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, eris.Wrapf(err, "raster: parse header %s", key)
			}
			header[key] = val
			if key == "xllcenter" || key == "yllcenter" {
				centerSet = true
			}
			if key == "xllcorner" || key == "yllcorner" {
				cornerSet = true
			}
			continue
		}
		pending = line
		break
	}

	ncols, ok1 := header["ncols"]
	nrows, ok2 := header["nrows"]
	size, ok3 := header["cellsize"]
	if !ok1 || !ok2 || !ok3 {
		return nil, eris.Wrap(ErrBadGrid, "missing ncols/nrows/cellsize header")
	}
	if ncols < 1 || nrows < 1 || size <= 0 {
		return nil, eris.Wrapf(ErrBadGrid, "bad dimensions %gx%g cell %g", ncols, nrows, size)
	}
	g.Cols = int(ncols)
	g.Rows = int(nrows)
	g.CellSize = size
	if nd, ok := header["nodata_value"]; ok {
		g.NoData = nd
	}
	switch {
	case cornerSet:
		g.Xll = header["xllcorner"]
		g.Yll = header["yllcorner"]
	case centerSet:
		g.Xll = header["xllcenter"] - size/2
		g.Yll = header["yllcenter"] - size/2
	default:
		return nil, eris.Wrap(ErrBadGrid, "missing lower-left origin header")
	}

	g.Values = make([]float64, 0, g.Cols*g.Rows)
	appendRow := func(line string) error {
		for _, f := range strings.Fields(line) {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return eris.Wrapf(err, "raster: parse value %q", f)
			}
			g.Values = append(g.Values, v)
		}
		return nil
	}
	if err := appendRow(pending); err != nil {
		return nil, err
	}
	for sc.Scan() {
		if err := appendRow(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: read")
	}
	if len(g.Values) != g.Cols*g.Rows {
		return nil, eris.Wrapf(ErrBadGrid, "got %d values, want %d", len(g.Values), g.Cols*g.Rows)
	}
	return g, nil
}

// OpenASCII reads an ESRI ASCII grid from disk.
func OpenASCII(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadASCII(f)
}

// WriteASCII writes the grid in ESRI ASCII format.
func (g *Grid) WriteASCII(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", g.Cols)
	fmt.Fprintf(bw, "nrows %d\n", g.Rows)
	fmt.Fprintf(bw, "xllcorner %g\n", g.Xll)
	fmt.Fprintf(bw, "yllcorner %g\n", g.Yll)
	fmt.Fprintf(bw, "cellsize %g\n", g.CellSize)
	fmt.Fprintf(bw, "nodata_value %g\n", g.NoData)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if col > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return eris.Wrap(err, "raster: write")
				}
			}
			if _, err := bw.WriteString(strconv.FormatFloat(g.At(row, col), 'g', -1, 64)); err != nil {
				return eris.Wrap(err, "raster: write")
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return eris.Wrap(err, "raster: write")
		}
	}
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "raster: flush")
	}
	return nil
}

func isHeaderKey(key string) bool {
	switch key {
	case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}

// SaveASCII writes the grid to disk in ESRI ASCII format.
func (g *Grid) SaveASCII(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "raster: create %s", path)
	}
	if err := g.WriteASCII(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "raster: close %s", path)
	}
	return nil
}
