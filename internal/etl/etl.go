// Package etl turns raw source exports into tidy records: EM-DAT disaster
// XLSX, the wide-format WDI indicator dump, and Fathom/GHSL flood exposure
// tables.
package etl

import (
	"strconv"
	"strings"
)

// missingTokens are the string values EM-DAT and WDI use for absent data.
var missingTokens = map[string]bool{
	"":        true,
	"no data": true,
	"unknown": true,
	"nan":     true,
	"n/a":     true,
	"..":      true,
}

// coerceNumber parses a numeric cell, treating missing-data tokens and
// parse failures as absent. Thousands separators are stripped.
func coerceNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if missingTokens[strings.ToLower(s)] {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// headerIndex maps lowercased, trimmed header names to column positions.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// cell returns a trimmed field, tolerating ragged rows.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
