package model

import "time"

// BreaksRecord is a persisted classification result for one
// (dataset, country, method, classes) combination.
type BreaksRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Dataset   string    `json:"dataset"`
	ISO3      string    `json:"iso3"`
	Method    string    `json:"method"`
	Classes   int       `json:"classes"`
	Breaks    []float64 `json:"breaks"`
	CellCount int       `json:"cell_count"`
	CreatedAt time.Time `json:"created_at"`
}
