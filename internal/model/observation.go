package model

// DisasterEvent is one cleaned EM-DAT record.
type DisasterEvent struct {
	ID           string  `json:"id"`
	ISO3         string  `json:"iso3"`
	Country      string  `json:"country"`
	Year         int     `json:"year"`
	DisasterType string  `json:"disaster_type"`
	Deaths       float64 `json:"deaths"`
	Affected     float64 `json:"affected"`
	// DamageUSD is total damage in current US dollars. EM-DAT publishes
	// thousands of dollars; the cleaner rescales on ingest.
	DamageUSD float64 `json:"damage_usd"`
}

// IndicatorObservation is one long-form World Development Indicators value.
type IndicatorObservation struct {
	Indicator   string  `json:"indicator"`
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	Year        int     `json:"year"`
	Value       float64 `json:"value"`
}

// FloodExposure is one country-year flood exposure record from the
// Fathom x GHSL intersection, defended fluvial+pluvial scenario.
type FloodExposure struct {
	ISO3         string  `json:"iso3"`
	Year         int     `json:"year"`
	ReturnPeriod string  `json:"return_period"`
	ExposedPop   float64 `json:"exposed_pop"`
	TotalPop     float64 `json:"total_pop"`
	RelativePct  float64 `json:"relative_pct"`
}
