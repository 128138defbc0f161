package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/afrimetrics/atlas-cli/internal/model"
)

// WorldBankBaseURL is the indicator API root. Overridable for tests.
const WorldBankBaseURL = "https://api.worldbank.org/v2"

// WorldBankClient pulls indicator series from the World Bank API v2,
// walking the paged JSON responses.
type WorldBankClient struct {
	fetcher Fetcher
	baseURL string
	perPage int
}

// NewWorldBankClient creates a client on top of an HTTP fetcher.
func NewWorldBankClient(f Fetcher, baseURL string) *WorldBankClient {
	if baseURL == "" {
		baseURL = WorldBankBaseURL
	}
	return &WorldBankClient{fetcher: f, baseURL: baseURL, perPage: 1000}
}

// wbMeta is the first element of every API v2 response pair.
type wbMeta struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage any `json:"per_page"`
	Total   int `json:"total"`
}

// wbEntry is one observation in the second element.
type wbEntry struct {
	Indicator struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"indicator"`
	Country struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
	ISO3  string   `json:"countryiso3code"`
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Indicator fetches every observation for one indicator code across all
// countries, for the closed year range. Null observations are dropped.
func (c *WorldBankClient) Indicator(ctx context.Context, code string, fromYear, toYear int) ([]model.IndicatorObservation, error) {
	var out []model.IndicatorObservation

	page := 1
	for {
		url := fmt.Sprintf("%s/country/all/indicator/%s?format=json&per_page=%d&page=%d&date=%d:%d",
			c.baseURL, code, c.perPage, page, fromYear, toYear)

		meta, entries, err := c.fetchPage(ctx, url)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: worldbank %s page %d", code, page)
		}

		for _, e := range entries {
			if e.Value == nil || e.ISO3 == "" {
				continue
			}
			year, err := strconv.Atoi(e.Date)
			if err != nil {
				continue
			}
			out = append(out, model.IndicatorObservation{
				Indicator:   e.Indicator.ID,
				CountryCode: e.ISO3,
				CountryName: e.Country.Value,
				Year:        year,
				Value:       *e.Value,
			})
		}

		if page >= meta.Pages {
			break
		}
		page++
	}

	zap.L().Info("fetcher: worldbank indicator fetched",
		zap.String("indicator", code),
		zap.Int("observations", len(out)),
	)
	return out, nil
}

func (c *WorldBankClient) fetchPage(ctx context.Context, url string) (*wbMeta, []wbEntry, error) {
	body, err := c.fetcher.Download(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close() //nolint:errcheck

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, eris.Wrap(err, "fetcher: read worldbank response")
	}

	// Responses are a two-element array: [meta, entries]. Error responses
	// are a one-element array with a message object.
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, nil, eris.Wrap(err, "fetcher: decode worldbank response")
	}
	if len(parts) < 2 {
		return nil, nil, eris.Errorf("fetcher: worldbank error response: %s", truncate(string(raw), 200))
	}

	var meta wbMeta
	if err := json.Unmarshal(parts[0], &meta); err != nil {
		return nil, nil, eris.Wrap(err, "fetcher: decode worldbank meta")
	}
	var entries []wbEntry
	if err := json.Unmarshal(parts[1], &entries); err != nil {
		return nil, nil, eris.Wrap(err, "fetcher: decode worldbank entries")
	}
	return &meta, entries, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
