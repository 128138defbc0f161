// Package registry carries the canonical Sub-Saharan Africa country table
// used across the pipeline: the 48 World Bank SSA members with their
// AFE/AFW subregion assignment, plus the African countries excluded from
// Sub-Saharan aggregates.
package registry

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Subregion is a World Bank operational subregion code.
type Subregion string

const (
	// AFE is Eastern and Southern Africa.
	AFE Subregion = "AFE"
	// AFW is Western and Central Africa.
	AFW Subregion = "AFW"
)

// Country is one Sub-Saharan Africa member.
type Country struct {
	ISO3      string
	Name      string
	Subregion Subregion
}

// ErrUnknownCountry signals an ISO3 code outside the Sub-Saharan table.
var ErrUnknownCountry = eris.New("registry: unknown country")

// NorthAfrican lists the African ISO3 codes excluded from Sub-Saharan
// aggregates.
var NorthAfrican = map[string]bool{
	"DZA": true, "EGY": true, "LBY": true, "MAR": true, "TUN": true,
}

// countries is the World Bank SSA classification, AFE then AFW,
// alphabetical within each subregion.
var countries = []Country{
	{"AGO", "Angola", AFE},
	{"BWA", "Botswana", AFE},
	{"BDI", "Burundi", AFE},
	{"COM", "Comoros", AFE},
	{"COD", "Congo, Dem. Rep.", AFE},
	{"ERI", "Eritrea", AFE},
	{"SWZ", "Eswatini", AFE},
	{"ETH", "Ethiopia", AFE},
	{"KEN", "Kenya", AFE},
	{"LSO", "Lesotho", AFE},
	{"MDG", "Madagascar", AFE},
	{"MWI", "Malawi", AFE},
	{"MUS", "Mauritius", AFE},
	{"MOZ", "Mozambique", AFE},
	{"NAM", "Namibia", AFE},
	{"RWA", "Rwanda", AFE},
	{"STP", "Sao Tome and Principe", AFE},
	{"SYC", "Seychelles", AFE},
	{"SOM", "Somalia", AFE},
	{"ZAF", "South Africa", AFE},
	{"SSD", "South Sudan", AFE},
	{"SDN", "Sudan", AFE},
	{"TZA", "Tanzania", AFE},
	{"UGA", "Uganda", AFE},
	{"ZMB", "Zambia", AFE},
	{"ZWE", "Zimbabwe", AFE},
	{"BEN", "Benin", AFW},
	{"BFA", "Burkina Faso", AFW},
	{"CPV", "Cabo Verde", AFW},
	{"CMR", "Cameroon", AFW},
	{"CAF", "Central African Republic", AFW},
	{"TCD", "Chad", AFW},
	{"COG", "Congo, Rep.", AFW},
	{"CIV", "Cote d'Ivoire", AFW},
	{"GNQ", "Equatorial Guinea", AFW},
	{"GAB", "Gabon", AFW},
	{"GMB", "Gambia, The", AFW},
	{"GHA", "Ghana", AFW},
	{"GIN", "Guinea", AFW},
	{"GNB", "Guinea-Bissau", AFW},
	{"LBR", "Liberia", AFW},
	{"MLI", "Mali", AFW},
	{"MRT", "Mauritania", AFW},
	{"NER", "Niger", AFW},
	{"NGA", "Nigeria", AFW},
	{"SEN", "Senegal", AFW},
	{"SLE", "Sierra Leone", AFW},
	{"TGO", "Togo", AFW},
}

var (
	byISO3 = make(map[string]Country, len(countries))
	byName = make(map[string]Country, len(countries))
)

func init() {
	for _, c := range countries {
		byISO3[c.ISO3] = c
		byName[strings.ToLower(c.Name)] = c
	}
}

// Lookup resolves an ISO3 code, case-insensitively.
func Lookup(iso3 string) (Country, error) {
	c, ok := byISO3[strings.ToUpper(strings.TrimSpace(iso3))]
	if !ok {
		return Country{}, eris.Wrapf(ErrUnknownCountry, "registry: %q", iso3)
	}
	return c, nil
}

// ByName resolves a country name, case-insensitively.
func ByName(name string) (Country, error) {
	c, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Country{}, eris.Wrapf(ErrUnknownCountry, "registry: %q", name)
	}
	return c, nil
}

// IsSubSaharan reports whether the ISO3 code is an SSA member.
func IsSubSaharan(iso3 string) bool {
	_, ok := byISO3[strings.ToUpper(strings.TrimSpace(iso3))]
	return ok
}

// All returns the SSA members sorted by ISO3.
func All() []Country {
	out := make([]Country, len(countries))
	copy(out, countries)
	sort.Slice(out, func(i, j int) bool { return out[i].ISO3 < out[j].ISO3 })
	return out
}

// RegionMembers returns the ISO3 codes making up an aggregate region.
// "SSA" covers the full table; "AFE" and "AFW" select one subregion.
func RegionMembers(region string) ([]string, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	var out []string
	for _, c := range countries {
		switch {
		case region == "SSA":
			out = append(out, c.ISO3)
		case region == string(c.Subregion):
			out = append(out, c.ISO3)
		}
	}
	if len(out) == 0 {
		return nil, eris.Errorf("registry: unknown region %q", region)
	}
	sort.Strings(out)
	return out, nil
}
