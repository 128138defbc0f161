package fetcher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SourceKind selects the transport for a manifest entry.
type SourceKind string

const (
	SourceHTTP      SourceKind = "http"
	SourceFTP       SourceKind = "ftp"
	SourceWorldBank SourceKind = "worldbank"
)

// Source is one raw dataset in the manifest.
type Source struct {
	Name string     `yaml:"name"`
	Kind SourceKind `yaml:"kind"`
	URL  string     `yaml:"url,omitempty"`
	// Dest is the output path relative to the raw data directory.
	Dest  string `yaml:"dest"`
	Unzip bool   `yaml:"unzip,omitempty"`
	// Indicator and the year range apply to worldbank sources only.
	Indicator string `yaml:"indicator,omitempty"`
	FromYear  int    `yaml:"from_year,omitempty"`
	ToYear    int    `yaml:"to_year,omitempty"`
}

// Manifest is the parsed sources.yaml.
type Manifest struct {
	Sources []Source `yaml:"sources"`
}

// LoadManifest reads and validates a sources.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrap(err, "fetcher: parse manifest")
	}

	for i, s := range m.Sources {
		if s.Name == "" || s.Dest == "" {
			return nil, eris.Errorf("fetcher: manifest source %d missing name or dest", i)
		}
		switch s.Kind {
		case SourceHTTP, SourceFTP:
			if s.URL == "" {
				return nil, eris.Errorf("fetcher: manifest source %q missing url", s.Name)
			}
		case SourceWorldBank:
			if s.Indicator == "" {
				return nil, eris.Errorf("fetcher: manifest source %q missing indicator", s.Name)
			}
		default:
			return nil, eris.Errorf("fetcher: manifest source %q has unknown kind %q", s.Name, s.Kind)
		}
	}

	return &m, nil
}

// Find returns the named source.
func (m *Manifest) Find(name string) (Source, error) {
	for _, s := range m.Sources {
		if s.Name == name {
			return s, nil
		}
	}
	return Source{}, eris.Errorf("fetcher: source %q not in manifest", name)
}

// Downloader runs manifest entries against the right transport and lays
// the results out under the raw data directory.
type Downloader struct {
	HTTP Fetcher
	FTP  Fetcher
	WB   *WorldBankClient
	// RawDir is the root for Dest paths.
	RawDir string
}

// Fetch downloads a single source. ZIP archives are expanded next to the
// downloaded file when the entry asks for it.
func (d *Downloader) Fetch(ctx context.Context, src Source) error {
	dest := filepath.Join(d.RawDir, src.Dest)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "fetcher: create raw dir")
	}

	switch src.Kind {
	case SourceHTTP, SourceFTP:
		f := d.HTTP
		if src.Kind == SourceFTP {
			f = d.FTP
		}
		n, err := f.DownloadToFile(ctx, src.URL, dest)
		if err != nil {
			return eris.Wrapf(err, "fetcher: source %q", src.Name)
		}
		zap.L().Info("fetcher: downloaded source",
			zap.String("source", src.Name),
			zap.Int64("bytes", n),
		)
		if src.Unzip {
			if _, err := ExtractZIP(dest, filepath.Dir(dest)); err != nil {
				return eris.Wrapf(err, "fetcher: unzip source %q", src.Name)
			}
		}
		return nil

	case SourceWorldBank:
		obs, err := d.WB.Indicator(ctx, src.Indicator, src.FromYear, src.ToYear)
		if err != nil {
			return eris.Wrapf(err, "fetcher: source %q", src.Name)
		}
		if err := writeObservationsCSV(dest, obs); err != nil {
			return eris.Wrapf(err, "fetcher: source %q", src.Name)
		}
		return nil

	default:
		return eris.Errorf("fetcher: source %q has unknown kind %q", src.Name, src.Kind)
	}
}
