package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/afrimetrics/atlas-cli/internal/classify"
	"github.com/afrimetrics/atlas-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    store.Config   `yaml:"store" mapstructure:"store"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Process  ProcessConfig  `yaml:"process" mapstructure:"process"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the raw and cleaned dataset directories.
type DataConfig struct {
	RawDir    string `yaml:"raw_dir" mapstructure:"raw_dir"`
	CleanDir  string `yaml:"clean_dir" mapstructure:"clean_dir"`
	GADMDir   string `yaml:"gadm_dir" mapstructure:"gadm_dir"`
	RasterDir string `yaml:"raster_dir" mapstructure:"raster_dir"`
	CitiesCSV string `yaml:"cities_csv" mapstructure:"cities_csv"`
}

// FetchConfig configures the raw data fetcher.
type FetchConfig struct {
	Manifest    string `yaml:"manifest" mapstructure:"manifest"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries     int    `yaml:"retries" mapstructure:"retries"`
	StartYear   int    `yaml:"start_year" mapstructure:"start_year"`
}

// ClassifyConfig holds classification defaults.
type ClassifyConfig struct {
	Classes int    `yaml:"classes" mapstructure:"classes"`
	Method  string `yaml:"method" mapstructure:"method"`
}

// ProcessConfig configures the per-country batch.
type ProcessConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	ReportDir   string `yaml:"report_dir" mapstructure:"report_dir"`
	ExportDir   string `yaml:"export_dir" mapstructure:"export_dir"`
}

// ServerConfig configures the data API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "atlas.db")
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.clean_dir", "data/clean")
	v.SetDefault("data.gadm_dir", "data/gadm")
	v.SetDefault("data.raster_dir", "data/rasters")
	v.SetDefault("data.cities_csv", "data/clean/africapolis.csv")
	v.SetDefault("fetch.manifest", "sources.yaml")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.start_year", 2000)
	v.SetDefault("classify.classes", 9)
	v.SetDefault("classify.method", "hybrid")
	v.SetDefault("process.concurrency", 4)
	v.SetDefault("process.report_dir", "reports")
	v.SetDefault("process.export_dir", "data/clipped")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given mode depends on. Modes map to
// command groups: "process", "fetch", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Classify.Classes < 1 {
		problems = append(problems, "classify.classes must be >= 1")
	}
	if _, err := classify.ParseMethod(c.Classify.Method); err != nil {
		problems = append(problems, fmt.Sprintf("classify.method %q is not a known method", c.Classify.Method))
	}

	switch mode {
	case "process":
		if c.Process.Concurrency < 1 || c.Process.Concurrency > 32 {
			problems = append(problems, "process.concurrency must be between 1 and 32")
		}
		if c.Data.GADMDir == "" {
			problems = append(problems, "data.gadm_dir is required")
		}
		if c.Data.RasterDir == "" {
			problems = append(problems, "data.raster_dir is required")
		}
	case "fetch":
		if c.Fetch.Manifest == "" {
			problems = append(problems, "fetch.manifest is required")
		}
		if c.Data.RawDir == "" {
			problems = append(problems, "data.raw_dir is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		problems = append(problems, "store.dsn is required for the postgres driver")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
