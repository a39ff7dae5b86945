package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrInvalidConfiguration marks configuration that fails validation before any
// processing starts. Callers classify with eris.Is.
var ErrInvalidConfiguration = eris.New("invalid configuration")

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Geometry GeometryConfig `yaml:"geometry" mapstructure:"geometry"`
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	AOI      AOIConfig      `yaml:"aoi" mapstructure:"aoi"`
	Roads    RoadsConfig    `yaml:"roads" mapstructure:"roads"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the summary store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeometryConfig selects the geometry algebra backend.
type GeometryConfig struct {
	Engine       string `yaml:"engine" mapstructure:"engine"`
	QuadSegments int    `yaml:"quad_segments" mapstructure:"quad_segments"`
	DatabaseURL  string `yaml:"database_url" mapstructure:"database_url"`
}

// PathsConfig anchors the on-disk data layout.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// RawDir is where fetched archives are extracted.
func (p PathsConfig) RawDir() string { return filepath.Join(p.DataDir, "raw") }

// ProcessedDir holds prepared layers (AOI, roads, deforestation).
func (p PathsConfig) ProcessedDir() string { return filepath.Join(p.DataDir, "processed") }

// BuffersDir holds ring geometries and the ring manifest.
func (p PathsConfig) BuffersDir() string { return filepath.Join(p.ProcessedDir(), "buffers") }

// IntersectionDir holds overlay outputs and the summary store.
func (p PathsConfig) IntersectionDir() string {
	return filepath.Join(p.ProcessedDir(), "intersection")
}

// AOIPath is the dissolved area-of-interest polygon.
func (p PathsConfig) AOIPath() string { return filepath.Join(p.ProcessedDir(), "aoi.geojson") }

// RoadsPath is the clipped road layer.
func (p PathsConfig) RoadsPath() string { return filepath.Join(p.ProcessedDir(), "roads.geojson") }

// DeforestationPath is the prepared deforestation layer.
func (p PathsConfig) DeforestationPath() string {
	return filepath.Join(p.ProcessedDir(), "deforestation.geojson")
}

// PreviewPath is the bounded deforestation preview.
func (p PathsConfig) PreviewPath() string {
	return filepath.Join(p.ProcessedDir(), "deforestation_preview.geojson")
}

// RingsPath is the ring partition layer.
func (p PathsConfig) RingsPath() string { return filepath.Join(p.BuffersDir(), "rings.geojson") }

// ManifestPath is the ring construction manifest.
func (p PathsConfig) ManifestPath() string { return filepath.Join(p.BuffersDir(), "manifest.yaml") }

// FragmentsPath is the retained overlay fragment layer.
func (p PathsConfig) FragmentsPath() string {
	return filepath.Join(p.IntersectionDir(), "fragments.geojson")
}

// AOIConfig identifies the analysis unit within the boundary layer.
type AOIConfig struct {
	Code string `yaml:"code" mapstructure:"code"`
	Name string `yaml:"name" mapstructure:"name"`
	SRID int    `yaml:"srid" mapstructure:"srid"`
}

// RoadsConfig filters the road layer before ring construction.
type RoadsConfig struct {
	Classes []string `yaml:"classes" mapstructure:"classes"`
}

// AnalysisConfig drives ring construction and the overlay run.
type AnalysisConfig struct {
	ThresholdsKm    []float64 `yaml:"thresholds_km" mapstructure:"thresholds_km"`
	ChunkSize       int       `yaml:"chunk_size" mapstructure:"chunk_size"`
	Workers         int       `yaml:"workers" mapstructure:"workers"`
	YearMin         int       `yaml:"year_min" mapstructure:"year_min"`
	YearMax         int       `yaml:"year_max" mapstructure:"year_max"`
	ClassField      string    `yaml:"class_field" mapstructure:"class_field"`
	ClassKeep       []string  `yaml:"class_keep" mapstructure:"class_keep"`
	PreviewFeatures int       `yaml:"preview_features" mapstructure:"preview_features"`
	KeepFragments   bool      `yaml:"keep_fragments" mapstructure:"keep_fragments"`
}

// Validate rejects analysis settings that would make a run meaningless.
func (a AnalysisConfig) Validate() error {
	if len(a.ThresholdsKm) == 0 {
		return eris.Wrap(ErrInvalidConfiguration, "analysis: at least one threshold required")
	}
	prev := 0.0
	for i, t := range a.ThresholdsKm {
		if t <= prev {
			return eris.Wrapf(ErrInvalidConfiguration,
				"analysis: thresholds must be positive and strictly increasing, got %v at index %d", t, i)
		}
		prev = t
	}
	if a.ChunkSize <= 0 {
		return eris.Wrapf(ErrInvalidConfiguration, "analysis: chunk_size must be positive, got %d", a.ChunkSize)
	}
	if a.Workers <= 0 {
		return eris.Wrapf(ErrInvalidConfiguration, "analysis: workers must be positive, got %d", a.Workers)
	}
	if a.YearMin != 0 && a.YearMax != 0 && a.YearMin > a.YearMax {
		return eris.Wrapf(ErrInvalidConfiguration,
			"analysis: year_min %d exceeds year_max %d", a.YearMin, a.YearMax)
	}
	return nil
}

// FetchConfig configures source archive downloads.
type FetchConfig struct {
	TimeoutSecs int          `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Sources     FetchSources `yaml:"sources" mapstructure:"sources"`
}

// FetchSources holds one URL per source archive. The boundary source may use
// an ftp:// scheme; the others are HTTP.
type FetchSources struct {
	Roads         string `yaml:"roads" mapstructure:"roads"`
	Boundary      string `yaml:"boundary" mapstructure:"boundary"`
	Deforestation string `yaml:"deforestation" mapstructure:"deforestation"`
}

// ServerConfig configures the read-only summary API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path searches
// the working directory for config.yaml and tolerates its absence; a non-empty
// path names a file that must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("ROADRINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/processed/intersection/summary.db")
	v.SetDefault("geometry.engine", "local")
	v.SetDefault("geometry.quad_segments", 8)
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("aoi.code", "RR")
	v.SetDefault("aoi.name", "Roraima")
	v.SetDefault("aoi.srid", 5880)
	v.SetDefault("analysis.thresholds_km", []float64{5, 10, 20})
	v.SetDefault("analysis.chunk_size", 20000)
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.class_field", "main_class")
	v.SetDefault("analysis.preview_features", 500)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.sources.roads", "https://download.geofabrik.de/south-america/brazil/norte-latest-free.shp.zip")
	v.SetDefault("fetch.sources.boundary", "ftp://geoftp.ibge.gov.br/organizacao_do_territorio/malhas_territoriais/malhas_municipais/municipio_2022/Brasil/BR/BR_UF_2022.zip")
	v.SetDefault("fetch.sources.deforestation", "https://terrabrasilis.dpi.inpe.br/download/dataset/amz-prodes/vector/yearly_deforestation.zip")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// A missing file is only tolerated when no explicit path was given.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
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
