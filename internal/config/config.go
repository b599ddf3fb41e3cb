package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Sources  SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Fetch    FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Quality  QualityConfig   `yaml:"quality" mapstructure:"quality"`
	Marts    MartsConfig     `yaml:"marts" mapstructure:"marts"`
	Registry []RegistryEntry `yaml:"registry" mapstructure:"registry"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the warehouse backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional Postgres connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourcesConfig configures the raw provider extracts and per-source cleaning
// rules.
type SourcesConfig struct {
	AptList SourceConfig `yaml:"aptlist" mapstructure:"aptlist"`
	ZORI    SourceConfig `yaml:"zori" mapstructure:"zori"`
	FRED    SourceConfig `yaml:"fred" mapstructure:"fred"`
}

// SourceConfig holds one source's extract location and cleaning rules.
type SourceConfig struct {
	Path     string        `yaml:"path" mapstructure:"path"`
	MinDate  string        `yaml:"min_date" mapstructure:"min_date"`
	MaxDate  string        `yaml:"max_date" mapstructure:"max_date"`
	MinValue float64       `yaml:"min_value" mapstructure:"min_value"`
	MaxValue float64       `yaml:"max_value" mapstructure:"max_value"`
	Anomaly  AnomalyConfig `yaml:"anomaly" mapstructure:"anomaly"`
}

// AnomalyConfig selects and tunes the anomaly detection policy for a source.
// Method is "percentile" or "zscore"; Scope is "global" or "window" and
// applies to zscore only.
type AnomalyConfig struct {
	Method         string  `yaml:"method" mapstructure:"method"`
	ZScoreK        float64 `yaml:"zscore_k" mapstructure:"zscore_k"`
	Window         int     `yaml:"window" mapstructure:"window"`
	Scope          string  `yaml:"scope" mapstructure:"scope"`
	PercentileLow  float64 `yaml:"percentile_low" mapstructure:"percentile_low"`
	PercentileHigh float64 `yaml:"percentile_high" mapstructure:"percentile_high"`
}

// FetchConfig configures the provider pull command.
type FetchConfig struct {
	RawDir      string   `yaml:"raw_dir" mapstructure:"raw_dir"`
	UserAgent   string   `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FREDKey     string   `yaml:"fred_api_key" mapstructure:"fred_api_key"`
	FREDSeries  []string `yaml:"fred_series" mapstructure:"fred_series"`
	ZORIURL     string   `yaml:"zori_url" mapstructure:"zori_url"`
}

// QualityConfig configures the quality gate. SuitePath overrides the embedded
// default assertion suite.
type QualityConfig struct {
	SuitePath string `yaml:"suite_path" mapstructure:"suite_path"`
}

// MartsConfig tunes mart aggregation.
type MartsConfig struct {
	HotThreshold  float64 `yaml:"hot_threshold" mapstructure:"hot_threshold"`
	CoolThreshold float64 `yaml:"cool_threshold" mapstructure:"cool_threshold"`
	MaxMarkets    int     `yaml:"max_markets" mapstructure:"max_markets"`
}

// RegistryEntry defines one static data source dimension entry.
type RegistryEntry struct {
	Name             string `yaml:"name" mapstructure:"name"`
	Provider         string `yaml:"provider" mapstructure:"provider"`
	DataType         string `yaml:"data_type" mapstructure:"data_type"`
	UpdateCadence    string `yaml:"update_cadence" mapstructure:"update_cadence"`
	ReliabilityScore int    `yaml:"reliability_score" mapstructure:"reliability_score"`
}

// ServerConfig configures the read-only query API.
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
	v.SetEnvPrefix("RENTSIGNALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "rent_signals.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.raw_dir", "data/raw")
	v.SetDefault("fetch.user_agent", "rent-signals/1.0 data@sellsadvisors.com")
	v.SetDefault("fetch.rate_per_sec", 2)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.fred_series", []string{"CPIAUCSL", "CUUR0000SEHA"})
	v.SetDefault("fetch.zori_url", "https://files.zillowstatic.com/research/public_csvs/zori/Metro_zori_uc_sfrcondomfr_sm_month.csv")
	v.SetDefault("sources.aptlist.path", "data/raw/aptlist/rent_estimates.csv")
	v.SetDefault("sources.aptlist.min_date", "2017-01-01")
	v.SetDefault("sources.aptlist.max_date", "2030-12-31")
	v.SetDefault("sources.aptlist.min_value", 100)
	v.SetDefault("sources.aptlist.max_value", 10000)
	v.SetDefault("sources.zori.path", "data/raw/zillow/zori_metro_month.csv")
	v.SetDefault("sources.zori.min_date", "2015-01-01")
	v.SetDefault("sources.zori.max_date", "2030-12-31")
	v.SetDefault("sources.zori.min_value", 500)
	v.SetDefault("sources.zori.max_value", 8000)
	v.SetDefault("sources.fred.path", "data/raw/fred/cpi_series.csv")
	v.SetDefault("sources.fred.min_date", "2000-01-01")
	v.SetDefault("sources.fred.max_date", "2030-12-31")
	v.SetDefault("sources.fred.min_value", 1)
	v.SetDefault("sources.fred.max_value", 1000)
	for _, src := range []string{"aptlist", "zori", "fred"} {
		v.SetDefault("sources."+src+".anomaly.method", "zscore")
		v.SetDefault("sources."+src+".anomaly.zscore_k", 3)
		v.SetDefault("sources."+src+".anomaly.window", 5)
		v.SetDefault("sources."+src+".anomaly.scope", "global")
		v.SetDefault("sources."+src+".anomaly.percentile_low", 0.01)
		v.SetDefault("sources."+src+".anomaly.percentile_high", 0.99)
	}
	v.SetDefault("marts.hot_threshold", 5.0)
	v.SetDefault("marts.cool_threshold", 0.0)
	v.SetDefault("marts.max_markets", 1000)

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

	if len(cfg.Registry) == 0 {
		cfg.Registry = DefaultRegistry()
	}

	return &cfg, nil
}

// DefaultRegistry returns the built-in data source registry entries.
func DefaultRegistry() []RegistryEntry {
	return []RegistryEntry{
		{Name: "aptlist", Provider: "ApartmentList", DataType: "rent_estimates", UpdateCadence: "monthly", ReliabilityScore: 7},
		{Name: "zori", Provider: "Zillow ZORI", DataType: "rent_index", UpdateCadence: "monthly", ReliabilityScore: 9},
		{Name: "fred", Provider: "FRED", DataType: "economic_indicators", UpdateCadence: "monthly", ReliabilityScore: 10},
	}
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
