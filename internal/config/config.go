// Package config loads application configuration from file and environment.
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
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Refdata RefdataConfig `yaml:"refdata" mapstructure:"refdata"`
	Map     MapConfig     `yaml:"map" mapstructure:"map"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Deploy  DeployConfig  `yaml:"deploy" mapstructure:"deploy"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the upstream housing dataset and local working dirs.
type DataConfig struct {
	ZHVIURL   string `yaml:"zhvi_url" mapstructure:"zhvi_url"`
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// RefdataConfig locates static reference data (population, boundaries).
type RefdataConfig struct {
	PopulationPath string `yaml:"population_path" mapstructure:"population_path"`
	ShapefilePath  string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	ShapefileURL   string `yaml:"shapefile_url" mapstructure:"shapefile_url"`
	DetailTier     string `yaml:"detail_tier" mapstructure:"detail_tier"`
}

// MapConfig configures bucket computation and map output.
type MapConfig struct {
	BucketCount int    `yaml:"bucket_count" mapstructure:"bucket_count"`
	PalettePath string `yaml:"palette_path" mapstructure:"palette_path"`
	Title       string `yaml:"title" mapstructure:"title"`
}

// FetchConfig configures HTTP download behavior.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// StoreConfig configures the snapshot metadata store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DeployConfig configures map publication.
type DeployConfig struct {
	Mode       string `yaml:"mode" mapstructure:"mode"`
	PublishDir string `yaml:"publish_dir" mapstructure:"publish_dir"`
	FTPHost    string `yaml:"ftp_host" mapstructure:"ftp_host"`
	FTPUser    string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPass    string `yaml:"ftp_pass" mapstructure:"ftp_pass"`
	RemoteDir  string `yaml:"remote_dir" mapstructure:"remote_dir"`
}

// ServerConfig configures the preview server.
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
	v.SetEnvPrefix("PRICEMAPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.zhvi_url", "https://files.zillowstatic.com/research/public_csvs/zhvi/Zip_zhvi_uc_sfrcondo_tier_0.33_0.67_sm_sa_month.csv")
	v.SetDefault("data.data_dir", "data")
	v.SetDefault("data.output_dir", "output")
	v.SetDefault("refdata.population_path", "resources/populations/PopulationByZIP.csv")
	v.SetDefault("refdata.shapefile_path", "resources/shapefiles/cb_2020_us_zcta520_500k.shp")
	v.SetDefault("refdata.shapefile_url", "https://www2.census.gov/geo/tiger/GENZ2020/shp/cb_2020_us_zcta520_500k.zip")
	v.SetDefault("refdata.detail_tier", "500k")
	v.SetDefault("map.bucket_count", 5)
	v.SetDefault("map.title", "US Home Prices by ZIP Code")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "pricemaps/1.0")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/pricemaps.db")
	v.SetDefault("deploy.mode", "copy")
	v.SetDefault("deploy.remote_dir", "/public_html/maps")
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
