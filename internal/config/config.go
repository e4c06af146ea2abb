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
	Agencies    []AgencyConfig    `yaml:"agencies" mapstructure:"agencies"`
	Area        AreaConfig        `yaml:"area" mapstructure:"area"`
	Radii       RadiiConfig       `yaml:"radii" mapstructure:"radii"`
	Dedup       DedupConfig       `yaml:"dedup" mapstructure:"dedup"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	CitizenRIMS CitizenRIMSConfig `yaml:"citizenrims" mapstructure:"citizenrims"`
	ArcGIS      ArcGISConfig      `yaml:"arcgis" mapstructure:"arcgis"`
	Classify    ClassifyConfig    `yaml:"classify" mapstructure:"classify"`
	Feed        FeedConfig        `yaml:"feed" mapstructure:"feed"`
	Notify      NotifyConfig      `yaml:"notify" mapstructure:"notify"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// AgencyConfig identifies one CitizenRIMS agency by its subdomain prefix.
type AgencyConfig struct {
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	Name   string `yaml:"name" mapstructure:"name"`
}

// AreaConfig describes the reference area alerts are measured against.
// Either a point (lat/lng) or a polygon boundary; a shapefile path takes
// precedence over inline vertices.
type AreaConfig struct {
	Name      string       `yaml:"name" mapstructure:"name"`
	Lat       float64      `yaml:"lat" mapstructure:"lat"`
	Lng       float64      `yaml:"lng" mapstructure:"lng"`
	Shapefile string       `yaml:"shapefile" mapstructure:"shapefile"`
	Vertices  [][2]float64 `yaml:"vertices" mapstructure:"vertices"`
}

// RadiiConfig holds the per-category alert radii in meters.
type RadiiConfig struct {
	PropertyCrimeM      float64 `yaml:"property_crime_m" mapstructure:"property_crime_m"`
	SuspiciousActivityM float64 `yaml:"suspicious_activity_m" mapstructure:"suspicious_activity_m"`
}

// DedupConfig configures the alerted-record store backend.
type DedupConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures record retrieval.
type FetchConfig struct {
	LookbackDays   int     `yaml:"lookback_days" mapstructure:"lookback_days"`
	MaxConcurrent  int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SearchRadiusM  float64 `yaml:"search_radius_m" mapstructure:"search_radius_m"`
	RefreshMinutes int     `yaml:"refresh_minutes" mapstructure:"refresh_minutes"`
}

// CitizenRIMSConfig holds CitizenRIMS portal settings. An empty BaseURL
// means the client's production endpoint.
type CitizenRIMSConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ArcGISConfig holds the Palo Alto open-data MapServer settings.
type ArcGISConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	PageSize int    `yaml:"page_size" mapstructure:"page_size"`
}

// ClassifyConfig points at an optional rules file overriding the built-in set.
type ClassifyConfig struct {
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
}

// FeedConfig configures static feed output.
type FeedConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// NotifyConfig selects and configures alert delivery.
type NotifyConfig struct {
	Driver  string        `yaml:"driver" mapstructure:"driver"`
	Webhook WebhookConfig `yaml:"webhook" mapstructure:"webhook"`
	SMTP    SMTPConfig    `yaml:"smtp" mapstructure:"smtp"`
}

// WebhookConfig holds webhook delivery settings.
type WebhookConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// SMTPConfig holds email delivery settings.
type SMTPConfig struct {
	Host       string   `yaml:"host" mapstructure:"host"`
	Port       int      `yaml:"port" mapstructure:"port"`
	Username   string   `yaml:"username" mapstructure:"username"`
	Password   string   `yaml:"password" mapstructure:"password"`
	Recipients []string `yaml:"recipients" mapstructure:"recipients"`
	MapURL     string   `yaml:"map_url" mapstructure:"map_url"`
}

// ServerConfig configures the feed server.
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
	v.SetEnvPrefix("CRIMEFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("area.name", "Menlo Oaks")
	v.SetDefault("area.lat", 37.448)
	v.SetDefault("area.lng", -122.177)
	v.SetDefault("radii.property_crime_m", 4828.0)
	v.SetDefault("radii.suspicious_activity_m", 402.0)
	v.SetDefault("dedup.driver", "sqlite")
	v.SetDefault("dedup.path", "crimefeed.db")
	v.SetDefault("fetch.lookback_days", 7)
	v.SetDefault("fetch.max_concurrent", 4)
	v.SetDefault("fetch.rate_per_second", 2.0)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.search_radius_m", 50000.0)
	v.SetDefault("fetch.refresh_minutes", 15)
	v.SetDefault("arcgis.base_url", "https://gis.cityofpaloalto.org/server/rest/services/PublicSafety/AgencyCommonEvent/MapServer/2")
	v.SetDefault("arcgis.page_size", 1000)
	v.SetDefault("feed.output_dir", "public")
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.smtp.host", "smtp.gmail.com")
	v.SetDefault("notify.smtp.port", 465)
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

// Validate checks that the settings a command needs are present and sane.
// Mode is the command family: "generate", "alerts", "serve" or "export".
func (c *Config) Validate(mode string) error {
	var missing []string

	check := func() {
		if c.Radii.PropertyCrimeM <= 0 || c.Radii.SuspiciousActivityM <= 0 {
			missing = append(missing, "radii values must be > 0")
		}
		if c.Radii.SuspiciousActivityM > c.Radii.PropertyCrimeM {
			missing = append(missing, "radii.suspicious_activity_m must not exceed radii.property_crime_m")
		}
		switch c.Dedup.Driver {
		case "file", "sqlite":
			if c.Dedup.Path == "" {
				missing = append(missing, "dedup.path is required")
			}
		case "postgres":
			if c.Dedup.DatabaseURL == "" {
				missing = append(missing, "dedup.database_url is required")
			}
		default:
			missing = append(missing, "dedup.driver must be file, sqlite or postgres")
		}
	}

	switch mode {
	case "generate", "alerts":
		check()
		if len(c.Agencies) == 0 && !c.ArcGIS.Enabled {
			missing = append(missing, "at least one agency or arcgis.enabled is required")
		}
		if c.Fetch.MaxConcurrent < 1 || c.Fetch.MaxConcurrent > 16 {
			missing = append(missing, "fetch.max_concurrent must be between 1 and 16")
		}
		if c.Notify.Driver == "webhook" && c.Notify.Webhook.URL == "" {
			missing = append(missing, "notify.webhook.url is required")
		}
		if c.Notify.Driver == "smtp" && (c.Notify.SMTP.Username == "" || c.Notify.SMTP.Password == "") {
			missing = append(missing, "notify.smtp credentials are required")
		}
	case "serve":
		check()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "export":
		check()
		if c.Dedup.Driver == "file" {
			missing = append(missing, "export requires the sqlite or postgres dedup driver")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(missing, "; "))
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
