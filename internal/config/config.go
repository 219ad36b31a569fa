package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the run configuration for the ETL: where the spreadsheet and
// cache live, which free-text provider to use and how fast it may be called,
// the geofence anchor, and the database the enriched rows land in.
type Config struct {
	Env               string         // Env is the current environment: local, development, production.
	Port              int            // Port is the monitoring server port.
	ExcelPath         string         // Path of the spreadsheet to ingest.
	CachePath         string         // Path of the persistent geocache file.
	FlushEvery        int            // Commit cache and progress every N records.
	ProviderType      string         // Which free-text geocoding provider to use.
	APIKey            string         // The API key for accessing external services (Google).
	MinRequestDelay   time.Duration  // Minimum gap between free-text requests, process-wide.
	AnchorLat         float64        // Static geofence anchor latitude.
	AnchorLon         float64        // Static geofence anchor longitude.
	AnchorToleranceKm float64        // Acceptance radius around the static anchor.
	CityToleranceKm   float64        // Acceptance radius around a resolved city centroid.
	AnchorLabel       string         // Human-readable anchor name for prompts and logs.
	FencePolicy       string         // What an unresolvable anchor means: accept or reject.
	NegativeTTL       time.Duration  // Lifetime of "not found" cache markers; 0 keeps them forever.
	Database          PostgresConfig // Database holds the postgres database configuration.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

// MustLoad loads configuration from the environment (plus an optional .env
// file and an optional config file named by GEOETL_CONFIG) and panics on
// unparsable values.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("geoetl")
	v.AutomaticEnv()

	v.SetDefault("env", "production")
	v.SetDefault("health_port", 8080)
	v.SetDefault("excel_path", "data/locations.xlsx")
	v.SetDefault("cache_path", "data/geocache.json")
	v.SetDefault("flush_every", 50)
	v.SetDefault("provider_type", "nominatim")
	v.SetDefault("min_request_delay", "1.2s")
	v.SetDefault("anchor_lat", -12.9714)
	v.SetDefault("anchor_lon", -38.5014)
	v.SetDefault("anchor_tolerance_km", 150.0)
	v.SetDefault("city_tolerance_km", 60.0)
	v.SetDefault("anchor_label", "Salvador")
	v.SetDefault("fence_policy", "accept")
	v.SetDefault("negative_ttl", "0s")

	// Database settings keep their historical unprefixed names.
	_ = v.BindEnv("db_host", "DB_HOST")
	_ = v.BindEnv("db_port", "DB_PORT")
	_ = v.BindEnv("db_username", "DB_USERNAME")
	_ = v.BindEnv("db_password", "DB_PASSWORD")
	_ = v.BindEnv("db_name", "DB_NAME")
	v.SetDefault("db_port", "5432")

	if path := os.Getenv("GEOETL_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read configuration file: " + err.Error())
		}
	}

	minDelay, err := time.ParseDuration(v.GetString("min_request_delay"))
	if err != nil {
		panic("failed to parse minimum request delay from configuration")
	}

	negativeTTL, err := time.ParseDuration(v.GetString("negative_ttl"))
	if err != nil {
		panic("failed to parse negative cache TTL from configuration")
	}

	flushEvery := v.GetInt("flush_every")
	if flushEvery <= 0 {
		panic("flush interval must be a positive record count")
	}

	return &Config{
		Env:               v.GetString("env"),
		Port:              v.GetInt("health_port"),
		ExcelPath:         v.GetString("excel_path"),
		CachePath:         v.GetString("cache_path"),
		FlushEvery:        flushEvery,
		ProviderType:      v.GetString("provider_type"),
		APIKey:            v.GetString("provider_key"),
		MinRequestDelay:   minDelay,
		AnchorLat:         v.GetFloat64("anchor_lat"),
		AnchorLon:         v.GetFloat64("anchor_lon"),
		AnchorToleranceKm: v.GetFloat64("anchor_tolerance_km"),
		CityToleranceKm:   v.GetFloat64("city_tolerance_km"),
		AnchorLabel:       v.GetString("anchor_label"),
		FencePolicy:       v.GetString("fence_policy"),
		NegativeTTL:       negativeTTL,
		Database: PostgresConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_username"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
		},
	}
}
