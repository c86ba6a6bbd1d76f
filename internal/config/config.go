package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JTDingwall/herringspawnprediction/internal/domain"
)

// Config holds all service settings, populated from SPAWN_* environment
// variables with defaults applied at load.
type Config struct {
	// Input and sinks.
	InputPath    string
	GeoJSONPath  string
	SQLitePath   string
	KafkaBrokers []string
	KafkaTopic   string

	// Serving and logging.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Forecast parameters.
	TargetYear        int
	WindowStartYear   int
	WindowEndYear     int
	WindowYears       int
	MinMeasuredEvents int
	LogSDFallback     float64
	Weights           domain.Weights
	Recency           domain.RecencySchedule

	// Mapbox display-name enrichment.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from the environment, applying defaults where
// unset and validating the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPAWN")
	v.AutomaticEnv()

	v.SetDefault("geojson_path", "predictions.geojson")
	v.SetDefault("kafka_topic", "spawn-predictions")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("window_years", domain.DefaultWindowYears)
	v.SetDefault("min_measured_events", domain.DefaultMinMeasuredEvents)
	v.SetDefault("log_sd_fallback", domain.DefaultLogSDFallback)
	v.SetDefault("frequency_weight", domain.DefaultWeights.Frequency)
	v.SetDefault("recency_weight", domain.DefaultWeights.Recency)
	v.SetDefault("consistency_weight", domain.DefaultWeights.Consistency)
	v.SetDefault("recency_schedule", domain.DefaultRecencySchedule.String())
	v.SetDefault("mapbox_timeout", "5s")
	v.SetDefault("mapbox_cache_size", 1000)

	recency, err := domain.ParseRecencySchedule(v.GetString("recency_schedule"))
	if err != nil {
		return nil, fmt.Errorf("SPAWN_RECENCY_SCHEDULE: %w", err)
	}

	cfg := &Config{
		InputPath:    v.GetString("input_path"),
		GeoJSONPath:  v.GetString("geojson_path"),
		SQLitePath:   v.GetString("sqlite_path"),
		KafkaBrokers: splitBrokers(v.GetString("kafka_brokers")),
		KafkaTopic:   v.GetString("kafka_topic"),

		HTTPAddr:        v.GetString("http_addr"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),

		TargetYear:        v.GetInt("target_year"),
		WindowStartYear:   v.GetInt("window_start_year"),
		WindowEndYear:     v.GetInt("window_end_year"),
		WindowYears:       v.GetInt("window_years"),
		MinMeasuredEvents: v.GetInt("min_measured_events"),
		LogSDFallback:     v.GetFloat64("log_sd_fallback"),
		Weights: domain.Weights{
			Frequency:   v.GetFloat64("frequency_weight"),
			Recency:     v.GetFloat64("recency_weight"),
			Consistency: v.GetFloat64("consistency_weight"),
		},
		Recency: recency,

		MapboxToken:     v.GetString("mapbox_token"),
		MapboxTimeout:   v.GetDuration("mapbox_timeout"),
		MapboxCacheSize: v.GetInt("mapbox_cache_size"),
	}

	if cfg.TargetYear == 0 {
		cfg.TargetYear = domain.DefaultTargetYear()
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v.IsSet("mapbox_enabled") {
		cfg.MapboxEnabled = v.GetBool("mapbox_enabled")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ShutdownTimeout <= 0 {
		return errors.New("invalid SPAWN_SHUTDOWN_TIMEOUT")
	}
	if c.MapboxTimeout <= 0 {
		return errors.New("invalid SPAWN_MAPBOX_TIMEOUT")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("SPAWN_MAPBOX_ENABLED is true but SPAWN_MAPBOX_TOKEN is not set")
	}
	if c.MinMeasuredEvents < domain.DefaultMinMeasuredEvents {
		return fmt.Errorf("SPAWN_MIN_MEASURED_EVENTS must be >= %d for a variance estimate", domain.DefaultMinMeasuredEvents)
	}
	if (c.WindowStartYear == 0) != (c.WindowEndYear == 0) {
		return errors.New("SPAWN_WINDOW_START_YEAR and SPAWN_WINDOW_END_YEAR must be set together")
	}
	if c.WindowStartYear != 0 {
		if c.WindowStartYear > c.WindowEndYear {
			return errors.New("SPAWN_WINDOW_START_YEAR must be <= SPAWN_WINDOW_END_YEAR")
		}
		if c.WindowEndYear >= c.TargetYear {
			return errors.New("analysis window must end before the target year")
		}
	}
	if c.WindowYears <= 0 {
		return errors.New("SPAWN_WINDOW_YEARS must be positive")
	}
	return c.ForecastParams().Validate()
}

// Window returns the configured analysis window, defaulting to the
// WindowYears complete years before the target year.
func (c *Config) Window() domain.Window {
	if c.WindowStartYear != 0 {
		return domain.Window{StartYear: c.WindowStartYear, EndYear: c.WindowEndYear}
	}
	return domain.WindowEndingBefore(c.TargetYear, c.WindowYears)
}

// ForecastParams assembles the forecaster's parameter set.
func (c *Config) ForecastParams() domain.ForecastParams {
	return domain.ForecastParams{
		TargetYear:    c.TargetYear,
		WindowYears:   c.Window().Years(),
		Weights:       c.Weights,
		Recency:       c.Recency,
		LogSDFallback: c.LogSDFallback,
	}
}

// splitBrokers parses a comma-separated broker list, ignoring empty entries.
func splitBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
