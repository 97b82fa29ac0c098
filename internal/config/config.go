package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when --config is not given. A missing file there is not an error.
const DefaultPath = "config/weather.yaml"

// Config holds CLI configuration loaded from YAML and env.
type Config struct {
	CacheBackend          string `validate:"oneof=file memcached"`
	CacheFile             string `validate:"required"`
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	WarmLocations         []string

	GeocodingURL      string `validate:"required,url"`
	ReverseURL        string `validate:"required,url"`
	ForecastURL       string `validate:"required,url"`
	UpstreamTimeout   time.Duration
	Language          string `validate:"required"`
	UserAgent         string `validate:"required"`
	ReverseRatePerSec float64 `validate:"gte=0"`

	HistoryEnabled bool
	History        HistoryConfig

	LogLevel        string
	MetricsTextfile string
}

// HistoryConfig selects and addresses the optional history database.
type HistoryConfig struct {
	Driver   string `validate:"oneof=postgres sqlite"`
	DSN      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// ConnectionString returns the DSN for the configured driver. An explicit DSN wins.
func (h HistoryConfig) ConnectionString() string {
	if h.DSN != "" {
		return h.DSN
	}
	if h.Driver == "sqlite" {
		return "weather_history.db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", h.User, h.Password, h.Host, h.Port, h.Name)
}

type fileConfig struct {
	Cache struct {
		Backend   string `yaml:"backend"`
		File      string `yaml:"file"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		WarmLocations []string `yaml:"warm_locations"`
	} `yaml:"cache"`

	Upstream struct {
		GeocodingURL string  `yaml:"geocoding_url"`
		ReverseURL   string  `yaml:"reverse_url"`
		ForecastURL  string  `yaml:"forecast_url"`
		Timeout      string  `yaml:"timeout"`
		Language     string  `yaml:"language"`
		UserAgent    string  `yaml:"user_agent"`
		ReverseRPS   float64 `yaml:"reverse_rps"`
	} `yaml:"upstream"`

	History struct {
		Enabled  *bool  `yaml:"enabled"`
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Name     string `yaml:"name"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"history"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// Load reads configuration from path and applies env overrides.
// A missing file at DefaultPath yields defaults; a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	var fc fileConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err) && !explicit:
	case os.IsNotExist(err):
		return nil, fmt.Errorf("config file not found: %s", path)
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "file"
	}
	cfg.CacheFile = firstNonEmpty(os.Getenv("WEATHER_CACHE_FILE"), fc.Cache.File, "weather_cache.json")
	cfg.CacheTTL = parseDuration(firstNonEmpty(os.Getenv("WEATHER_CACHE_TTL"), fc.Cache.TTL), 30*time.Minute)
	cfg.MemcachedAddrs = firstNonEmpty(strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")), strings.TrimSpace(fc.Cache.Memcached.Addrs), "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.WarmLocations = fc.Cache.WarmLocations

	cfg.GeocodingURL = firstNonEmpty(fc.Upstream.GeocodingURL, "https://geocoding-api.open-meteo.com/v1/search")
	cfg.ReverseURL = firstNonEmpty(fc.Upstream.ReverseURL, "https://nominatim.openstreetmap.org/reverse")
	cfg.ForecastURL = firstNonEmpty(fc.Upstream.ForecastURL, "https://api.open-meteo.com/v1/forecast")
	cfg.UpstreamTimeout = parseDurationOrZero(fc.Upstream.Timeout, 10*time.Second)
	cfg.Language = firstNonEmpty(fc.Upstream.Language, "en")
	cfg.UserAgent = firstNonEmpty(fc.Upstream.UserAgent, "weather-cli/1.0")
	cfg.ReverseRatePerSec = fc.Upstream.ReverseRPS
	if cfg.ReverseRatePerSec == 0 {
		cfg.ReverseRatePerSec = 1
	}

	if fc.History.Enabled != nil {
		cfg.HistoryEnabled = *fc.History.Enabled
	}
	if v, ok := parseBoolEnv("HISTORY_ENABLED"); ok {
		cfg.HistoryEnabled = v
	}
	cfg.History = HistoryConfig{
		Driver:   strings.ToLower(firstNonEmpty(os.Getenv("DB_DRIVER"), fc.History.Driver, "postgres")),
		DSN:      firstNonEmpty(os.Getenv("DB_DSN"), fc.History.DSN),
		Host:     firstNonEmpty(os.Getenv("DB_HOST"), fc.History.Host, "localhost"),
		Port:     fc.History.Port,
		Name:     firstNonEmpty(os.Getenv("DB_NAME"), fc.History.Name, "weather_db"),
		User:     firstNonEmpty(os.Getenv("DB_USER"), fc.History.User, "weather_user"),
		Password: firstNonEmpty(os.Getenv("DB_PASSWORD"), fc.History.Password, "weather_pass"),
	}
	if p, err := strconv.Atoi(strings.TrimSpace(os.Getenv("DB_PORT"))); err == nil && p > 0 {
		cfg.History.Port = p
	}
	if cfg.History.Port <= 0 {
		cfg.History.Port = 5432
	}

	cfg.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), fc.Logging.Level, "warn")
	cfg.MetricsTextfile = firstNonEmpty(os.Getenv("METRICS_TEXTFILE"), fc.Metrics.Textfile)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseBoolEnv(key string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if err := structValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
