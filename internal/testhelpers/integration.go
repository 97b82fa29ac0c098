//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cli/internal/cache"
	"github.com/kjstillabower/weather-cli/internal/client"
	"github.com/kjstillabower/weather-cli/internal/service"
)

// IntegrationTestConfig holds configuration for tests against the live Open-Meteo and
// Nominatim services.
type IntegrationTestConfig struct {
	GeocodingURL  string
	ReverseURL    string
	ForecastURL   string
	CacheBackend  string // "file" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test unless WEATHER_LIVE_TESTS is set; the upstream APIs are public but rate limited.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("WEATHER_LIVE_TESTS") == "" {
		t.Skip("WEATHER_LIVE_TESTS not set, skipping live upstream test")
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		GeocodingURL:  envOr("WEATHER_GEOCODING_URL", "https://geocoding-api.open-meteo.com/v1/search"),
		ReverseURL:    envOr("WEATHER_REVERSE_URL", "https://nominatim.openstreetmap.org/reverse"),
		ForecastURL:   envOr("WEATHER_FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationService creates a fully wired service against the live upstreams.
// Returns weather service, cache instance, and cleanup function.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, cache.Cache, func()) {
	t.Helper()
	logger := zap.NewNop()

	resolver := client.NewGeocoder(client.GeocoderConfig{
		ForwardURL:        cfg.GeocodingURL,
		ReverseURL:        cfg.ReverseURL,
		Timeout:           10 * time.Second,
		Language:          "en",
		UserAgent:         "weather-cli-integration/1.0",
		ReverseRatePerSec: 1,
	})
	fetcher := client.NewForecastClient(cfg.ForecastURL, 10*time.Second, "weather-cli-integration/1.0")

	var cacheSvc cache.Cache
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2, 5*time.Minute, logger)
		if err := mc.Ping(); err == nil {
			cacheSvc = mc
			cleanup = func() { _ = mc.Close() }
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available (%v), using file cache", err)
		}
	}
	if cacheSvc == nil {
		cacheSvc = cache.NewFileCache(filepath.Join(t.TempDir(), "weather_cache.json"), 5*time.Minute, logger)
	}

	return service.NewWeatherService(resolver, fetcher, cacheSvc, nil, logger), cacheSvc, cleanup
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
