package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cli/internal/models"
)

// WeatherRefresher is implemented by the service layer: fetch fresh weather for a city
// and write it to the cache. Used by CacheWarmer to avoid a dependency on the service package.
type WeatherRefresher interface {
	Refresh(ctx context.Context, city string) (models.WeatherRecord, error)
}

// CacheWarmer prefetches weather for a list of cities so later lookups are cache hits.
type CacheWarmer struct {
	refresher WeatherRefresher
	logger    *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given refresher and logger.
func NewCacheWarmer(refresher WeatherRefresher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{refresher: refresher, logger: logger}
}

// Warm refreshes each city in order, one at a time. A failure does not stop the
// remaining cities; all failures are returned joined.
func (w *CacheWarmer) Warm(ctx context.Context, cities []string) error {
	start := time.Now()
	w.logger.Info("warming cache", zap.Int("locations", len(cities)))
	var errs []error
	for _, city := range cities {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := w.refresher.Refresh(ctx, city); err != nil {
			errs = append(errs, fmt.Errorf("warm %s: %w", city, err))
		}
	}
	w.logger.Info("cache warming complete",
		zap.Int("locations", len(cities)),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)))
	return errors.Join(errs...)
}
