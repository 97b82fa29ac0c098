package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cli/internal/cache"
	"github.com/kjstillabower/weather-cli/internal/client"
	"github.com/kjstillabower/weather-cli/internal/models"
	"github.com/kjstillabower/weather-cli/internal/observability"
	"github.com/kjstillabower/weather-cli/internal/validation"
)

// HistoryRecorder persists fetched records. Implemented by history.Store.
type HistoryRecorder interface {
	Save(ctx context.Context, rec models.WeatherRecord) error
}

// Result is the outcome of one lookup.
type Result struct {
	// Key is the cache key the lookup was made under (city, or "lat,lon").
	Key    string
	Record models.WeatherRecord
	// Cached is true when Record was served from the cache without a fetch.
	Cached bool
}

// WeatherService orchestrates a lookup: validate input, check the cache, resolve and fetch
// on a miss, then write back to the cache and the optional history log.
type WeatherService struct {
	resolver client.LocationResolver
	fetcher  client.WeatherFetcher
	cache    cache.Cache
	history  HistoryRecorder // nil when history is disabled
	logger   *zap.Logger
}

// NewWeatherService creates a WeatherService. history may be nil.
func NewWeatherService(resolver client.LocationResolver, fetcher client.WeatherFetcher, c cache.Cache, history HistoryRecorder, logger *zap.Logger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		resolver: resolver,
		fetcher:  fetcher,
		cache:    c,
		history:  history,
		logger:   logger,
	}
}

// Lookup answers q from the cache when a fresh entry exists (unless q.Refresh), otherwise
// resolves and fetches. Invalid input fails with client.ErrInvalidInput before any cache or
// network access. Cache and history write failures are logged, never returned.
func (s *WeatherService) Lookup(ctx context.Context, q models.Query) (Result, error) {
	start := time.Now()

	q, err := validation.ValidateQuery(q)
	if err != nil {
		err = fmt.Errorf("%w: %w", client.ErrInvalidInput, err)
		s.recordError("input", err)
		return Result{}, err
	}
	key := q.CacheKey()

	if !q.Refresh {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		} else if ok {
			observability.LookupsTotal.WithLabelValues("cache", "success").Inc()
			s.logger.Debug("weather served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
			return Result{Key: key, Record: cached, Cached: true}, nil
		}
		s.logger.Debug("cache miss, fetching upstream", zap.String("key", key))
	} else {
		s.logger.Debug("refresh requested, skipping cache", zap.String("key", key))
	}

	loc, err := s.resolver.Resolve(ctx, q)
	if err != nil {
		s.recordError("upstream", err)
		return Result{}, err
	}
	record, err := s.fetcher.GetCurrentWeather(ctx, loc)
	if err != nil {
		s.recordError("upstream", err)
		return Result{}, err
	}
	observability.LookupsTotal.WithLabelValues("upstream", "success").Inc()

	s.persist(ctx, key, record)

	s.logger.Debug("weather served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return Result{Key: key, Record: record}, nil
}

// Refresh fetches fresh weather for city and writes it through to the cache. It implements
// cache.WeatherRefresher for the warmer.
func (s *WeatherService) Refresh(ctx context.Context, city string) (models.WeatherRecord, error) {
	res, err := s.Lookup(ctx, models.Query{City: city, Refresh: true})
	if err != nil {
		return models.WeatherRecord{}, err
	}
	return res.Record, nil
}

func (s *WeatherService) persist(ctx context.Context, key string, record models.WeatherRecord) {
	if err := s.cache.Set(ctx, key, record); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	if s.history == nil {
		return
	}
	if err := s.history.Save(ctx, record); err != nil {
		s.logger.Warn("history save failed", zap.String("city", record.City), zap.Error(err))
	}
}

func (s *WeatherService) recordError(source string, err error) {
	category := client.CategorizeError(err)
	observability.LookupsTotal.WithLabelValues(source, "error").Inc()
	observability.LookupErrorsTotal.WithLabelValues(string(category)).Inc()
	s.logger.Debug("lookup failed", zap.String("category", string(category)), zap.Error(err))
}
