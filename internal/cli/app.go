package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cli/internal/cache"
	"github.com/kjstillabower/weather-cli/internal/client"
	"github.com/kjstillabower/weather-cli/internal/config"
	"github.com/kjstillabower/weather-cli/internal/history"
	"github.com/kjstillabower/weather-cli/internal/observability"
	"github.com/kjstillabower/weather-cli/internal/service"
)

// ErrHistoryDisabled is returned by history and stats when history.enabled is off.
var ErrHistoryDisabled = errors.New("history is disabled (set history.enabled or HISTORY_ENABLED=true)")

// App holds everything one invocation needs, built from config.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	InvocationID string
	Cache        cache.Cache
	Service      *service.WeatherService
	// History is nil unless history is enabled and the database was reachable.
	History *history.Store

	closers []func() error
}

// historyMode says how a command depends on the history database.
type historyMode int

const (
	// historyOptional: open when enabled; failures are logged and the command continues without it.
	historyOptional historyMode = iota
	// historyRequired: the command fails when history is disabled or unreachable.
	historyRequired
)

// newApp loads config and wires the logger, cache backend, upstream clients, history store
// and weather service.
func newApp(ctx context.Context, configPath string, mode historyMode) (*App, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, &configError{err: err}
	}
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, &configError{err: fmt.Errorf("logger: %w", err)}
	}

	app := &App{
		Config:       cfg,
		InvocationID: uuid.NewString(),
	}
	app.Logger = logger.With(zap.String("invocation_id", app.InvocationID))

	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.CacheTTL, app.Logger)
		app.closers = append(app.closers, mc.Close)
		app.Cache = mc
		app.Logger.Debug("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		app.Cache = cache.NewFileCache(cfg.CacheFile, cfg.CacheTTL, app.Logger)
		app.Logger.Debug("cache backend: file", zap.String("path", cfg.CacheFile))
	}

	if err := app.openHistory(ctx, mode); err != nil {
		app.Close()
		return nil, err
	}

	resolver := client.NewGeocoder(client.GeocoderConfig{
		ForwardURL:        cfg.GeocodingURL,
		ReverseURL:        cfg.ReverseURL,
		Timeout:           cfg.UpstreamTimeout,
		Language:          cfg.Language,
		UserAgent:         cfg.UserAgent,
		ReverseRatePerSec: cfg.ReverseRatePerSec,
	})
	fetcher := client.NewForecastClient(cfg.ForecastURL, cfg.UpstreamTimeout, cfg.UserAgent)

	// a nil *history.Store must not become a non-nil interface
	var recorder service.HistoryRecorder
	if app.History != nil {
		recorder = app.History
	}
	app.Service = service.NewWeatherService(resolver, fetcher, app.Cache, recorder, app.Logger)
	return app, nil
}

func (a *App) openHistory(ctx context.Context, mode historyMode) error {
	if !a.Config.HistoryEnabled {
		if mode == historyRequired {
			return ErrHistoryDisabled
		}
		return nil
	}

	store, err := history.Open(ctx, a.Config.History, a.Logger)
	if err == nil {
		err = store.Init(ctx)
		if err != nil {
			_ = store.Close()
		}
	}
	if err != nil {
		if mode == historyRequired {
			return fmt.Errorf("history database: %w", err)
		}
		a.Logger.Warn("history database unavailable, continuing without history",
			zap.String("driver", a.Config.History.Driver), zap.Error(err))
		return nil
	}
	a.History = store
	a.closers = append(a.closers, store.Close)
	return nil
}

// Close releases the cache and history connections and writes the metrics textfile.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.Logger.Debug("close failed", zap.Error(err))
		}
	}
	if err := observability.FlushTelemetry(a.Config.MetricsTextfile, a.Logger); err != nil {
		a.Logger.Warn("metrics textfile write failed", zap.String("path", a.Config.MetricsTextfile), zap.Error(err))
	}
}

// withApp builds the App for a command, tags ctx with the invocation id, runs the command and
// tears the App down.
func withApp(opts *rootOptions, mode historyMode, run func(cmd *cobra.Command, args []string, app *App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context(), opts.configPath, mode)
		if err != nil {
			return err
		}
		defer app.Close()

		cmd.SetContext(client.WithCorrelationID(cmd.Context(), app.InvocationID))
		app.Logger.Debug("command start", zap.String("command", cmd.CommandPath()))
		return run(cmd, args, app)
	}
}
