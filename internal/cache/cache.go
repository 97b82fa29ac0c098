package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cli/internal/models"
	"github.com/kjstillabower/weather-cli/internal/observability"
)

// Cache defines the interface for weather record caching implementations.
// Get returns cached data if present and still fresh; Set stores data stamped with the current time.
// A backend trouble on Get is reported as an error alongside ok=false; callers treat it as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherRecord, bool, error)
	Set(ctx context.Context, key string, value models.WeatherRecord) error
}

// legacyTimestampLayout is the naive local ISO-8601 form older cache files were written with.
const legacyTimestampLayout = "2006-01-02T15:04:05.999999"

// FileCache implements Cache as a single JSON document mapping key -> {timestamp, weather}.
// The file is rewritten whole on every Set; there is no cross-process locking, last writer wins.
type FileCache struct {
	path   string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// fileEntry is the on-disk shape of one cache record.
type fileEntry struct {
	Timestamp string               `json:"timestamp"`
	Weather   models.WeatherRecord `json:"weather"`
}

// NewFileCache creates a FileCache at path. Entries older than ttl are treated as misses.
func NewFileCache(path string, ttl time.Duration, logger *zap.Logger) *FileCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileCache{
		path:   path,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Get returns the record for key if the entry exists and now - timestamp <= ttl.
// Absent file, missing key, expired entry and unparsable contents are all plain misses.
func (c *FileCache) Get(ctx context.Context, key string) (models.WeatherRecord, bool, error) {
	mapping, reason := c.load()
	if mapping == nil {
		c.miss(key, reason)
		return models.WeatherRecord{}, false, nil
	}

	raw, ok := mapping[key]
	if !ok {
		c.miss(key, "missing_key")
		return models.WeatherRecord{}, false, nil
	}

	var entry fileEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("cache entry unreadable", zap.String("path", c.path), zap.String("key", key), zap.Error(err))
		c.miss(key, "corrupt")
		return models.WeatherRecord{}, false, nil
	}
	ts, err := parseTimestamp(entry.Timestamp)
	if err != nil {
		c.logger.Warn("cache entry timestamp unreadable", zap.String("key", key), zap.String("timestamp", entry.Timestamp))
		c.miss(key, "corrupt")
		return models.WeatherRecord{}, false, nil
	}
	if age := c.now().Sub(ts); age > c.ttl {
		c.logger.Debug("cache entry expired", zap.String("key", key), zap.Duration("age", age))
		c.miss(key, "expired")
		return models.WeatherRecord{}, false, nil
	}

	observability.CacheHitsTotal.WithLabelValues("file").Inc()
	return entry.Weather, true, nil
}

// Set stores value under key with the current time, preserving all other keys.
// The file is replaced via rename so readers never see a partial write.
func (c *FileCache) Set(ctx context.Context, key string, value models.WeatherRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mapping, _ := c.load()
	if mapping == nil {
		mapping = make(map[string]json.RawMessage)
	}

	raw, err := json.Marshal(fileEntry{
		Timestamp: c.now().Format(time.RFC3339Nano),
		Weather:   value,
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	mapping[key] = raw

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(mapping); err != nil {
		return fmt.Errorf("encode cache file: %w", err)
	}
	if err := writeFileAtomic(c.path, buf.Bytes()); err != nil {
		observability.CacheWriteErrorsTotal.WithLabelValues("file").Inc()
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// load reads the mapping. On failure it returns nil and the miss reason.
func (c *FileCache) load() (map[string]json.RawMessage, string) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("cache file absent", zap.String("path", c.path))
			return nil, "absent"
		}
		c.logger.Warn("cache file unreadable", zap.String("path", c.path), zap.Error(err))
		return nil, "error"
	}
	var mapping map[string]json.RawMessage
	if err := json.Unmarshal(data, &mapping); err != nil {
		c.logger.Warn("cache file corrupt", zap.String("path", c.path), zap.Error(err))
		return nil, "corrupt"
	}
	if mapping == nil {
		// "null" parses without error
		return nil, "corrupt"
	}
	return mapping, ""
}

func (c *FileCache) miss(key, reason string) {
	observability.CacheMissesTotal.WithLabelValues("file", reason).Inc()
	c.logger.Debug("cache miss", zap.String("key", key), zap.String("reason", reason))
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	return time.ParseInLocation(legacyTimestampLayout, s, time.Local)
}

// writeFileAtomic writes data to a temp file next to path, then renames it into place.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
