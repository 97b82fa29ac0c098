package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cli/internal/models"
	"github.com/kjstillabower/weather-cli/internal/observability"
)

const (
	keyPrefix = "weather:"
	maxKeyLen = 250
)

// MemcachedCache implements Cache using memcached. Freshness is enforced by the
// item expiration, so Get never sees an entry older than the TTL.
type MemcachedCache struct {
	client *memcache.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int, ttl time.Duration, logger *zap.Logger) *MemcachedCache {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemcachedCache{client: client, ttl: ttl, logger: logger}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key prefixes k for memcached. Keys memcached would reject (spaces, control characters,
// longer than 250 bytes) are replaced by the hex SHA-1 of k so distinct keys stay distinct.
func (c *MemcachedCache) key(k string) string {
	if len(keyPrefix)+len(k) <= maxKeyLen && !strings.ContainsFunc(k, illegalKeyRune) {
		return keyPrefix + k
	}
	sum := sha1.Sum([]byte(k))
	return keyPrefix + "sha1:" + hex.EncodeToString(sum[:])
}

func illegalKeyRune(r rune) bool {
	return r <= ' ' || r == 0x7f
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on backend error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.WeatherRecord, bool, error) {
	if ctx.Err() != nil {
		return models.WeatherRecord{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			observability.CacheMissesTotal.WithLabelValues("memcached", "missing_key").Inc()
			return models.WeatherRecord{}, false, nil
		}
		observability.CacheMissesTotal.WithLabelValues("memcached", "error").Inc()
		return models.WeatherRecord{}, false, err
	}
	var data models.WeatherRecord
	if err := json.Unmarshal(item.Value, &data); err != nil {
		c.logger.Warn("memcached entry corrupt", zap.String("key", key), zap.Error(err))
		observability.CacheMissesTotal.WithLabelValues("memcached", "corrupt").Inc()
		return models.WeatherRecord{}, false, nil
	}
	observability.CacheHitsTotal.WithLabelValues("memcached").Inc()
	return data, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.WeatherRecord) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	err = c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expirationSeconds(c.ttl),
	})
	if err != nil {
		observability.CacheWriteErrorsTotal.WithLabelValues("memcached").Inc()
	}
	return err
}

func expirationSeconds(ttl time.Duration) int32 {
	expSec := int32(ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 1800
	}
	return expSec
}

// Ping checks if memcached is reachable.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
