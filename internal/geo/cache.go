package geo

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/karlseguin/ccache/v3"
)

const (
	cacheTTL      = 24 * time.Hour
	localCacheMax = 1000
)

// CachedGeocoder wraps a Geocoder with a two-level cache: an in-process
// LRU first, then an optional shared memcached tier. Cache failures fall
// through to the provider; they never fail a lookup.
type CachedGeocoder struct {
	next      Geocoder
	local     *ccache.Cache[*Result]
	memcached *memcache.Client
}

// NewCachedGeocoder wraps next with caching. memcachedAddr may be empty,
// in which case only the in-process cache is used.
func NewCachedGeocoder(next Geocoder, memcachedAddr string) *CachedGeocoder {
	c := &CachedGeocoder{
		next:  next,
		local: ccache.New(ccache.Configure[*Result]().MaxSize(localCacheMax)),
	}
	if memcachedAddr != "" {
		c.memcached = memcache.New(memcachedAddr)
	}
	return c
}

// cacheKey normalizes an address into a cache key.
func cacheKey(address string) string {
	return "geo:" + strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// Geocode resolves an address, consulting the local cache, then
// memcached, then the underlying provider.
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	key := cacheKey(address)

	if item := c.local.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	if c.memcached != nil {
		if item, err := c.memcached.Get(key); err == nil {
			var res Result
			if err := json.Unmarshal(item.Value, &res); err == nil {
				c.local.Set(key, &res, cacheTTL)
				return &res, nil
			}
		} else if err != memcache.ErrCacheMiss {
			slog.Warn("memcached get failed", "key", key, "error", err)
		}
	}

	res, err := c.next.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	c.local.Set(key, res, cacheTTL)
	if c.memcached != nil {
		data, err := json.Marshal(res)
		if err == nil {
			setErr := c.memcached.Set(&memcache.Item{
				Key:        key,
				Value:      data,
				Expiration: int32(cacheTTL / time.Second),
			})
			if setErr != nil {
				slog.Warn("memcached set failed", "key", key, "error", setErr)
			}
		}
	}

	return res, nil
}
