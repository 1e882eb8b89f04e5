package geocode

import (
	"context"
	"math"
	"strconv"

	"github.com/benmeehan/location-reporter/pkg/location"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// CacheRecorder receives cache hit/miss notifications.
type CacheRecorder interface {
	ObserveGeocodeCache(hit bool)
}

// CachedResolver wraps a Resolver with an in-memory cache keyed by rounded coordinates.
type CachedResolver struct {
	inner      Resolver
	cache      cmap.ConcurrentMap[string, []AddressCandidate]
	maxEntries int
	scale      float64
	recorder   CacheRecorder
}

// NewCachedResolver creates a cache decorator. precision is the number of decimal
// places kept when building cache keys (5 is roughly one meter). recorder may be nil.
func NewCachedResolver(inner Resolver, maxEntries, precision int, recorder CacheRecorder) *CachedResolver {
	return &CachedResolver{
		inner:      inner,
		cache:      cmap.New[[]AddressCandidate](),
		maxEntries: maxEntries,
		scale:      math.Pow10(precision),
		recorder:   recorder,
	}
}

// Resolve returns cached candidates when available, otherwise delegates to the inner resolver.
func (c *CachedResolver) Resolve(ctx context.Context, coordinate location.Coordinate) ([]AddressCandidate, error) {
	key := c.key(coordinate)
	if candidates, ok := c.cache.Get(key); ok {
		c.observe(true)
		return candidates, nil
	}
	c.observe(false)

	candidates, err := c.inner.Resolve(ctx, coordinate)
	if err != nil {
		return nil, err
	}
	// Empty results are not cached so a later lookup can succeed.
	if len(candidates) > 0 {
		if c.cache.Count() >= c.maxEntries {
			c.cache.Clear()
		}
		c.cache.Set(key, candidates)
	}
	return candidates, nil
}

// Len returns the number of cached coordinates.
func (c *CachedResolver) Len() int {
	return c.cache.Count()
}

func (c *CachedResolver) key(coordinate location.Coordinate) string {
	lat := math.Round(coordinate.Latitude * c.scale)
	lon := math.Round(coordinate.Longitude * c.scale)
	return strconv.FormatFloat(lat, 'f', 0, 64) + "," + strconv.FormatFloat(lon, 'f', 0, 64)
}

func (c *CachedResolver) observe(hit bool) {
	if c.recorder != nil {
		c.recorder.ObserveGeocodeCache(hit)
	}
}
