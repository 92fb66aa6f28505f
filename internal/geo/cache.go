package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"foodcart/internal/metrics"
	"foodcart/internal/model"
	"foodcart/internal/store"
)

// LocationStore is the persistent side of the cache.
type LocationStore interface {
	GetLocation(ctx context.Context, address string) (model.Location, error)
	UpsertLocation(ctx context.Context, loc model.Location) (model.Location, error)
}

// LocationCache maps exact address strings to coordinates, geocoding and
// persisting on a miss. A provider "no match" is stored as an empty entry and
// returned as ErrNoMatch on every later Resolve; only Refresh re-geocodes.
//
// Entries read during the lifetime of one cache are memoized in process, so a
// cache is meant to live for one batch of work.
type LocationCache struct {
	store    LocationStore
	geocoder Geocoder
	log      *slog.Logger
	now      func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]model.Location
}

func NewLocationCache(st LocationStore, g Geocoder, log *slog.Logger) *LocationCache {
	if log == nil {
		log = slog.Default()
	}
	return &LocationCache{
		store:    st,
		geocoder: g,
		log:      log.With("component", "location_cache"),
		now:      func() time.Time { return time.Now().UTC() },
		memo:     map[string]model.Location{},
	}
}

// Resolve returns the coordinate for address. Errors are ErrNoMatch for a
// cached or fresh provider miss, ErrTransport when the provider failed, or a
// store error.
func (c *LocationCache) Resolve(ctx context.Context, address string) (model.GeoPoint, error) {
	if strings.TrimSpace(address) == "" {
		return model.GeoPoint{}, ErrNoMatch
	}
	if loc, ok := c.memoized(address); ok {
		metrics.LocationLookups.WithLabelValues("hit").Inc()
		return point(loc)
	}
	// Concurrent misses for one address share a single geocoder call.
	v, err, _ := c.group.Do(address, func() (any, error) {
		loc, err := c.store.GetLocation(ctx, address)
		if err == nil {
			metrics.LocationLookups.WithLabelValues("hit").Inc()
			return loc, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load location: %w", err)
		}
		metrics.LocationLookups.WithLabelValues("miss").Inc()
		c.log.Debug("location cache miss", "address", address)
		return c.fetch(ctx, address)
	})
	if err != nil {
		return model.GeoPoint{}, err
	}
	loc := v.(model.Location)
	c.remember(loc)
	return point(loc)
}

// Refresh geocodes address again and overwrites whatever is cached,
// including a previously cached miss.
func (c *LocationCache) Refresh(ctx context.Context, address string) (model.Location, error) {
	if strings.TrimSpace(address) == "" {
		return model.Location{}, ErrNoMatch
	}
	metrics.LocationLookups.WithLabelValues("refresh").Inc()
	loc, err := c.fetch(ctx, address)
	if err != nil {
		return model.Location{}, err
	}
	c.remember(loc)
	return loc, nil
}

func (c *LocationCache) fetch(ctx context.Context, address string) (model.Location, error) {
	pt, ok, err := c.geocoder.Geocode(ctx, address)
	if err != nil {
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		c.log.Warn("geocoder failed", "address", address, "err", err)
		return model.Location{}, err
	}
	loc := model.Location{Address: address, ResolvedAt: c.now()}
	if ok {
		loc.Lat, loc.Lng = &pt.Lat, &pt.Lng
	}
	saved, err := c.store.UpsertLocation(ctx, loc)
	if err != nil {
		return model.Location{}, fmt.Errorf("save location: %w", err)
	}
	return saved, nil
}

func (c *LocationCache) memoized(address string) (model.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	loc, ok := c.memo[address]
	return loc, ok
}

func (c *LocationCache) remember(loc model.Location) {
	c.mu.Lock()
	c.memo[loc.Address] = loc
	c.mu.Unlock()
}

func point(loc model.Location) (model.GeoPoint, error) {
	pt, ok := loc.Point()
	if !ok {
		return model.GeoPoint{}, ErrNoMatch
	}
	return pt, nil
}
