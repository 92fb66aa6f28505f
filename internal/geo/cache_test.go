package geo

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"foodcart/internal/model"
	"foodcart/internal/store"
)

// fakeGeocoder answers from a fixed table and counts calls per address.
type fakeGeocoder struct {
	mu     sync.Mutex
	points map[string]model.GeoPoint
	errs   map[string]error
	calls  map[string]int
	delay  time.Duration
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{points: map[string]model.GeoPoint{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address string) (model.GeoPoint, bool, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[address]++
	if err := f.errs[address]; err != nil {
		return model.GeoPoint{}, false, err
	}
	pt, ok := f.points[address]
	return pt, ok, nil
}

func (f *fakeGeocoder) count(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[address]
}

func TestResolveCachesHit(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGeocoder()
	g.points["a"] = model.GeoPoint{Lat: 55.75, Lng: 37.61}

	c := NewLocationCache(st, g, nil)
	first, err := c.Resolve(context.Background(), "a")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// a fresh cache over the same store must not call the geocoder either
	second, err := NewLocationCache(st, g, nil).Resolve(context.Background(), "a")
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if math.Abs(first.Lat-second.Lat) > 1e-12 || math.Abs(first.Lng-second.Lng) > 1e-12 {
		t.Fatalf("round trip changed coordinate: %+v vs %+v", first, second)
	}
	if n := g.count("a"); n != 1 {
		t.Fatalf("geocoder called %d times, want 1", n)
	}
	loc, err := st.GetLocation(context.Background(), "a")
	if err != nil || loc.ResolvedAt.IsZero() {
		t.Fatalf("location not persisted: %+v %v", loc, err)
	}
}

func TestResolveCachesNoMatch(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGeocoder()
	c := NewLocationCache(st, g, nil)

	for i := 0; i < 3; i++ {
		if _, err := c.Resolve(context.Background(), "nowhere"); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("want ErrNoMatch, got %v", err)
		}
	}
	if _, err := NewLocationCache(st, g, nil).Resolve(context.Background(), "nowhere"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("want ErrNoMatch from store, got %v", err)
	}
	if n := g.count("nowhere"); n != 1 {
		t.Fatalf("geocoder called %d times, want 1", n)
	}
	loc, err := st.GetLocation(context.Background(), "nowhere")
	if err != nil {
		t.Fatalf("miss should be persisted: %v", err)
	}
	if _, ok := loc.Point(); ok {
		t.Fatalf("persisted miss should have no coordinate: %+v", loc)
	}
}

func TestResolveDoesNotCacheTransportFailure(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGeocoder()
	g.errs["flaky"] = errors.New("connection reset")
	c := NewLocationCache(st, g, nil)

	if _, err := c.Resolve(context.Background(), "flaky"); !errors.Is(err, ErrTransport) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
	if _, err := st.GetLocation(context.Background(), "flaky"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("transport failure must not be cached, got %v", err)
	}

	delete(g.errs, "flaky")
	g.points["flaky"] = model.GeoPoint{Lat: 1, Lng: 2}
	pt, err := c.Resolve(context.Background(), "flaky")
	if err != nil || pt.Lat != 1 {
		t.Fatalf("retry should succeed: %+v %v", pt, err)
	}
}

func TestResolveBlankAddress(t *testing.T) {
	g := newFakeGeocoder()
	c := NewLocationCache(store.NewMemory(), g, nil)
	if _, err := c.Resolve(context.Background(), "  "); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("want ErrNoMatch, got %v", err)
	}
	if n := g.count("  "); n != 0 {
		t.Fatalf("blank address should not reach the geocoder")
	}
}

func TestRefreshOverridesCachedMiss(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGeocoder()
	c := NewLocationCache(st, g, nil)
	if _, err := c.Resolve(context.Background(), "typo st"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("want ErrNoMatch, got %v", err)
	}

	g.points["typo st"] = model.GeoPoint{Lat: 10, Lng: 20}
	loc, err := c.Refresh(context.Background(), "typo st")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := loc.Point(); !ok {
		t.Fatalf("refresh should resolve: %+v", loc)
	}
	pt, err := c.Resolve(context.Background(), "typo st")
	if err != nil || pt.Lat != 10 {
		t.Fatalf("Resolve after refresh: %+v %v", pt, err)
	}
	if n := g.count("typo st"); n != 2 {
		t.Fatalf("geocoder called %d times, want 2", n)
	}
}

func TestResolveConcurrentMissesShareOneCall(t *testing.T) {
	st := store.NewMemory()
	g := newFakeGeocoder()
	g.points["busy"] = model.GeoPoint{Lat: 3, Lng: 4}
	g.delay = 50 * time.Millisecond
	c := NewLocationCache(st, g, nil)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Resolve(context.Background(), "busy"); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	if failures.Load() != 0 {
		t.Fatalf("%d concurrent resolves failed", failures.Load())
	}
	if n := g.count("busy"); n != 1 {
		t.Fatalf("geocoder called %d times, want 1", n)
	}
}
