package assign

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"foodcart/internal/geo"
	"foodcart/internal/model"
	"foodcart/internal/store"
)

type stubGeocoder struct {
	mu     sync.Mutex
	points map[string]model.GeoPoint
	fail   map[string]bool
	calls  map[string]int
}

func newStubGeocoder() *stubGeocoder {
	return &stubGeocoder{points: map[string]model.GeoPoint{}, fail: map[string]bool{}, calls: map[string]int{}}
}

func (g *stubGeocoder) Geocode(ctx context.Context, address string) (model.GeoPoint, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[address]++
	if g.fail[address] {
		return model.GeoPoint{}, false, errors.New("dial tcp: timeout")
	}
	pt, ok := g.points[address]
	return pt, ok, nil
}

type recordingNotifier struct {
	events []model.OrderEvent
}

func (n *recordingNotifier) OrderEvent(ctx context.Context, evt model.OrderEvent) {
	n.events = append(n.events, evt)
}

type fixture struct {
	st       *store.Memory
	geocoder *stubGeocoder
	notifier *recordingNotifier
	svc      *Service
	a, b     model.Restaurant
	burger   model.Product
	shake    model.Product
}

// newFixture seeds two restaurants: A at (55.75, 37.61) and B at
// (55.70, 37.50). Both stock burgers; only B stocks shakes.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{st: store.NewMemory(), geocoder: newStubGeocoder(), notifier: &recordingNotifier{}}
	f.a, _ = f.st.CreateRestaurant(ctx, model.Restaurant{Name: "A", Address: "addr A"})
	f.b, _ = f.st.CreateRestaurant(ctx, model.Restaurant{Name: "B", Address: "addr B"})
	f.burger, _ = f.st.CreateProduct(ctx, model.Product{Name: "burger", Price: decimal.NewFromInt(300)})
	f.shake, _ = f.st.CreateProduct(ctx, model.Product{Name: "shake", Price: decimal.NewFromInt(150)})
	for _, it := range []model.MenuItem{
		{RestaurantID: f.a.ID, ProductID: f.burger.ID, Available: true},
		{RestaurantID: f.b.ID, ProductID: f.burger.ID, Available: true},
		{RestaurantID: f.b.ID, ProductID: f.shake.ID, Available: true},
		{RestaurantID: f.a.ID, ProductID: f.shake.ID, Available: false},
	} {
		if err := f.st.SetMenuItem(ctx, it); err != nil {
			t.Fatalf("SetMenuItem: %v", err)
		}
	}
	f.geocoder.points["addr A"] = model.GeoPoint{Lat: 55.75, Lng: 37.61}
	f.geocoder.points["addr B"] = model.GeoPoint{Lat: 55.70, Lng: 37.50}
	f.geocoder.points["client"] = model.GeoPoint{Lat: 55.75, Lng: 37.62}
	f.svc = NewService(f.st, f.geocoder, f.notifier, nil)
	return f
}

func (f *fixture) order(t *testing.T, address string, products ...int64) model.Order {
	t.Helper()
	in := model.OrderIn{FirstName: "Ivan", Phone: "+79990000000", Address: address}
	for _, p := range products {
		in.Products = append(in.Products, model.LineIn{ProductID: p, Quantity: 1})
	}
	o, err := f.st.CreateOrder(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return o
}

func (f *fixture) batch(t *testing.T) *Batch {
	t.Helper()
	b, err := f.svc.NewBatch(context.Background())
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	return b
}

func TestAssignRanksByDistance(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "client", f.burger.ID)
	res, err := f.batch(t).Assign(context.Background(), &o)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Kind != KindRanked || len(res.Ranked) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Ranked[0].Restaurant.ID != f.a.ID || res.Ranked[1].Restaurant.ID != f.b.ID {
		t.Fatalf("want A before B, got %+v", res.Ranked)
	}
}

func TestAssignOnlyCapableRestaurants(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "client", f.burger.ID, f.shake.ID)
	res, err := f.batch(t).Assign(context.Background(), &o)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Kind != KindRanked || len(res.Ranked) != 1 || res.Ranked[0].Restaurant.ID != f.b.ID {
		t.Fatalf("only B stocks both products: %+v", res)
	}
}

func TestAssignGeocodeFailedIsCached(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "unknown street", f.burger.ID)
	res, err := f.batch(t).Assign(context.Background(), &o)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Kind != KindGeocodeFailed || res.Message() != "could not determine location" {
		t.Fatalf("want geocode failed, got %+v", res)
	}
	res, _ = f.batch(t).Assign(context.Background(), &o)
	if res.Kind != KindGeocodeFailed {
		t.Fatalf("want geocode failed again, got %+v", res)
	}
	if n := f.geocoder.calls["unknown street"]; n != 1 {
		t.Fatalf("geocoder called %d times, want 1", n)
	}
}

func TestAssignStickyMarksPreparing(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "client", f.burger.ID)
	if err := f.st.AssignRestaurant(context.Background(), o.ID, f.b.ID); err != nil {
		t.Fatalf("AssignRestaurant: %v", err)
	}
	o, _ = f.st.GetOrder(context.Background(), o.ID)

	res, err := f.batch(t).Assign(context.Background(), &o)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Kind != KindAssigned || res.Restaurant == nil || res.Restaurant.ID != f.b.ID {
		t.Fatalf("want assigned to B, got %+v", res)
	}
	if o.Status != model.StatusPreparing {
		t.Fatalf("in-memory status not advanced: %s", o.Status)
	}
	stored, _ := f.st.GetOrder(context.Background(), o.ID)
	if stored.Status != model.StatusPreparing {
		t.Fatalf("stored status not advanced: %s", stored.Status)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0].To != model.StatusPreparing || f.notifier.events[0].From != model.StatusCreated {
		t.Fatalf("unexpected events: %+v", f.notifier.events)
	}
	if n := f.geocoder.calls["client"]; n != 0 {
		t.Fatalf("sticky order must not be geocoded, got %d calls", n)
	}
}

func TestMarkPreparingLeavesLaterStagesAlone(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "client", f.burger.ID)
	_ = f.st.AssignRestaurant(context.Background(), o.ID, f.a.ID)
	_ = f.st.UpdateOrderStatus(context.Background(), o.ID, model.StatusDelivery)
	o, _ = f.st.GetOrder(context.Background(), o.ID)

	changed, err := f.svc.MarkPreparingIfAssigned(context.Background(), &o)
	if err != nil || changed {
		t.Fatalf("want no change, got changed=%v err=%v", changed, err)
	}
	if o.Status != model.StatusDelivery || len(f.notifier.events) != 0 {
		t.Fatalf("status should stay delivery: %s", o.Status)
	}
}

func TestAssignNoCapableRestaurant(t *testing.T) {
	f := newFixture(t)
	ghost, _ := f.st.CreateProduct(context.Background(), model.Product{Name: "ghost"})
	o := f.order(t, "client", ghost.ID)
	res, err := f.batch(t).Assign(context.Background(), &o)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Kind != KindNoCapableRestaurant || res.Message() != "no restaurant available" {
		t.Fatalf("want no capable restaurant, got %+v", res)
	}
}

func TestAssignExcludesUnresolvedRestaurant(t *testing.T) {
	f := newFixture(t)
	delete(f.geocoder.points, "addr A")
	o := f.order(t, "client", f.burger.ID)
	res, err := f.batch(t).Assign(context.Background(), &o)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if res.Kind != KindRanked || len(res.Ranked) != 1 || res.Ranked[0].Restaurant.ID != f.b.ID {
		t.Fatalf("A has no location and must be excluded: %+v", res)
	}
}

func TestAssignAllIsolatesTransportFailure(t *testing.T) {
	f := newFixture(t)
	f.geocoder.fail["flaky"] = true
	bad := f.order(t, "flaky", f.burger.ID)
	good := f.order(t, "client", f.burger.ID)

	out := f.batch(t).AssignAll(context.Background(), []model.Order{bad, good})
	if len(out) != 2 {
		t.Fatalf("want 2 entries, got %d", len(out))
	}
	if !errors.Is(out[0].Err, geo.ErrTransport) {
		t.Fatalf("want transport error for first order, got %v", out[0].Err)
	}
	if out[1].Err != nil || out[1].Result.Kind != KindRanked {
		t.Fatalf("second order should be ranked: %+v", out[1])
	}
	if _, err := f.st.GetLocation(context.Background(), "flaky"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("transport failure must not be cached: %v", err)
	}
}

func TestBatchResolvesRestaurantsOnce(t *testing.T) {
	f := newFixture(t)
	b := f.batch(t)
	for i := 0; i < 3; i++ {
		o := f.order(t, "client", f.burger.ID)
		if _, err := b.Assign(context.Background(), &o); err != nil {
			t.Fatalf("Assign: %v", err)
		}
	}
	if n := f.geocoder.calls["addr A"]; n != 1 {
		t.Fatalf("restaurant geocoded %d times, want 1", n)
	}
	if n := f.geocoder.calls["client"]; n != 1 {
		t.Fatalf("client address geocoded %d times, want 1", n)
	}
}
