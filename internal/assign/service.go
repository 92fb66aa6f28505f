package assign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"foodcart/internal/geo"
	"foodcart/internal/metrics"
	"foodcart/internal/model"
)

// Catalog is the slice of the store the service reads and writes.
type Catalog interface {
	geo.LocationStore
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)
	ListAvailableMenuItems(ctx context.Context) ([]model.MenuItem, error)
	GetOrderLines(ctx context.Context, orderID int64) ([]model.OrderLine, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error
}

// Notifier receives order status transitions made by the service.
type Notifier interface {
	OrderEvent(ctx context.Context, evt model.OrderEvent)
}

type Service struct {
	catalog  Catalog
	geocoder geo.Geocoder
	notifier Notifier
	log      *slog.Logger
}

// NewService wires the service. notifier may be nil.
func NewService(c Catalog, g geo.Geocoder, n Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{catalog: c, geocoder: g, notifier: n, log: log.With("component", "assign")}
}

// Batch is one fixed snapshot of menu availability and restaurant
// coordinates. Every order assigned through the same Batch sees the same
// snapshot; a Batch is not meant to outlive the request that built it.
type Batch struct {
	ID          string
	svc         *Service
	cache       *geo.LocationCache
	index       Index
	restaurants map[int64]model.Restaurant
	points      map[int64]model.GeoPoint
}

// OrderAssignment pairs an order with its result. Err is set when the order
// could not be processed; other orders in the batch are unaffected.
type OrderAssignment struct {
	Order  model.Order
	Result Result
	Err    error
}

// NewBatch loads the availability index, then resolves every restaurant
// address once. Restaurants whose address cannot be resolved stay in the
// snapshot without a coordinate and are left out of rankings.
func (s *Service) NewBatch(ctx context.Context) (*Batch, error) {
	items, err := s.catalog.ListAvailableMenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	restaurants, err := s.catalog.ListRestaurants(ctx)
	if err != nil {
		return nil, fmt.Errorf("load restaurants: %w", err)
	}
	b := &Batch{
		ID:          uuid.NewString(),
		svc:         s,
		cache:       s.Cache(),
		index:       BuildIndex(items),
		restaurants: make(map[int64]model.Restaurant, len(restaurants)),
		points:      make(map[int64]model.GeoPoint, len(restaurants)),
	}
	start := time.Now()
	for _, r := range restaurants {
		b.restaurants[r.ID] = r
		pt, err := b.cache.Resolve(ctx, r.Address)
		switch {
		case err == nil:
			b.points[r.ID] = pt
		case errors.Is(err, geo.ErrNoMatch):
			s.log.Info("restaurant address not found", "batch", b.ID, "restaurant", r.ID, "address", r.Address)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			s.log.Warn("restaurant address unresolved", "batch", b.ID, "restaurant", r.ID, "err", err)
		}
	}
	s.log.Debug("batch ready", "batch", b.ID, "restaurants", len(restaurants), "resolved", len(b.points), "products", len(b.index), "took", time.Since(start))
	return b, nil
}

// Cache returns a fresh LocationCache over the service's store and geocoder.
func (s *Service) Cache() *geo.LocationCache {
	return geo.NewLocationCache(s.catalog, s.geocoder, s.log)
}

// Assign computes the assignment view of order against the batch snapshot.
//
// An order that already has a restaurant is reported as assigned and, if it
// is still at the created/accepted stage, advanced to preparing; order.Status
// is updated in place. Otherwise the delivery address is geocoded, capable
// restaurants are matched and then ranked by distance.
func (b *Batch) Assign(ctx context.Context, order *model.Order) (Result, error) {
	res, err := b.assign(ctx, order)
	if err == nil {
		metrics.Assignments.WithLabelValues(string(res.Kind)).Inc()
	}
	return res, err
}

func (b *Batch) assign(ctx context.Context, order *model.Order) (Result, error) {
	if order.Assigned() {
		if _, err := b.svc.MarkPreparingIfAssigned(ctx, order); err != nil {
			return Result{}, err
		}
		r, ok := b.restaurants[*order.RestaurantID]
		if !ok {
			r = model.Restaurant{ID: *order.RestaurantID}
		}
		return Assigned(r), nil
	}

	origin, err := b.cache.Resolve(ctx, order.Address)
	if errors.Is(err, geo.ErrNoMatch) {
		return GeocodeFailed(), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("order %d: resolve address: %w", order.ID, err)
	}

	lines, err := b.svc.catalog.GetOrderLines(ctx, order.ID)
	if err != nil {
		return Result{}, fmt.Errorf("order %d: load lines: %w", order.ID, err)
	}
	capable, err := Match(DistinctProducts(lines), b.index)
	if err != nil {
		return Result{}, fmt.Errorf("order %d: %w", order.ID, err)
	}
	if len(capable) == 0 {
		return NoCapableRestaurant(), nil
	}

	candidates := make([]Candidate, 0, len(capable))
	for _, rid := range capable {
		r, ok := b.restaurants[rid]
		if !ok {
			// stocked by a restaurant that was not in the listing
			continue
		}
		pt, resolved := b.points[rid]
		candidates = append(candidates, Candidate{Restaurant: r, Point: pt, Resolved: resolved})
	}
	return RankedList(Rank(origin, candidates)), nil
}

// AssignAll assigns each order in turn. A failure on one order is recorded
// on its entry and processing continues with the next.
func (b *Batch) AssignAll(ctx context.Context, orders []model.Order) []OrderAssignment {
	out := make([]OrderAssignment, 0, len(orders))
	for i := range orders {
		o := orders[i]
		res, err := b.Assign(ctx, &o)
		if err != nil {
			b.svc.log.Warn("order assignment failed", "batch", b.ID, "order", o.ID, "err", err)
		}
		out = append(out, OrderAssignment{Order: o, Result: res, Err: err})
	}
	return out
}

// MarkPreparingIfAssigned advances an order that already has a restaurant
// from created/accepted to preparing. It reports whether the status changed.
func (s *Service) MarkPreparingIfAssigned(ctx context.Context, order *model.Order) (bool, error) {
	if !order.Assigned() || !order.Status.Initial() {
		return false, nil
	}
	from := order.Status
	if err := s.catalog.UpdateOrderStatus(ctx, order.ID, model.StatusPreparing); err != nil {
		return false, fmt.Errorf("order %d: mark preparing: %w", order.ID, err)
	}
	order.Status = model.StatusPreparing
	s.log.Info("order status changed", "order", order.ID, "from", from, "to", order.Status)
	if s.notifier != nil {
		s.notifier.OrderEvent(ctx, model.OrderEvent{
			ID:      uuid.NewString(),
			Type:    "order.status.changed",
			OrderID: order.ID,
			From:    from,
			To:      order.Status,
			TS:      time.Now().UTC().Format(time.RFC3339),
		})
	}
	return true, nil
}
