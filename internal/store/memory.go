package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"foodcart/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu          sync.Mutex
	seq         int64
	restaurants map[int64]model.Restaurant
	products    map[int64]model.Product
	menu        map[menuKey]bool            // (restaurant, product) -> available
	orders      map[int64]model.Order       // id -> order
	lines       map[int64][]model.OrderLine // order id -> lines
	locations   map[string]model.Location   // address -> location
}

type menuKey struct {
	RestaurantID int64
	ProductID    int64
}

func NewMemory() *Memory {
	return &Memory{
		restaurants: map[int64]model.Restaurant{},
		products:    map[int64]model.Product{},
		menu:        map[menuKey]bool{},
		orders:      map[int64]model.Order{},
		lines:       map[int64][]model.OrderLine{},
		locations:   map[string]model.Location{},
	}
}

func (m *Memory) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *Memory) CreateRestaurant(ctx context.Context, r model.Restaurant) (model.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID()
	m.restaurants[r.ID] = r
	return r, nil
}

func (m *Memory) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Restaurant, 0, len(m.restaurants))
	for _, r := range m.restaurants {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID()
	m.products[p.ID] = p
	return p, nil
}

func (m *Memory) ListProducts(ctx context.Context) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SetMenuItem(ctx context.Context, item model.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.restaurants[item.RestaurantID]; !ok {
		return fmt.Errorf("restaurant %d: %w", item.RestaurantID, ErrNotFound)
	}
	if _, ok := m.products[item.ProductID]; !ok {
		return fmt.Errorf("product %d: %w", item.ProductID, ErrNotFound)
	}
	m.menu[menuKey{item.RestaurantID, item.ProductID}] = item.Available
	return nil
}

func (m *Memory) ListMenuItems(ctx context.Context) ([]model.MenuItem, error) {
	return m.menuItems(false), nil
}

func (m *Memory) ListAvailableMenuItems(ctx context.Context) ([]model.MenuItem, error) {
	return m.menuItems(true), nil
}

func (m *Memory) menuItems(onlyAvailable bool) []model.MenuItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.MenuItem{}
	for k, avail := range m.menu {
		if onlyAvailable && !avail {
			continue
		}
		out = append(out, model.MenuItem{RestaurantID: k.RestaurantID, ProductID: k.ProductID, Available: avail})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].RestaurantID < out[j].RestaurantID
	})
	return out
}

func (m *Memory) CreateOrder(ctx context.Context, in model.OrderIn) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range in.Products {
		if _, ok := m.products[l.ProductID]; !ok {
			return model.Order{}, fmt.Errorf("product %d: %w", l.ProductID, ErrNotFound)
		}
	}
	o := model.Order{
		ID:        m.nextID(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Address:   in.Address,
		Status:    model.StatusCreated,
		Payment:   in.Payment,
		Comment:   in.Comment,
		CreatedAt: time.Now().UTC(),
	}
	lines := make([]model.OrderLine, 0, len(in.Products))
	for _, l := range in.Products {
		lines = append(lines, model.OrderLine{OrderID: o.ID, ProductID: l.ProductID, Quantity: l.Quantity, Price: m.products[l.ProductID].Price})
	}
	m.orders[o.ID] = o
	m.lines[o.ID] = lines
	o.Total = orderTotal(lines)
	return o, nil
}

func (m *Memory) GetOrder(ctx context.Context, id int64) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	o.Total = orderTotal(m.lines[id])
	return o, nil
}

func (m *Memory) ListActiveOrders(ctx context.Context) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Order{}
	for id, o := range m.orders {
		if o.Status == model.StatusDone {
			continue
		}
		o.Total = orderTotal(m.lines[id])
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Status.Rank(), out[j].Status.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetOrderLines(ctx context.Context, orderID int64) ([]model.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[orderID]; !ok {
		return nil, ErrNotFound
	}
	return append([]model.OrderLine(nil), m.lines[orderID]...), nil
}

func (m *Memory) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	now := time.Now().UTC()
	switch {
	case status == model.StatusAccepted && o.CalledAt == nil:
		o.CalledAt = &now
	case status == model.StatusDone && o.DeliveredAt == nil:
		o.DeliveredAt = &now
	}
	m.orders[id] = o
	return nil
}

func (m *Memory) AssignRestaurant(ctx context.Context, orderID, restaurantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.restaurants[restaurantID]; !ok {
		return fmt.Errorf("restaurant %d: %w", restaurantID, ErrNotFound)
	}
	rid := restaurantID
	o.RestaurantID = &rid
	m.orders[orderID] = o
	return nil
}

func (m *Memory) GetLocation(ctx context.Context, address string) (model.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locations[address]
	if !ok {
		return model.Location{}, ErrNotFound
	}
	return l, nil
}

func (m *Memory) UpsertLocation(ctx context.Context, loc model.Location) (model.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loc.ResolvedAt.IsZero() {
		loc.ResolvedAt = time.Now().UTC()
	}
	m.locations[loc.Address] = loc
	return loc, nil
}

func (m *Memory) ListLocations(ctx context.Context) ([]model.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Location, 0, len(m.locations))
	for _, l := range m.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func orderTotal(lines []model.OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
