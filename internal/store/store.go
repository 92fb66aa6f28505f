package store

import (
	"context"
	"errors"

	"foodcart/internal/model"
)

// Store is the persistence interface used by the API server and the
// assignment service.
type Store interface {
	// Restaurants & products
	CreateRestaurant(ctx context.Context, r model.Restaurant) (model.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)
	CreateProduct(ctx context.Context, p model.Product) (model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)

	// Menu availability
	SetMenuItem(ctx context.Context, item model.MenuItem) error
	ListMenuItems(ctx context.Context) ([]model.MenuItem, error)
	ListAvailableMenuItems(ctx context.Context) ([]model.MenuItem, error)

	// Orders
	CreateOrder(ctx context.Context, in model.OrderIn) (model.Order, error)
	GetOrder(ctx context.Context, id int64) (model.Order, error)
	// ListActiveOrders returns orders not in the done state, ordered by
	// lifecycle stage then id, with Total populated.
	ListActiveOrders(ctx context.Context) ([]model.Order, error)
	GetOrderLines(ctx context.Context, orderID int64) ([]model.OrderLine, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error
	AssignRestaurant(ctx context.Context, orderID, restaurantID int64) error

	// Geocoded locations. UpsertLocation is insert-or-update keyed by the
	// exact address; concurrent writers end with the last write.
	GetLocation(ctx context.Context, address string) (model.Location, error)
	UpsertLocation(ctx context.Context, loc model.Location) (model.Location, error)
	ListLocations(ctx context.Context) ([]model.Location, error)
}

var ErrNotFound = errors.New("not found")
