package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Core domain types for the restaurant back office.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Restaurant struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	ContactPhone string `json:"contactPhone,omitempty"`
}

type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category,omitempty"`
	Price    decimal.Decimal `json:"price"`
}

// MenuItem is one restaurant's availability flag for one product.
// At most one exists per (RestaurantID, ProductID).
type MenuItem struct {
	RestaurantID int64 `json:"restaurantId"`
	ProductID    int64 `json:"productId"`
	Available    bool  `json:"available"`
}

type Order struct {
	ID           int64           `json:"id"`
	FirstName    string          `json:"firstname"`
	LastName     string          `json:"lastname,omitempty"`
	Phone        string          `json:"phonenumber"`
	Address      string          `json:"address"`
	Status       OrderStatus     `json:"status"`
	Payment      PaymentMethod   `json:"payment,omitempty"`
	Comment      string          `json:"comment,omitempty"`
	RestaurantID *int64          `json:"restaurantId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	CalledAt     *time.Time      `json:"calledAt,omitempty"`    // first move to accepted
	DeliveredAt  *time.Time      `json:"deliveredAt,omitempty"` // first move to done
	Total        decimal.Decimal `json:"total"`
}

// Assigned reports whether a restaurant has been fixed for the order.
func (o Order) Assigned() bool { return o.RestaurantID != nil }

type OrderLine struct {
	OrderID   int64           `json:"orderId"`
	ProductID int64           `json:"product"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderIn is the intake payload for a new order.
type OrderIn struct {
	FirstName string        `json:"firstname"`
	LastName  string        `json:"lastname"`
	Phone     string        `json:"phonenumber"`
	Address   string        `json:"address"`
	Payment   PaymentMethod `json:"payment,omitempty"`
	Comment   string        `json:"comment,omitempty"`
	Products  []LineIn      `json:"products"`
}

type LineIn struct {
	ProductID int64 `json:"product"`
	Quantity  int   `json:"quantity"`
}

// Location is a cached geocoding result for an exact address string.
// Lat/Lng are nil when the provider found no match.
type Location struct {
	Address    string    `json:"address"`
	Lat        *float64  `json:"lat"`
	Lng        *float64  `json:"lng"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// Point returns the coordinate and whether it is resolved.
func (l Location) Point() (GeoPoint, bool) {
	if l.Lat == nil || l.Lng == nil {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: *l.Lat, Lng: *l.Lng}, true
}

// OrderEvent is published when an order changes state.
type OrderEvent struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	OrderID int64       `json:"orderId"`
	From    OrderStatus `json:"from,omitempty"`
	To      OrderStatus `json:"to,omitempty"`
	TS      string      `json:"ts"`
}
