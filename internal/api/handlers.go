package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"foodcart/internal/assign"
	"foodcart/internal/geo"
	"foodcart/internal/model"
	"foodcart/internal/store"
)

// RegisterOrderHandler handles POST /api/orders
func (s *Server) RegisterOrderHandler(w http.ResponseWriter, r *http.Request) {
	var in model.OrderIn
	if err := decodeJSON(r, &in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOrderIn(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid order", err.Error(), r.URL.Path)
		return
	}
	o, err := s.Store.CreateOrder(r.Context(), in)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusBadRequest, "Invalid order", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create order failed", err.Error(), r.URL.Path)
		return
	}
	s.Log.Info("order registered", "order", o.ID, "lines", len(in.Products))
	writeJSON(w, http.StatusCreated, o)
}

type rankedView struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	DistanceKm float64 `json:"distanceKm"`
}

// OrderView is one order in an assignment report.
type OrderView struct {
	ID         int64             `json:"id"`
	Status     string            `json:"status"`
	StatusCode model.OrderStatus `json:"statusCode"`
	Payment    string            `json:"payment"`
	Client     string            `json:"client"`
	Phone      string            `json:"phone"`
	Address    string            `json:"address"`
	Comment    string            `json:"comment,omitempty"`
	Total      decimal.Decimal   `json:"total"`
	Kind       assign.Kind       `json:"kind,omitempty"`
	Restaurant *model.Restaurant `json:"restaurant,omitempty"`
	Ranked     []rankedView      `json:"restaurants,omitempty"`
	Message    string            `json:"message,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func newOrderView(a assign.OrderAssignment) OrderView {
	o := a.Order
	v := OrderView{
		ID:         o.ID,
		Status:     o.Status.Label(),
		StatusCode: o.Status,
		Payment:    o.Payment.Label(),
		Client:     strings.TrimSpace(o.FirstName + " " + o.LastName),
		Phone:      o.Phone,
		Address:    o.Address,
		Comment:    o.Comment,
		Total:      o.Total,
	}
	if a.Err != nil {
		v.Error = a.Err.Error()
		if errors.Is(a.Err, geo.ErrTransport) {
			v.Message = "geocoding service unavailable"
		}
		return v
	}
	v.Kind = a.Result.Kind
	v.Message = a.Result.Message()
	switch a.Result.Kind {
	case assign.KindAssigned:
		v.Restaurant = a.Result.Restaurant
	case assign.KindRanked:
		v.Ranked = make([]rankedView, 0, len(a.Result.Ranked))
		for _, rk := range a.Result.Ranked {
			v.Ranked = append(v.Ranked, rankedView{ID: rk.Restaurant.ID, Name: rk.Restaurant.Name, DistanceKm: rk.DistanceKm})
		}
	case assign.KindNoCapableRestaurant, assign.KindGeocodeFailed:
	}
	return v
}

// AssignmentReport is the result of one assignment pass.
type AssignmentReport struct {
	BatchID string      `json:"batchId"`
	Items   []OrderView `json:"items"`
}

// Assignments runs one assignment pass over every order that is not done,
// ranking capable restaurants by distance.
func (s *Server) Assignments(ctx context.Context) (AssignmentReport, error) {
	orders, err := s.Store.ListActiveOrders(ctx)
	if err != nil {
		return AssignmentReport{}, fmt.Errorf("list orders: %w", err)
	}
	batch, err := s.Assign.NewBatch(ctx)
	if err != nil {
		return AssignmentReport{}, err
	}
	rep := AssignmentReport{BatchID: batch.ID, Items: make([]OrderView, 0, len(orders))}
	for _, a := range batch.AssignAll(ctx, orders) {
		rep.Items = append(rep.Items, newOrderView(a))
	}
	return rep, nil
}

// AssignmentsHandler handles GET /v1/orders/assignments
func (s *Server) AssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Assignments(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Assignment failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// AssignRestaurantHandler handles PUT /v1/orders/{id}/restaurant
func (s *Server) AssignRestaurantHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid order id", "", r.URL.Path)
		return
	}
	var body struct {
		RestaurantID int64 `json:"restaurantId"`
	}
	if err := decodeJSON(r, &body); err != nil || body.RestaurantID <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", "restaurantId required", r.URL.Path)
		return
	}
	if err := s.Store.AssignRestaurant(r.Context(), id, body.RestaurantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Assign failed", err.Error(), r.URL.Path)
		return
	}
	o, err := s.Store.GetOrder(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load order failed", err.Error(), r.URL.Path)
		return
	}
	s.Log.Info("restaurant assigned", "order", id, "restaurant", body.RestaurantID, "by", principal(r).Subject)
	writeJSON(w, http.StatusOK, o)
}

// OrderStatusHandler handles PUT /v1/orders/{id}/status
func (s *Server) OrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid order id", "", r.URL.Path)
		return
	}
	var body struct {
		Status model.OrderStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil || !body.Status.Valid() {
		writeProblem(w, http.StatusBadRequest, "Invalid status", "", r.URL.Path)
		return
	}
	o, err := s.Store.GetOrder(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load order failed", err.Error(), r.URL.Path)
		return
	}
	if err := s.Store.UpdateOrderStatus(r.Context(), id, body.Status); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Update failed", err.Error(), r.URL.Path)
		return
	}
	if o.Status != body.Status {
		s.Log.Info("order status changed", "order", id, "from", o.Status, "to", body.Status, "by", principal(r).Subject)
		s.publish(newStatusEvent(id, o.Status, body.Status))
	}
	if updated, err := s.Store.GetOrder(r.Context(), id); err == nil {
		o = updated
	} else {
		o.Status = body.Status
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) ListRestaurantsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListRestaurants(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List restaurants failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) CreateRestaurantHandler(w http.ResponseWriter, r *http.Request) {
	var in model.Restaurant
	if err := decodeJSON(r, &in); err != nil || strings.TrimSpace(in.Name) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid restaurant", "name required", r.URL.Path)
		return
	}
	out, err := s.Store.CreateRestaurant(r.Context(), in)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create restaurant failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListProducts(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List products failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var in model.Product
	if err := decodeJSON(r, &in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateProduct(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid product", err.Error(), r.URL.Path)
		return
	}
	out, err := s.Store.CreateProduct(r.Context(), in)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create product failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// SetMenuItemHandler handles PUT /v1/menu
func (s *Server) SetMenuItemHandler(w http.ResponseWriter, r *http.Request) {
	var in model.MenuItem
	if err := decodeJSON(r, &in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := s.Store.SetMenuItem(r.Context(), in); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Set menu item failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// ProductAvailabilityHandler handles GET /v1/products/availability: for each
// product, one flag per restaurant in the order of the restaurants list.
func (s *Server) ProductAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	restaurants, err := s.Store.ListRestaurants(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List restaurants failed", err.Error(), r.URL.Path)
		return
	}
	products, err := s.Store.ListProducts(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List products failed", err.Error(), r.URL.Path)
		return
	}
	items, err := s.Store.ListMenuItems(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List menu failed", err.Error(), r.URL.Path)
		return
	}
	type key struct{ product, restaurant int64 }
	avail := make(map[key]bool, len(items))
	for _, it := range items {
		avail[key{it.ProductID, it.RestaurantID}] = it.Available
	}
	type row struct {
		Product      model.Product `json:"product"`
		Availability []bool        `json:"availability"`
	}
	rows := make([]row, 0, len(products))
	for _, p := range products {
		flags := make([]bool, len(restaurants))
		for i, rest := range restaurants {
			flags[i] = avail[key{p.ID, rest.ID}]
		}
		rows = append(rows, row{Product: p, Availability: flags})
	}
	writeJSON(w, http.StatusOK, map[string]any{"restaurants": restaurants, "products": rows})
}

func (s *Server) ListLocationsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListLocations(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List locations failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// RefreshLocationHandler handles POST /v1/locations/refresh, re-geocoding an
// address even if a result (or a miss) is already cached.
func (s *Server) RefreshLocationHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(r, &body); err != nil || strings.TrimSpace(body.Address) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", "address required", r.URL.Path)
		return
	}
	loc, err := s.Assign.Cache().Refresh(r.Context(), body.Address)
	switch {
	case errors.Is(err, geo.ErrTransport):
		writeProblem(w, http.StatusBadGateway, "Geocoder unavailable", err.Error(), r.URL.Path)
		return
	case err != nil:
		writeProblem(w, http.StatusInternalServerError, "Refresh failed", err.Error(), r.URL.Path)
		return
	}
	_, resolved := loc.Point()
	writeJSON(w, http.StatusOK, map[string]any{"location": loc, "resolved": resolved})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
