package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foodcart/internal/assign"
	"foodcart/internal/auth"
	"foodcart/internal/config"
	"foodcart/internal/geo"
	"foodcart/internal/metrics"
	"foodcart/internal/model"
	"foodcart/internal/store"
	"foodcart/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Assign *assign.Service
	Broker EventBroker
	Auth   *auth.Verifier // nil leaves manager endpoints open
	Log    *slog.Logger

	hooks atomic.Pointer[webhooks.Worker]
}

// New wires a Server from already constructed dependencies.
func New(st store.Store, g geo.Geocoder, broker EventBroker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if broker == nil {
		broker = NewBroker()
	}
	s := &Server{Store: st, Broker: broker, Log: log}
	s.Assign = assign.NewService(st, g, serverNotifier{s: s}, log)
	return s
}

// publish sends evt to stream subscribers and, when webhooks are enabled,
// queues it for delivery. Only the instance that made the change enqueues,
// so a shared Redis broker does not multiply deliveries.
func (s *Server) publish(evt model.OrderEvent) {
	s.Broker.Publish(TopicOrders, evt)
	if w := s.hooks.Load(); w != nil {
		w.Enqueue(evt)
	}
}

// NewServer creates a Server from configuration. If DatabaseURL is empty the
// in-memory store is used; if RedisURL is empty events stay in process.
func NewServer(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	var s store.Store
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := sp.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		s = sp
	}
	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			log.Warn("redis unavailable, using in-process broker", "err", err)
			broker = NewBroker()
		} else {
			broker = rb
		}
	} else {
		broker = NewBroker()
	}
	g := geo.NewYandex(cfg.Geocoder.APIKey, cfg.Geocoder.URL, cfg.Geocoder.Timeout, cfg.Geocoder.RPS, cfg.Geocoder.Burst)
	srv := New(s, g, broker, log)
	srv.Auth = auth.NewVerifier(cfg.Auth)
	return srv, nil
}

// StartWebhooks delivers every order event published by this server to
// cfg.URL until ctx is done.
// It is a no-op when no URL is configured.
func (s *Server) StartWebhooks(ctx context.Context, cfg config.WebhookConfig) *webhooks.Worker {
	if cfg.URL == "" {
		return nil
	}
	w := webhooks.NewWorker(cfg.URL, cfg.Secret, cfg.MaxAttempts, s.Log)
	s.hooks.Store(w)
	go func() {
		defer s.hooks.CompareAndSwap(w, nil)
		w.Run(ctx)
	}()
	s.Log.Info("webhook delivery enabled", "url", cfg.URL, "signed", cfg.Secret != "")
	return w
}

// Close releases the store and broker connections, if any.
func (s *Server) Close() {
	if c, ok := s.Broker.(io.Closer); ok {
		_ = c.Close()
	}
	if c, ok := s.Store.(io.Closer); ok {
		_ = c.Close()
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	metrics.RegisterDefault()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logMiddleware)
	r.Use(middleware.Recoverer)

	// Order intake
	r.Post("/api/orders", s.RegisterOrderHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/token", s.TokenHandler)

		// Public catalog
		r.Get("/restaurants", s.ListRestaurantsHandler)
		r.Get("/products", s.ListProductsHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.requireManager)

			// Manager views
			r.Get("/orders/assignments", s.AssignmentsHandler)
			r.Put("/orders/{id}/restaurant", s.AssignRestaurantHandler)
			r.Put("/orders/{id}/status", s.OrderStatusHandler)
			r.Get("/orders/events/stream", s.OrderEventsStreamHandler)
			r.Get("/orders/events/ws", s.OrderEventsWSHandler)

			// Catalog management
			r.Post("/restaurants", s.CreateRestaurantHandler)
			r.Post("/products", s.CreateProductHandler)
			r.Get("/products/availability", s.ProductAvailabilityHandler)
			r.Put("/menu", s.SetMenuItemHandler)

			// Geocoding cache
			r.Get("/locations", s.ListLocationsHandler)
			r.Post("/locations/refresh", s.RefreshLocationHandler)
		})
	})

	r.Get("/healthz", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Get("/debug/info", s.DebugJSON)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return r
}
