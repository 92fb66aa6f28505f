package api

import (
	"net/http"
	"os"
	"time"

	"foodcart/internal/buildinfo"
	"foodcart/internal/store"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"store":  storeKind(s),
		"broker": brokerKind(s),
		"config": map[string]any{
			"HTTP_ADDR":            os.Getenv("HTTP_ADDR"),
			"LOG_LEVEL":            os.Getenv("LOG_LEVEL"),
			"GEOCODER_RPS":         os.Getenv("GEOCODER_RPS"),
			"GEOCODER_BURST":       os.Getenv("GEOCODER_BURST"),
			"GEOCODER_TIMEOUT":     os.Getenv("GEOCODER_TIMEOUT"),
			"AUTH_MODE":            os.Getenv("AUTH_MODE"),
			"HAS_GEOCODER_API_KEY": os.Getenv("GEOCODER_API_KEY") != "",
			"HAS_WEBHOOK_URL":      os.Getenv("WEBHOOK_URL") != "",
			"HAS_DATABASE_URL":     os.Getenv("DATABASE_URL") != "",
			"HAS_REDIS_URL":        os.Getenv("REDIS_URL") != "",
		},
	}
	writeJSON(w, http.StatusOK, info)
}

func storeKind(s *Server) string {
	switch s.Store.(type) {
	case *store.Postgres:
		return "postgres"
	case *store.Memory:
		return "memory"
	}
	return "custom"
}

func brokerKind(s *Server) string {
	if _, ok := s.Broker.(*RedisBroker); ok {
		return "redis"
	}
	return "memory"
}
