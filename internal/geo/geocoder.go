// Package geo resolves free-text addresses to coordinates and caches the
// results in the catalog store.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"foodcart/internal/metrics"
	"foodcart/internal/model"
)

const DefaultYandexURL = "https://geocode-maps.yandex.ru/1.x/"

var (
	// ErrNoMatch means the provider answered but found nothing for the address.
	ErrNoMatch = errors.New("geocode: no match")
	// ErrTransport means the provider could not be reached or answered with
	// something unusable. It is never cached.
	ErrTransport = errors.New("geocode: transport failure")
)

// Geocoder resolves an address. ok is false when the provider has no match;
// err is non-nil only for transport-level failures.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (pt model.GeoPoint, ok bool, err error)
}

// Yandex is a Geocoder backed by the Yandex HTTP Geocoder API.
type Yandex struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter
}

type yandexResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject struct {
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

// NewYandex builds a client. rps <= 0 disables client-side rate limiting.
func NewYandex(apiKey, baseURL string, timeout time.Duration, rps float64, burst int) *Yandex {
	if baseURL == "" {
		baseURL = DefaultYandexURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	y := &Yandex{APIKey: apiKey, BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		y.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return y
}

func (y *Yandex) Geocode(ctx context.Context, address string) (model.GeoPoint, bool, error) {
	start := time.Now()
	pt, ok, err := y.geocode(ctx, address)
	metrics.GeocodeLatency.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
	case !ok:
		metrics.GeocodeRequests.WithLabelValues("no_match").Inc()
	default:
		metrics.GeocodeRequests.WithLabelValues("found").Inc()
	}
	return pt, ok, err
}

func (y *Yandex) geocode(ctx context.Context, address string) (model.GeoPoint, bool, error) {
	if y.Limiter != nil {
		if err := y.Limiter.Wait(ctx); err != nil {
			return model.GeoPoint{}, false, fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}
	q := url.Values{}
	q.Set("apikey", y.APIKey)
	q.Set("format", "json")
	q.Set("geocode", address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return model.GeoPoint{}, false, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	resp, err := y.HTTP.Do(req)
	if err != nil {
		return model.GeoPoint{}, false, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return model.GeoPoint{}, false, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}
	var body yandexResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.GeoPoint{}, false, fmt.Errorf("%w: decode: %w", ErrTransport, err)
	}
	found := body.Response.GeoObjectCollection.FeatureMember
	if len(found) == 0 {
		return model.GeoPoint{}, false, nil
	}
	pt, err := parsePos(found[0].GeoObject.Point.Pos)
	if err != nil {
		return model.GeoPoint{}, false, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return pt, true, nil
}

// parsePos parses Yandex "lon lat" positions.
func parsePos(pos string) (model.GeoPoint, error) {
	parts := strings.Fields(pos)
	if len(parts) != 2 {
		return model.GeoPoint{}, fmt.Errorf("malformed pos %q", pos)
	}
	lng, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("malformed pos %q: %w", pos, err)
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("malformed pos %q: %w", pos, err)
	}
	return model.GeoPoint{Lat: lat, Lng: lng}, nil
}
