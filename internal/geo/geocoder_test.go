package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParsePos(t *testing.T) {
	pt, err := parsePos("37.617698 55.755864")
	if err != nil {
		t.Fatalf("parsePos: %v", err)
	}
	if pt.Lat != 55.755864 || pt.Lng != 37.617698 {
		t.Fatalf("lon/lat swapped: %+v", pt)
	}
	for _, bad := range []string{"", "37.6", "a b", "1 2 3"} {
		if _, err := parsePos(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func newYandexServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("geocode")
		if r.URL.Query().Get("apikey") != "key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &gotQuery
}

func TestYandexGeocodeFound(t *testing.T) {
	srv, q := newYandexServer(t, 200, `{"response":{"GeoObjectCollection":{"featureMember":[
		{"GeoObject":{"Point":{"pos":"37.61 55.75"}}},
		{"GeoObject":{"Point":{"pos":"30.33 59.93"}}}]}}}`)
	y := NewYandex("key", srv.URL, time.Second, 0, 0)
	pt, ok, err := y.Geocode(context.Background(), "Red Square, 1")
	if err != nil || !ok {
		t.Fatalf("want match, got ok=%v err=%v", ok, err)
	}
	if pt.Lat != 55.75 || pt.Lng != 37.61 {
		t.Fatalf("first result expected, got %+v", pt)
	}
	if *q != "Red Square, 1" {
		t.Fatalf("address not forwarded: %q", *q)
	}
}

func TestYandexGeocodeNoMatch(t *testing.T) {
	srv, _ := newYandexServer(t, 200, `{"response":{"GeoObjectCollection":{"featureMember":[]}}}`)
	y := NewYandex("key", srv.URL, time.Second, 0, 0)
	_, ok, err := y.Geocode(context.Background(), "nowhere")
	if err != nil || ok {
		t.Fatalf("want clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestYandexGeocodeTransportFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", 500, `oops`},
		{"malformed json", 200, `{"response":`},
		{"malformed pos", 200, `{"response":{"GeoObjectCollection":{"featureMember":[{"GeoObject":{"Point":{"pos":"x"}}}]}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newYandexServer(t, tc.status, tc.body)
			y := NewYandex("key", srv.URL, time.Second, 0, 0)
			_, _, err := y.Geocode(context.Background(), "addr")
			if !errors.Is(err, ErrTransport) {
				t.Fatalf("want ErrTransport, got %v", err)
			}
		})
	}
}

func TestYandexRateLimiterHonoursContext(t *testing.T) {
	srv, _ := newYandexServer(t, 200, `{"response":{"GeoObjectCollection":{"featureMember":[]}}}`)
	y := NewYandex("key", srv.URL, time.Second, 0.001, 1)
	if _, _, err := y.Geocode(context.Background(), "a"); err != nil {
		t.Fatalf("first call should pass the burst: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := y.Geocode(ctx, "b"); !errors.Is(err, ErrTransport) {
		t.Fatalf("want ErrTransport once the limiter cannot wait, got %v", err)
	}
}
