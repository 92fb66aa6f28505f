package geo

import (
	"math"
	"testing"

	"foodcart/internal/model"
)

func TestDistanceKm(t *testing.T) {
	cases := []struct {
		name      string
		a, b      model.GeoPoint
		want      float64
		tolerance float64
	}{
		{"same point", model.GeoPoint{Lat: 55.75, Lng: 37.61}, model.GeoPoint{Lat: 55.75, Lng: 37.61}, 0, 1e-9},
		{"moscow to saint petersburg", model.GeoPoint{Lat: 55.7558, Lng: 37.6173}, model.GeoPoint{Lat: 59.9343, Lng: 30.3351}, 634, 5},
		{"one degree of latitude", model.GeoPoint{Lat: 0, Lng: 0}, model.GeoPoint{Lat: 1, Lng: 0}, 111.2, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceKm(tc.a, tc.b)
			if math.Abs(got-tc.want) > tc.tolerance {
				t.Fatalf("got %.3f km, want %.3f±%.3f", got, tc.want, tc.tolerance)
			}
		})
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := model.GeoPoint{Lat: 55.75, Lng: 37.62}
	b := model.GeoPoint{Lat: 55.70, Lng: 37.50}
	if d1, d2 := DistanceKm(a, b), DistanceKm(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("not symmetric: %f vs %f", d1, d2)
	}
}
