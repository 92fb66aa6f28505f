package assign

import (
	"testing"

	"foodcart/internal/model"
)

func TestRankNearestFirst(t *testing.T) {
	a := model.Restaurant{ID: 1, Name: "A"}
	b := model.Restaurant{ID: 2, Name: "B"}
	order := model.GeoPoint{Lat: 55.75, Lng: 37.62}
	got := Rank(order, []Candidate{
		{Restaurant: b, Point: model.GeoPoint{Lat: 55.70, Lng: 37.50}, Resolved: true},
		{Restaurant: a, Point: model.GeoPoint{Lat: 55.75, Lng: 37.61}, Resolved: true},
	})
	if len(got) != 2 || got[0].Restaurant.ID != a.ID || got[1].Restaurant.ID != b.ID {
		t.Fatalf("want A before B, got %+v", got)
	}
	if got[0].DistanceKm >= got[1].DistanceKm {
		t.Fatalf("distances not ascending: %+v", got)
	}
}

func TestRankExcludesUnresolvedAndBreaksTies(t *testing.T) {
	origin := model.GeoPoint{Lat: 0, Lng: 0}
	same := model.GeoPoint{Lat: 0, Lng: 1}
	got := Rank(origin, []Candidate{
		{Restaurant: model.Restaurant{ID: 9}, Point: same, Resolved: true},
		{Restaurant: model.Restaurant{ID: 4}, Resolved: false},
		{Restaurant: model.Restaurant{ID: 3}, Point: same, Resolved: true},
		{Restaurant: model.Restaurant{ID: 5}, Point: model.GeoPoint{Lat: 0, Lng: 0.5}, Resolved: true},
	})
	ids := []int64{}
	for _, r := range got {
		ids = append(ids, r.Restaurant.ID)
	}
	want := []int64{5, 3, 9}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].DistanceKm > got[i].DistanceKm {
			t.Fatalf("not sorted at %d: %+v", i, got)
		}
	}
}

func TestRankEmpty(t *testing.T) {
	if got := Rank(model.GeoPoint{}, nil); len(got) != 0 {
		t.Fatalf("want empty, got %+v", got)
	}
}
