package assign

import (
	"sort"

	"foodcart/internal/geo"
	"foodcart/internal/model"
)

// Candidate is a capable restaurant with its coordinate, if known.
type Candidate struct {
	Restaurant model.Restaurant
	Point      model.GeoPoint
	Resolved   bool
}

type Ranked struct {
	Restaurant model.Restaurant `json:"restaurant"`
	DistanceKm float64          `json:"distanceKm"`
}

// Rank orders candidates by great-circle distance from origin, nearest first,
// breaking ties by restaurant id. Candidates without a resolved coordinate
// are left out.
func Rank(origin model.GeoPoint, candidates []Candidate) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		if !c.Resolved {
			continue
		}
		out = append(out, Ranked{Restaurant: c.Restaurant, DistanceKm: geo.DistanceKm(origin, c.Point)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Restaurant.ID < out[j].Restaurant.ID
	})
	return out
}
