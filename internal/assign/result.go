package assign

import "foodcart/internal/model"

type Kind string

const (
	KindAssigned            Kind = "assigned"
	KindRanked              Kind = "ranked"
	KindNoCapableRestaurant Kind = "no_capable_restaurant"
	KindGeocodeFailed       Kind = "geocode_failed"
)

// Result is the assignment view of one order. Exactly one of the variants
// applies, selected by Kind: Restaurant is set only for KindAssigned and
// Ranked only for KindRanked.
type Result struct {
	Kind       Kind              `json:"kind"`
	Restaurant *model.Restaurant `json:"restaurant,omitempty"`
	Ranked     []Ranked          `json:"ranked,omitempty"`
}

func Assigned(r model.Restaurant) Result { return Result{Kind: KindAssigned, Restaurant: &r} }

func RankedList(list []Ranked) Result { return Result{Kind: KindRanked, Ranked: list} }

func NoCapableRestaurant() Result { return Result{Kind: KindNoCapableRestaurant} }

func GeocodeFailed() Result { return Result{Kind: KindGeocodeFailed} }

// Message is the text shown to managers for terminal, non-list results.
func (r Result) Message() string {
	switch r.Kind {
	case KindGeocodeFailed:
		return "could not determine location"
	case KindNoCapableRestaurant:
		return "no restaurant available"
	case KindAssigned:
		if r.Restaurant != nil {
			return "cooked by " + r.Restaurant.Name
		}
		return "restaurant assigned"
	case KindRanked:
		if len(r.Ranked) == 0 {
			return "no restaurant with a known location"
		}
		return ""
	}
	return ""
}
