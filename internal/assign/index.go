// Package assign decides which restaurants can cook an order and ranks them
// by distance to the delivery address.
package assign

import "foodcart/internal/model"

// Index maps a product id to the set of restaurant ids that currently stock
// it. Products nobody stocks are absent rather than mapped to an empty set.
type Index map[int64]map[int64]struct{}

// BuildIndex derives an Index from menu records, ignoring unavailable ones.
func BuildIndex(items []model.MenuItem) Index {
	ix := Index{}
	for _, it := range items {
		if !it.Available {
			continue
		}
		set := ix[it.ProductID]
		if set == nil {
			set = map[int64]struct{}{}
			ix[it.ProductID] = set
		}
		set[it.RestaurantID] = struct{}{}
	}
	return ix
}

// Stocks reports whether restaurantID has productID available.
func (ix Index) Stocks(productID, restaurantID int64) bool {
	_, ok := ix[productID][restaurantID]
	return ok
}
