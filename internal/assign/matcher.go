package assign

import (
	"errors"
	"sort"

	"foodcart/internal/model"
)

// ErrEmptyOrder is returned when matching an order without lines. Orders are
// validated as non-empty at intake, so this signals a bug upstream.
var ErrEmptyOrder = errors.New("assign: order has no lines")

// DistinctProducts returns the sorted distinct product ids of lines.
func DistinctProducts(lines []model.OrderLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	out := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		out = append(out, l.ProductID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Match returns, in ascending id order, the restaurants that stock every
// product in productIDs. An empty result means no single restaurant can
// fulfil the order.
func Match(productIDs []int64, ix Index) ([]int64, error) {
	if len(productIDs) == 0 {
		return nil, ErrEmptyOrder
	}
	// Start from the smallest set so the intersection loop stays short.
	smallest := -1
	for i, pid := range productIDs {
		set, ok := ix[pid]
		if !ok {
			return []int64{}, nil
		}
		if smallest < 0 || len(set) < len(ix[productIDs[smallest]]) {
			smallest = i
		}
	}
	out := []int64{}
	for rid := range ix[productIDs[smallest]] {
		capable := true
		for _, pid := range productIDs {
			if !ix.Stocks(pid, rid) {
				capable = false
				break
			}
		}
		if capable {
			out = append(out, rid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
