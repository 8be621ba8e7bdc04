package engine

import (
	"sort"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
)

// NextBid computes the next legal bid for a lot. It is deterministic and
// side-effect free so clients can re-derive the same value for display
// without a server round trip.
//
// With no bids yet the opening bid is the lot's base price (or the default
// increment when the lot has none). Otherwise the category slab table is
// consulted first, then the global one; the matching slab is the one with
// the highest threshold not exceeding the current bid. With no matching
// slab the default increment applies.
func NextBid(currentBid, basePrice int64, categorySlabs, globalSlabs []models.BidSlab, defaultIncrement int64) int64 {
	if currentBid == 0 {
		if basePrice > 0 {
			return basePrice
		}
		return defaultIncrement
	}

	if inc, ok := slabIncrement(categorySlabs, currentBid); ok {
		return currentBid + inc
	}
	if inc, ok := slabIncrement(globalSlabs, currentBid); ok {
		return currentBid + inc
	}
	return currentBid + defaultIncrement
}

func slabIncrement(slabs []models.BidSlab, currentBid int64) (int64, bool) {
	if len(slabs) == 0 {
		return 0, false
	}

	sorted := make([]models.BidSlab, len(slabs))
	copy(sorted, slabs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From > sorted[j].From })

	for _, s := range sorted {
		if s.From <= currentBid {
			return s.Increment, true
		}
	}
	return 0, false
}
