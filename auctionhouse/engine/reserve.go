package engine

import (
	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
)

// ReserveInput carries everything the reservation calculator needs. It is
// rebuilt from fresh reads on every validation call; reserves are never
// cached across bids because rosters and categories move between calls.
type ReserveInput struct {
	Roster       []*models.Player
	Categories   []*models.Category
	MinBasePrice int64
	MaxSquadSize int
	// LotCategory is the category of the lot under the hammer; winning the
	// lot satisfies one slot of that category's minimum.
	LotCategory string
}

// Reserve computes the purse a team must keep unspent after winning the
// current lot, so that every category minimum and the remaining squad slots
// can still be filled at base prices.
func Reserve(in ReserveInput) int64 {
	remainingSlots := in.MaxSquadSize - (len(in.Roster) + 1)
	if remainingSlots < 0 {
		remainingSlots = 0
	}

	var reserve int64
	mandatorySlots := 0
	for _, cat := range in.Categories {
		needed := cat.MinPerTeam - countCategory(in.Roster, cat.Name)
		if cat.Name == in.LotCategory {
			needed--
		}
		if needed <= 0 {
			continue
		}

		price := cat.BasePrice
		if price <= 0 {
			price = in.MinBasePrice
		}
		reserve += int64(needed) * price
		mandatorySlots += needed
	}

	flexibleSlots := remainingSlots - mandatorySlots
	if flexibleSlots < 0 {
		flexibleSlots = 0
	}
	reserve += int64(flexibleSlots) * in.MinBasePrice

	return reserve
}

// MaxLegalBid is the most a team can commit to the current lot without
// breaching its reservation.
func MaxLegalBid(budget int64, in ReserveInput) int64 {
	return budget - Reserve(in)
}

// MinBasePrice returns the cheapest price any future slot could be filled
// at: the minimum of the default and every category base price.
func MinBasePrice(defaultPrice int64, categories []*models.Category) int64 {
	min := defaultPrice
	for _, cat := range categories {
		if cat.BasePrice > 0 && (min <= 0 || cat.BasePrice < min) {
			min = cat.BasePrice
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

func countCategory(roster []*models.Player, category string) int {
	n := 0
	for _, p := range roster {
		if p.Category == category {
			n++
		}
	}
	return n
}
