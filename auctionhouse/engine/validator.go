package engine

import (
	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
)

// BidContext is the snapshot a candidate bid is judged against. All fields
// come from the same transactional read; the validator itself touches no
// storage.
type BidContext struct {
	Auction    *models.Auction
	Lot        *models.Player
	Team       *models.Team // roster loaded
	Categories []*models.Category
}

// ValidateBid accepts or rejects a candidate bid. Exactly one reason is
// reported per rejection, checked in fixed priority order: squad-full,
// category-max, budget-reserve, insufficient-funds, already-leading,
// paused, not-increasing.
//
// The amount is the client's, not the resolver's: any raise above the
// current bid is legal, not just the official next increment.
func ValidateBid(bc BidContext, amount int64) error {
	a, lot, team := bc.Auction, bc.Lot, bc.Team

	if team.RosterCount() >= a.MaxSquadSize {
		return reject(ReasonSquadFull, "squad already has %d players", team.RosterCount())
	}

	if cat := findCategory(bc.Categories, lot.Category); cat != nil && cat.MaxPerTeam > 0 {
		if team.CategoryCount(cat.Name) >= cat.MaxPerTeam {
			return reject(ReasonCategoryMaxReached, "already own %d %s players", cat.MaxPerTeam, cat.Name)
		}
	}

	maxBid := MaxLegalBid(team.Budget, ReserveInput{
		Roster:       team.Players,
		Categories:   bc.Categories,
		MinBasePrice: MinBasePrice(a.DefaultIncrement, bc.Categories),
		MaxSquadSize: a.MaxSquadSize,
		LotCategory:  lot.Category,
	})
	if amount <= team.Budget && amount > maxBid {
		return reject(ReasonReserveBreach, "max legal bid is %d after reserving for squad minimums", maxBid)
	}
	if amount > team.Budget {
		return reject(ReasonInsufficientFunds, "budget is %d", team.Budget)
	}

	if a.HighestBidderID == team.ID {
		return reject(ReasonAlreadyLeading, "team is already the highest bidder")
	}

	if a.BiddingStatus != models.BiddingOn {
		return reject(ReasonPaused, "bidding is paused")
	}

	if amount <= a.CurrentBid {
		return reject(ReasonNotIncreasing, "bid %d does not beat current bid %d", amount, a.CurrentBid)
	}
	if a.CurrentBid == 0 && amount < lot.BasePrice {
		return reject(ReasonNotIncreasing, "opening bid %d is below base price %d", amount, lot.BasePrice)
	}

	return nil
}

func findCategory(categories []*models.Category, name string) *models.Category {
	for _, c := range categories {
		if c.Name == name {
			return c
		}
	}
	return nil
}
