package engine

import (
	"errors"
	"testing"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
)

func baseBidContext() BidContext {
	return BidContext{
		Auction: &models.Auction{
			ID:               1,
			Status:           models.AuctionStatusInProgress,
			BiddingStatus:    models.BiddingOn,
			CurrentPlayerID:  7,
			CurrentBid:       5000,
			HighestBidderID:  99,
			MaxSquadSize:     11,
			DefaultIncrement: 500,
		},
		Lot: &models.Player{
			ID:        7,
			Name:      "R. Sharma",
			Category:  "batsman",
			BasePrice: 2000,
		},
		Team: &models.Team{
			ID:     3,
			Name:   "Strikers",
			Budget: 100000,
		},
		Categories: []*models.Category{
			{Name: "batsman", BasePrice: 2000, MinPerTeam: 4, MaxPerTeam: 6},
			{Name: "bowler", BasePrice: 1000, MinPerTeam: 3},
		},
	}
}

func wantReason(t *testing.T, err error, reason RejectReason) {
	t.Helper()
	var rejected *BidRejected
	if !errors.As(err, &rejected) {
		t.Fatalf("expected BidRejected, got %v", err)
	}
	if rejected.Reason != reason {
		t.Fatalf("expected reason %s, got %s (%s)", reason, rejected.Reason, rejected.Detail)
	}
}

func TestValidateBidAccepts(t *testing.T) {
	bc := baseBidContext()
	if err := ValidateBid(bc, 6000); err != nil {
		t.Fatalf("expected bid accepted, got %v", err)
	}
}

func TestValidateBidRaiseAboveNextIncrementIsLegal(t *testing.T) {
	// The amount is the client's own; jumping well past the official next
	// increment is allowed.
	bc := baseBidContext()
	if err := ValidateBid(bc, 25000); err != nil {
		t.Fatalf("expected jump bid accepted, got %v", err)
	}
}

func TestValidateBidSquadFull(t *testing.T) {
	bc := baseBidContext()
	bc.Auction.MaxSquadSize = 2
	bc.Team.Players = roster("batsman", "bowler")

	wantReason(t, ValidateBid(bc, 6000), ReasonSquadFull)
}

func TestValidateBidCategoryMaxReached(t *testing.T) {
	bc := baseBidContext()
	bc.Categories[0].MaxPerTeam = 2
	bc.Team.Players = roster("batsman", "batsman")

	wantReason(t, ValidateBid(bc, 6000), ReasonCategoryMaxReached)
}

func TestValidateBidUnlimitedCategoryNeverMaxes(t *testing.T) {
	bc := baseBidContext()
	bc.Categories[0].MaxPerTeam = 0 // unlimited
	bc.Team.Players = roster("batsman", "batsman", "batsman")

	if err := ValidateBid(bc, 6000); err != nil {
		t.Fatalf("expected bid accepted for unlimited category, got %v", err)
	}
}

func TestValidateBidReserveBreach(t *testing.T) {
	bc := baseBidContext()
	bc.Team.Budget = 20000

	// Reserve with an empty roster: 3 batsmen at 2000 + 3 bowlers at 1000
	// + 4 flexible slots at the 500 floor = 11000, so 9001 breaches while
	// 20000 is still within budget.
	wantReason(t, ValidateBid(bc, 9001), ReasonReserveBreach)

	if err := ValidateBid(bc, 9000); err != nil {
		t.Fatalf("expected bid at exactly max legal to pass, got %v", err)
	}
}

func TestValidateBidInsufficientFunds(t *testing.T) {
	bc := baseBidContext()
	bc.Team.Budget = 20000

	wantReason(t, ValidateBid(bc, 20001), ReasonInsufficientFunds)
}

func TestValidateBidAlreadyLeading(t *testing.T) {
	bc := baseBidContext()
	bc.Auction.HighestBidderID = bc.Team.ID

	wantReason(t, ValidateBid(bc, 6000), ReasonAlreadyLeading)
}

func TestValidateBidPaused(t *testing.T) {
	bc := baseBidContext()
	bc.Auction.BiddingStatus = models.BiddingPaused

	wantReason(t, ValidateBid(bc, 6000), ReasonPaused)
}

func TestValidateBidNotIncreasing(t *testing.T) {
	bc := baseBidContext()

	wantReason(t, ValidateBid(bc, 5000), ReasonNotIncreasing)
	wantReason(t, ValidateBid(bc, 4000), ReasonNotIncreasing)
}

func TestValidateBidOpeningBelowBasePrice(t *testing.T) {
	bc := baseBidContext()
	bc.Auction.CurrentBid = 0
	bc.Auction.HighestBidderID = 0

	wantReason(t, ValidateBid(bc, 1500), ReasonNotIncreasing)

	if err := ValidateBid(bc, 2000); err != nil {
		t.Fatalf("expected opening bid at base price to pass, got %v", err)
	}
}

// A bid failing several checks at once must report the highest priority
// reason only.
func TestValidateBidPriorityOrder(t *testing.T) {
	bc := baseBidContext()
	bc.Auction.MaxSquadSize = 2
	bc.Auction.BiddingStatus = models.BiddingPaused
	bc.Auction.HighestBidderID = bc.Team.ID
	bc.Team.Players = roster("batsman", "bowler")
	bc.Team.Budget = 100

	wantReason(t, ValidateBid(bc, 50), ReasonSquadFull)

	bc.Auction.MaxSquadSize = 11
	wantReason(t, ValidateBid(bc, 200), ReasonInsufficientFunds)

	bc.Team.Budget = 100000
	wantReason(t, ValidateBid(bc, 6000), ReasonAlreadyLeading)

	bc.Auction.HighestBidderID = 99
	wantReason(t, ValidateBid(bc, 6000), ReasonPaused)

	bc.Auction.BiddingStatus = models.BiddingOn
	wantReason(t, ValidateBid(bc, 5000), ReasonNotIncreasing)
}
