package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Team is a bidding franchise. Budget is only ever moved by the sale
// coordinator; bid placement proposes money movement but never commits it.
// The roster is derived from players with sold_to_team_id = ID, so a sold
// player can never sit in two squads.
type Team struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID             int64  `bun:"id,pk,autoincrement" json:"id"`
	AuctionID      int64  `bun:"auction_id,notnull" json:"auctionId"`
	Name           string `bun:"name,notnull" json:"name"`
	Budget         int64  `bun:"budget,notnull" json:"budget"`
	StartingBudget int64  `bun:"starting_budget,notnull" json:"startingBudget"`

	Players []*Player `bun:"rel:has-many,join:id=sold_to_team_id" json:"players,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"-"`
}

// RosterCount returns the number of players currently owned by the team.
func (t *Team) RosterCount() int {
	return len(t.Players)
}

// CategoryCount returns how many owned players belong to the given category.
func (t *Team) CategoryCount(category string) int {
	n := 0
	for _, p := range t.Players {
		if p.Category == category {
			n++
		}
	}
	return n
}
