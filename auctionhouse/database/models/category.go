package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Category groups players and carries the squad-composition rules the bid
// validator enforces. MaxPerTeam of 0 means unlimited.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	AuctionID  int64     `bun:"auction_id,notnull" json:"auctionId"`
	Name       string    `bun:"name,notnull" json:"name"`
	BasePrice  int64     `bun:"base_price,notnull" json:"basePrice"`
	MinPerTeam int       `bun:"min_per_team,notnull,default:0" json:"minPerTeam"`
	MaxPerTeam int       `bun:"max_per_team,notnull,default:0" json:"maxPerTeam"`
	Slabs      []BidSlab `bun:"slabs,type:jsonb" json:"slabs,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"-"`
}
