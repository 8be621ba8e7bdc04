package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PlayerStatus string

const (
	PlayerStatusAvailable PlayerStatus = "available"
	PlayerStatusSold      PlayerStatus = "sold"
	PlayerStatusUnsold    PlayerStatus = "unsold"
)

type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID        int64        `bun:"id,pk,autoincrement" json:"id"`
	AuctionID int64        `bun:"auction_id,notnull" json:"auctionId"`
	Name      string       `bun:"name,notnull" json:"name"`
	Category  string       `bun:"category,notnull" json:"category"`
	Role      string       `bun:"role" json:"role"`
	BasePrice int64        `bun:"base_price,notnull" json:"basePrice"`
	Status    PlayerStatus `bun:"status,notnull,default:'available'" json:"status"`

	// Sale metadata, set only while Status == sold.
	SoldPrice    int64     `bun:"sold_price,nullzero" json:"soldPrice,omitempty"`
	SoldToTeamID int64     `bun:"sold_to_team_id,nullzero" json:"soldToTeamId,omitempty"`
	SoldAt       time.Time `bun:"sold_at,nullzero" json:"soldAt,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"-"`
}
