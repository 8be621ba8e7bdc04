package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionStatus string

const (
	AuctionStatusNotStarted AuctionStatus = "not_started"
	AuctionStatusInProgress AuctionStatus = "in_progress"
	AuctionStatusSold       AuctionStatus = "sold"
	AuctionStatusUnsold     AuctionStatus = "unsold"
	AuctionStatusFinished   AuctionStatus = "finished"
)

type BiddingStatus string

const (
	BiddingOn     BiddingStatus = "on"
	BiddingPaused BiddingStatus = "paused"
)

// BidSlab maps a price threshold to the increment that applies once the
// current bid reaches it. Slabs are stored ordered by From ascending.
type BidSlab struct {
	From      int64 `json:"from"`
	Increment int64 `json:"increment"`
}

type Auction struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID                int64         `bun:"id,pk,autoincrement" json:"id"`
	Name              string        `bun:"name,notnull" json:"name"`
	Status            AuctionStatus `bun:"status,notnull" json:"status"`
	BiddingStatus     BiddingStatus `bun:"bidding_status,notnull" json:"biddingStatus"`
	CurrentPlayerID   int64         `bun:"current_player_id,nullzero" json:"currentPlayerId,omitempty"`
	CurrentBid        int64         `bun:"current_bid,notnull,default:0" json:"currentBid"`
	HighestBidderID   int64         `bun:"highest_bidder_id,nullzero" json:"highestBidderId,omitempty"`
	HighestBidderName string        `bun:"highest_bidder_name" json:"highestBidderName,omitempty"`
	TimerSeconds      int           `bun:"timer_seconds,notnull" json:"timerSeconds"`
	DefaultIncrement  int64         `bun:"default_increment,notnull" json:"defaultIncrement"`
	BidSlabs          []BidSlab     `bun:"bid_slabs,type:jsonb" json:"bidSlabs"`
	MaxSquadSize      int           `bun:"max_squad_size,notnull" json:"maxSquadSize"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"-"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"-"`
}

type LogType string

const (
	LogTypeBid    LogType = "bid"
	LogTypeSold   LogType = "sold"
	LogTypeUnsold LogType = "unsold"
	LogTypeSystem LogType = "system"
)

// AuctionLog is an append-only entry on an auction's activity feed.
// Rows are only ever inserted, or wiped wholesale by a full auction reset.
type AuctionLog struct {
	bun.BaseModel `bun:"table:auction_logs,alias:al"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	AuctionID int64     `bun:"auction_id,notnull" json:"auctionId"`
	Type      LogType   `bun:"type,notnull" json:"type"`
	Message   string    `bun:"message,notnull" json:"message"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"timestamp"`
}
