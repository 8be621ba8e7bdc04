package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
)

type AuctionRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Auction, error)
	GetFirst(ctx context.Context) (*models.Auction, error)
	Create(ctx context.Context, auction *models.Auction) error
	GetLog(ctx context.Context, auctionID int64, limit int) ([]*models.AuctionLog, error)
}

type auctionRepository struct {
	db *bun.DB
}

func NewAuctionRepository(db *bun.DB) AuctionRepository {
	return &auctionRepository{db: db}
}

func (r *auctionRepository) GetByID(ctx context.Context, id int64) (*models.Auction, error) {
	auction := new(models.Auction)
	err := r.db.NewSelect().Model(auction).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

// GetFirst returns the auction record for this deployment, or nil when the
// database has not been seeded yet.
func (r *auctionRepository) GetFirst(ctx context.Context) (*models.Auction, error) {
	auction := new(models.Auction)
	err := r.db.NewSelect().Model(auction).Order("id ASC").Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

func (r *auctionRepository) Create(ctx context.Context, auction *models.Auction) error {
	auction.CreatedAt = time.Now()
	auction.UpdatedAt = time.Now()
	if auction.Status == "" {
		auction.Status = models.AuctionStatusNotStarted
	}
	if auction.BiddingStatus == "" {
		auction.BiddingStatus = models.BiddingOn
	}

	_, err := r.db.NewInsert().Model(auction).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *auctionRepository) GetLog(ctx context.Context, auctionID int64, limit int) ([]*models.AuctionLog, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []*models.AuctionLog
	err := r.db.NewSelect().
		Model(&entries).
		Where("auction_id = ?", auctionID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction log: %w", err)
	}
	return entries, nil
}
