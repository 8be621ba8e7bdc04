package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
)

// Sponsors and display settings are managed out of band and only read
// here, so the repository has no write side.
type SponsorRepository interface {
	GetAll(ctx context.Context) ([]*models.Sponsor, error)
	GetDisplayConfig(ctx context.Context) (*models.DisplayConfig, error)
}

type sponsorRepository struct {
	db *bun.DB
}

func NewSponsorRepository(db *bun.DB) SponsorRepository {
	return &sponsorRepository{db: db}
}

func (r *sponsorRepository) GetAll(ctx context.Context) ([]*models.Sponsor, error) {
	var sponsors []*models.Sponsor
	err := r.db.NewSelect().
		Model(&sponsors).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sponsors: %w", err)
	}
	return sponsors, nil
}

func (r *sponsorRepository) GetDisplayConfig(ctx context.Context) (*models.DisplayConfig, error) {
	cfg := new(models.DisplayConfig)
	err := r.db.NewSelect().Model(cfg).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Sensible defaults until an operator saves a config row.
			return &models.DisplayConfig{LoopIntervalSeconds: 10}, nil
		}
		return nil, fmt.Errorf("failed to get display config: %w", err)
	}
	return cfg, nil
}
