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

type CategoryRepository interface {
	GetAll(ctx context.Context, auctionID int64) ([]*models.Category, error)
	GetByName(ctx context.Context, auctionID int64, name string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
}

type categoryRepository struct {
	db *bun.DB
}

func NewCategoryRepository(db *bun.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetAll(ctx context.Context, auctionID int64) ([]*models.Category, error) {
	var categories []*models.Category
	err := r.db.NewSelect().
		Model(&categories).
		Where("auction_id = ?", auctionID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}

func (r *categoryRepository) GetByName(ctx context.Context, auctionID int64, name string) (*models.Category, error) {
	category := new(models.Category)
	err := r.db.NewSelect().
		Model(category).
		Where("auction_id = ? AND name = ?", auctionID, name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category %q: %w", name, err)
	}
	return category, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	category.CreatedAt = time.Now()
	category.UpdatedAt = time.Now()

	_, err := r.db.NewInsert().Model(category).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}
