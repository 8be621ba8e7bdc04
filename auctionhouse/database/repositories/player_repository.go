package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
)

type PlayerRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Player, error)
	GetAll(ctx context.Context, auctionID int64) ([]*models.Player, error)
	GetByStatus(ctx context.Context, auctionID int64, status models.PlayerStatus) ([]*models.Player, error)
	Create(ctx context.Context, player *models.Player) error
	CreateBatch(ctx context.Context, players []*models.Player) error
}

type playerRepository struct {
	db *bun.DB
}

func NewPlayerRepository(db *bun.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) GetByID(ctx context.Context, id int64) (*models.Player, error) {
	player := new(models.Player)
	err := r.db.NewSelect().Model(player).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return player, nil
}

func (r *playerRepository) GetAll(ctx context.Context, auctionID int64) ([]*models.Player, error) {
	var players []*models.Player
	err := r.db.NewSelect().
		Model(&players).
		Where("auction_id = ?", auctionID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	return players, nil
}

func (r *playerRepository) GetByStatus(ctx context.Context, auctionID int64, status models.PlayerStatus) ([]*models.Player, error) {
	var players []*models.Player
	err := r.db.NewSelect().
		Model(&players).
		Where("auction_id = ? AND status = ?", auctionID, status).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get players by status: %w", err)
	}
	return players, nil
}

func (r *playerRepository) Create(ctx context.Context, player *models.Player) error {
	player.CreatedAt = time.Now()
	player.UpdatedAt = time.Now()
	if player.Status == "" {
		player.Status = models.PlayerStatusAvailable
	}

	_, err := r.db.NewInsert().Model(player).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func (r *playerRepository) CreateBatch(ctx context.Context, players []*models.Player) error {
	if len(players) == 0 {
		return nil
	}
	now := time.Now()
	for _, p := range players {
		p.CreatedAt = now
		p.UpdatedAt = now
		if p.Status == "" {
			p.Status = models.PlayerStatusAvailable
		}
	}

	_, err := r.db.NewInsert().Model(&players).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create players: %w", err)
	}
	return nil
}
