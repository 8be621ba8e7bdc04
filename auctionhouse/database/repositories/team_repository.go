package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
)

type TeamRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Team, error)
	GetAll(ctx context.Context, auctionID int64) ([]*models.Team, error)
	Create(ctx context.Context, team *models.Team) error
}

type teamRepository struct {
	db *bun.DB
}

func NewTeamRepository(db *bun.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) GetByID(ctx context.Context, id int64) (*models.Team, error) {
	team := new(models.Team)
	err := r.db.NewSelect().
		Model(team).
		Relation("Players").
		Where("t.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return team, nil
}

func (r *teamRepository) GetAll(ctx context.Context, auctionID int64) ([]*models.Team, error) {
	var teams []*models.Team
	err := r.db.NewSelect().
		Model(&teams).
		Relation("Players").
		Where("t.auction_id = ?", auctionID).
		Order("t.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	return teams, nil
}

func (r *teamRepository) Create(ctx context.Context, team *models.Team) error {
	team.CreatedAt = time.Now()
	team.UpdatedAt = time.Now()
	if team.Budget == 0 {
		team.Budget = team.StartingBudget
	}

	_, err := r.db.NewInsert().Model(team).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}
