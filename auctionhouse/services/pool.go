package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
	"github.com/me-zabiullakhan/smsports/auctionhouse/database/repositories"
)

// playerSearchItems implements fuzzy.Source for player searching.
type playerSearchItems []playerSearchItem

type playerSearchItem struct {
	Player *models.Player
	Name   string
}

func (items playerSearchItems) Len() int {
	return len(items)
}

func (items playerSearchItems) String(i int) string {
	return items[i].Name
}

// PoolService answers read-only questions about the player pool: who is
// still up for auction, how far along the auction is, and name lookups
// for operators typing partial names.
type PoolService struct {
	players   repositories.PlayerRepository
	auctionID int64
}

func NewPoolService(players repositories.PlayerRepository, auctionID int64) *PoolService {
	return &PoolService{players: players, auctionID: auctionID}
}

// UnsoldPool returns every player still eligible for a lot.
func (s *PoolService) UnsoldPool(ctx context.Context) ([]*models.Player, error) {
	pool, err := s.players.GetByStatus(ctx, s.auctionID, models.PlayerStatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to load unsold pool: %w", err)
	}
	return pool, nil
}

// CurrentLotIndex reports how many lots have been decided and the total
// pool size, for "lot 37 of 120" style display.
func (s *PoolService) CurrentLotIndex(ctx context.Context) (decided int, total int, err error) {
	all, err := s.players.GetAll(ctx, s.auctionID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count lots: %w", err)
	}
	for _, p := range all {
		if p.Status != models.PlayerStatusAvailable {
			decided++
		}
	}
	return decided, len(all), nil
}

// SearchPlayers performs fuzzy name matching over the full pool. An
// empty query returns every player.
func (s *PoolService) SearchPlayers(ctx context.Context, query string) ([]*models.Player, error) {
	all, err := s.players.GetAll(ctx, s.auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	return SearchPlayers(all, query), nil
}

// SearchPlayers fuzzy matches players by name, best matches first.
func SearchPlayers(players []*models.Player, query string) []*models.Player {
	query = normalizeName(query)
	if query == "" {
		return players
	}

	items := make(playerSearchItems, len(players))
	for i, p := range players {
		items[i] = playerSearchItem{Player: p, Name: normalizeName(p.Name)}
	}

	matches := fuzzy.FindFrom(query, items)
	results := make([]*models.Player, 0, len(matches))
	for _, m := range matches {
		results = append(results, items[m.Index].Player)
	}
	return results
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
