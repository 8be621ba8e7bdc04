// Command seed loads teams, categories, players and sponsors from a TOML
// roster file into the auction database. Existing rows are left alone, so
// it is safe to run against a database that already has an auction seeded.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/me-zabiullakhan/smsports/auctionhouse"
	"github.com/me-zabiullakhan/smsports/auctionhouse/database"
	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
	"github.com/me-zabiullakhan/smsports/auctionhouse/database/repositories"
	"github.com/me-zabiullakhan/smsports/auctionhouse/logger"
)

type rosterFile struct {
	Auction struct {
		Name             string           `toml:"name"`
		TimerSeconds     int              `toml:"timer_seconds"`
		DefaultIncrement int64            `toml:"default_increment"`
		MaxSquadSize     int              `toml:"max_squad_size"`
		BidSlabs         []models.BidSlab `toml:"bid_slabs"`
	} `toml:"auction"`

	Teams []struct {
		Name   string `toml:"name"`
		Budget int64  `toml:"budget"`
	} `toml:"teams"`

	Categories []struct {
		Name       string           `toml:"name"`
		BasePrice  int64            `toml:"base_price"`
		MinPerTeam int              `toml:"min_per_team"`
		MaxPerTeam int              `toml:"max_per_team"`
		Slabs      []models.BidSlab `toml:"slabs"`
	} `toml:"categories"`

	Players []struct {
		Name      string `toml:"name"`
		Category  string `toml:"category"`
		Role      string `toml:"role"`
		BasePrice int64  `toml:"base_price"`
	} `toml:"players"`
}

func main() {
	configPath := flag.String("config", "config.toml", "path to config")
	rosterPath := flag.String("roster", "roster.toml", "path to roster file")
	reset := flag.Bool("reset", false, "truncate all auction tables before seeding")
	flag.Parse()

	slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))

	if err := run(*configPath, *rosterPath, *reset); err != nil {
		slog.Error("Seeding failed", slog.Any("error", err))
		os.Exit(-1)
	}
}

func run(configPath, rosterPath string, reset bool) error {
	cfg, err := auctionhouse.LoadConfig(configPath)
	if err != nil {
		return err
	}

	file, err := os.Open(rosterPath)
	if err != nil {
		return fmt.Errorf("failed to open roster: %w", err)
	}
	defer file.Close()

	var roster rosterFile
	if err := toml.NewDecoder(file).Decode(&roster); err != nil {
		return fmt.Errorf("failed to parse roster: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if reset {
		if err := db.ResetAppTables(ctx); err != nil {
			return fmt.Errorf("failed to reset tables: %w", err)
		}
	}

	bunDB := db.BunDB()
	auctions := repositories.NewAuctionRepository(bunDB)
	teams := repositories.NewTeamRepository(bunDB)
	players := repositories.NewPlayerRepository(bunDB)
	categories := repositories.NewCategoryRepository(bunDB)

	auction, err := auctions.GetFirst(ctx)
	if err != nil {
		return err
	}
	if auction == nil {
		name := roster.Auction.Name
		if name == "" {
			name = "Season Auction"
		}
		auction = &models.Auction{
			Name:             name,
			TimerSeconds:     roster.Auction.TimerSeconds,
			DefaultIncrement: roster.Auction.DefaultIncrement,
			MaxSquadSize:     roster.Auction.MaxSquadSize,
			BidSlabs:         roster.Auction.BidSlabs,
		}
		if err := auctions.Create(ctx, auction); err != nil {
			return err
		}
		slog.Info("Auction created", slog.Int64("auction_id", auction.ID), slog.String("name", auction.Name))
	}

	for _, c := range roster.Categories {
		existing, err := categories.GetByName(ctx, auction.ID, c.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := categories.Create(ctx, &models.Category{
			AuctionID:  auction.ID,
			Name:       c.Name,
			BasePrice:  c.BasePrice,
			MinPerTeam: c.MinPerTeam,
			MaxPerTeam: c.MaxPerTeam,
			Slabs:      c.Slabs,
		}); err != nil {
			return err
		}
	}

	existingTeams, err := teams.GetAll(ctx, auction.ID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existingTeams))
	for _, team := range existingTeams {
		known[team.Name] = true
	}
	for _, team := range roster.Teams {
		if known[team.Name] {
			continue
		}
		if err := teams.Create(ctx, &models.Team{
			AuctionID:      auction.ID,
			Name:           team.Name,
			StartingBudget: team.Budget,
		}); err != nil {
			return err
		}
	}

	existingPlayers, err := players.GetAll(ctx, auction.ID)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existingPlayers))
	for _, p := range existingPlayers {
		seen[p.Name] = true
	}
	batch := make([]*models.Player, 0, len(roster.Players))
	for _, p := range roster.Players {
		if seen[p.Name] {
			continue
		}
		batch = append(batch, &models.Player{
			AuctionID: auction.ID,
			Name:      p.Name,
			Category:  p.Category,
			Role:      p.Role,
			BasePrice: p.BasePrice,
		})
	}
	if len(batch) > 0 {
		if err := players.CreateBatch(ctx, batch); err != nil {
			return err
		}
	}

	slog.Info("Roster seeded",
		slog.Int("teams", len(roster.Teams)),
		slog.Int("categories", len(roster.Categories)),
		slog.Int("players", len(batch)))
	return nil
}
