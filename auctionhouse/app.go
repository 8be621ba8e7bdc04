package auctionhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database"
	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
	"github.com/me-zabiullakhan/smsports/auctionhouse/database/repositories"
	"github.com/me-zabiullakhan/smsports/auctionhouse/engine"
	"github.com/me-zabiullakhan/smsports/auctionhouse/services"
	"github.com/me-zabiullakhan/smsports/auctionhouse/session"
	"github.com/me-zabiullakhan/smsports/auctionhouse/stream"
)

const (
	defaultSessionTTL  = 12 * time.Hour
	defaultMaxSessions = 4096
	streamBufferSize   = 128
)

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

// App owns every long-lived component and wires them together.
type App struct {
	Cfg     Config
	Version string
	Commit  string

	DB                 *database.DB
	AuctionRepository  repositories.AuctionRepository
	TeamRepository     repositories.TeamRepository
	PlayerRepository   repositories.PlayerRepository
	CategoryRepository repositories.CategoryRepository
	SponsorRepository  repositories.SponsorRepository

	Hub      *stream.Hub
	Sessions *session.Store
	Pool     *services.PoolService
	Engine   *engine.Engine
}

// Setup connects to Postgres, runs schema initialization, seeds the
// auction row if this is a fresh database and builds the engine.
func (a *App) Setup(ctx context.Context) error {
	db, err := database.New(ctx, a.Cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = db

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := db.InitializeSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	bunDB := db.BunDB()
	a.AuctionRepository = repositories.NewAuctionRepository(bunDB)
	a.TeamRepository = repositories.NewTeamRepository(bunDB)
	a.PlayerRepository = repositories.NewPlayerRepository(bunDB)
	a.CategoryRepository = repositories.NewCategoryRepository(bunDB)
	a.SponsorRepository = repositories.NewSponsorRepository(bunDB)

	auction, err := a.ensureAuction(ctx)
	if err != nil {
		return err
	}

	ttl := a.Cfg.Auction.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	maxSessions := a.Cfg.Auction.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	sessions, err := session.NewStore(maxSessions, ttl)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	a.Sessions = sessions

	a.Hub = stream.NewHub(streamBufferSize)
	a.Pool = services.NewPoolService(a.PlayerRepository, auction.ID)
	a.Engine = engine.New(bunDB, a.Hub, engine.Config{
		AuctionID:    auction.ID,
		TimerSeconds: a.Cfg.Auction.TimerSeconds,
	})

	if err := a.Engine.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover auction state: %w", err)
	}

	slog.Info("Auction app ready",
		slog.String("version", a.Version),
		slog.String("commit", a.Commit),
		slog.Int64("auction_id", auction.ID),
		slog.String("auction", auction.Name))
	return nil
}

func (a *App) ensureAuction(ctx context.Context) (*models.Auction, error) {
	auction, err := a.AuctionRepository.GetFirst(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load auction: %w", err)
	}
	if auction != nil {
		return auction, nil
	}

	auction = &models.Auction{
		Name:         "Season Auction",
		TimerSeconds: a.Cfg.Auction.TimerSeconds,
	}
	if err := a.AuctionRepository.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to seed auction: %w", err)
	}
	slog.Info("Seeded new auction", slog.Int64("auction_id", auction.ID))
	return auction, nil
}

func (a *App) Close() {
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
	slog.Info("Auction app shut down")
}
