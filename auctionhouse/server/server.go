package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/repositories"
	"github.com/me-zabiullakhan/smsports/auctionhouse/engine"
	"github.com/me-zabiullakhan/smsports/auctionhouse/services"
	"github.com/me-zabiullakhan/smsports/auctionhouse/session"
	"github.com/me-zabiullakhan/smsports/auctionhouse/stream"
)

type Config struct {
	Addr           string
	AllowedOrigins string
	AdminToken     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Version        string
	Commit         string
}

// Server is the HTTP and websocket surface over the auction engine.
// Commands mutate state through the engine only; reads go straight to the
// repositories.
type Server struct {
	cfg       Config
	app       *fiber.App
	engine    *engine.Engine
	hub       *stream.Hub
	sessions  *session.Store
	pool      *services.PoolService
	auctionID int64

	auctions   repositories.AuctionRepository
	teams      repositories.TeamRepository
	players    repositories.PlayerRepository
	categories repositories.CategoryRepository
	sponsors   repositories.SponsorRepository
}

type Deps struct {
	AuctionID  int64
	Engine     *engine.Engine
	Hub        *stream.Hub
	Sessions   *session.Store
	Pool       *services.PoolService
	Auctions   repositories.AuctionRepository
	Teams      repositories.TeamRepository
	Players    repositories.PlayerRepository
	Categories repositories.CategoryRepository
	Sponsors   repositories.SponsorRepository
}

func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:        cfg,
		auctionID:  deps.AuctionID,
		engine:     deps.Engine,
		hub:        deps.Hub,
		sessions:   deps.Sessions,
		pool:       deps.Pool,
		auctions:   deps.Auctions,
		teams:      deps.Teams,
		players:    deps.Players,
		categories: deps.Categories,
		sponsors:   deps.Sponsors,
	}

	app := fiber.New(fiber.Config{
		AppName:      "SMSports Auction API",
		ServerHeader: "SMSports",
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	origins := cfg.AllowedOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(LoggingMiddleware())

	s.app = app
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)

	api := s.app.Group("/api", s.ResolveSession())

	// Sessions.
	api.Post("/sessions/viewer", s.handleViewerLogin)
	api.Post("/sessions/login", s.handleAdminLogin)
	api.Post("/sessions/team", s.RequireManage(), s.handleIssueTeamSession)
	api.Delete("/sessions", s.handleLogout)

	// Reads.
	api.Get("/auction", s.handleGetAuction)
	api.Get("/auction/log", s.handleGetLog)
	api.Get("/auction/next-bid", s.handleNextBid)
	api.Get("/teams", s.handleGetTeams)
	api.Get("/teams/:id", s.handleGetTeam)
	api.Get("/players", s.handleGetPlayers)
	api.Get("/players/pool", s.handleGetPool)
	api.Get("/categories", s.handleGetCategories)
	api.Get("/sponsors", s.handleGetSponsors)
	api.Get("/display", s.handleGetDisplayConfig)

	// Bidding. Authorization is per-team, enforced by the engine.
	api.Post("/bids", s.RequireSession(), s.handlePlaceBid)

	// Lifecycle commands, admin only.
	admin := api.Group("/auction", s.RequireSession())
	admin.Post("/lots/start", s.handleStartLot)
	admin.Post("/lots/sell", s.handleSellLot)
	admin.Post("/lots/pass", s.handlePassLot)
	admin.Post("/lots/undo", s.handleUndoLot)
	admin.Post("/lots/reset", s.handleResetLot)
	admin.Post("/bidding", s.handleSetBidding)
	admin.Post("/end", s.handleEndAuction)
	admin.Post("/reset", s.handleResetAuction)
	admin.Post("/unsold/reset", s.handleResetUnsold)
	admin.Post("/sales/correct", s.handleCorrectSale)

	// Live feeds.
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/:collection", websocket.New(s.handleStream))
}

func (s *Server) Listen() error {
	slog.Info("Starting auction server", slog.String("address", s.cfg.Addr))
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": s.cfg.Version,
		"commit":  s.cfg.Commit,
	})
}
