package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/me-zabiullakhan/smsports/auctionhouse"
	"github.com/me-zabiullakhan/smsports/auctionhouse/logger"
	"github.com/me-zabiullakhan/smsports/auctionhouse/server"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := auctionhouse.LoadConfig(*path)
	if err != nil {
		logger.LogError("Failed to load configuration", err)
		os.Exit(-1)
	}

	customHandler := logger.NewHandler(cfg.Log.Level)
	slog.SetDefault(slog.New(customHandler))

	logger.LogSystem("Starting SMSports Auction Engine",
		slog.String("version", version),
		slog.String("commit", commit))

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelSetup()

	app := auctionhouse.New(*cfg, version, commit)
	if err := app.Setup(setupCtx); err != nil {
		logger.LogError("Failed to set up auction app", err)
		os.Exit(-1)
	}
	defer app.Close()

	poolStat := app.DB.GetPool().Stat()
	logger.LogSystem("Database pool ready",
		slog.Int("total_conns", int(poolStat.TotalConns())),
		slog.Int("max_conns", int(poolStat.MaxConns())))

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AdminToken:     cfg.Auction.AdminToken,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		Version:        version,
		Commit:         commit,
	}, server.Deps{
		AuctionID:  app.Engine.AuctionID(),
		Engine:     app.Engine,
		Hub:        app.Hub,
		Sessions:   app.Sessions,
		Pool:       app.Pool,
		Auctions:   app.AuctionRepository,
		Teams:      app.TeamRepository,
		Players:    app.PlayerRepository,
		Categories: app.CategoryRepository,
		Sponsors:   app.SponsorRepository,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Engine.Run(gctx)
	})
	g.Go(func() error {
		return srv.Listen()
	})
	g.Go(func() error {
		<-gctx.Done()

		window := cfg.Auction.ShutdownWindow
		if window <= 0 {
			window = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), window)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.LogError("Auction engine exited with error", err)
		os.Exit(-1)
	}
	logger.LogSystem("Auction engine shutdown complete")
}
