package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
	"github.com/me-zabiullakhan/smsports/auctionhouse/logger"
	"github.com/me-zabiullakhan/smsports/auctionhouse/session"
	"github.com/me-zabiullakhan/smsports/auctionhouse/stream"
)

const (
	DefaultTimerSeconds = 10
	maxBidAttempts      = 3
	bidRetryBackoff     = 25 * time.Millisecond
)

// errBidConflict is internal to the optimistic bid path: the guarded update
// matched zero rows because another bid landed between read and write.
var errBidConflict = errors.New("bid conflict")

type Config struct {
	AuctionID    int64
	TimerSeconds int
}

// Engine is the authoritative state machine for one auction. All commands
// enter here; accepted state changes are persisted through bun and
// re-emitted on the hub for viewers.
type Engine struct {
	db          *bun.DB
	hub         *stream.Hub
	coordinator *Coordinator
	cfg         Config

	// In-memory mirror of the countdown. The ticker decrements it for
	// display only; no state transition is timer-driven.
	mu        sync.Mutex
	timer     int
	live      bool
	biddingOn bool
}

func New(db *bun.DB, hub *stream.Hub, cfg Config) *Engine {
	if cfg.TimerSeconds <= 0 {
		cfg.TimerSeconds = DefaultTimerSeconds
	}
	return &Engine{
		db:          db,
		hub:         hub,
		coordinator: NewCoordinator(db),
		cfg:         cfg,
	}
}

// AuctionID returns the identifier of the auction this engine drives.
func (e *Engine) AuctionID() int64 {
	return e.cfg.AuctionID
}

// Recover reloads the persisted auction into the engine after a restart
// and replays a snapshot for late subscribers.
func (e *Engine) Recover(ctx context.Context) error {
	a, err := e.getAuction(ctx, e.db)
	if err != nil {
		return fmt.Errorf("failed to recover auction state: %w", err)
	}

	e.mu.Lock()
	e.timer = a.TimerSeconds
	e.live = a.Status == models.AuctionStatusInProgress
	e.biddingOn = a.BiddingStatus == models.BiddingOn
	e.mu.Unlock()

	e.hub.Publish(stream.CollectionAuction, stream.KindSnapshot, a)
	slog.Info("Auction state recovered",
		slog.Int64("auction_id", a.ID),
		slog.String("status", string(a.Status)))
	return nil
}

// Run drives the display countdown. It is deliberately decoupled from bid
// arbitration; expiry never sells or passes a lot, the auctioneer does.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	e.mu.Lock()
	if !e.live || !e.biddingOn || e.timer <= 0 {
		e.mu.Unlock()
		return
	}
	e.timer--
	remaining := e.timer
	e.mu.Unlock()

	e.hub.Publish(stream.CollectionAuction, stream.KindTick, map[string]any{
		"timerSeconds": remaining,
	})
}

// StartLot puts a lot under the hammer. With lotID 0 it picks uniformly at
// random from the available pool and fails with ErrNoLotsRemaining when the
// pool is empty. Valid from any state except an in-progress lot or a
// finished auction.
func (e *Engine) StartLot(ctx context.Context, sess *session.Session, lotID int64) (bool, error) {
	if !sess.CanManage() {
		return false, ErrForbidden
	}

	var started *models.Player
	err := e.coordinator.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
		a, err := e.lockAuction(ctx, tx)
		if err != nil {
			return err
		}
		if a.Status == models.AuctionStatusInProgress {
			return fmt.Errorf("a lot is already in progress")
		}
		if a.Status == models.AuctionStatusFinished {
			return ErrAuctionFinished
		}

		lot := new(models.Player)
		q := tx.NewSelect().
			Model(lot).
			Where("auction_id = ? AND status = ?", a.ID, models.PlayerStatusAvailable)
		if lotID != 0 {
			q = q.Where("id = ?", lotID)
		} else {
			q = q.OrderExpr("random()").Limit(1)
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				if lotID != 0 {
					return &NotFoundError{Entity: "player", ID: lotID}
				}
				return ErrNoLotsRemaining
			}
			return fmt.Errorf("failed to pick lot: %w", err)
		}

		_, err = tx.NewUpdate().
			Model((*models.Auction)(nil)).
			Set("current_player_id = ?", lot.ID).
			Set("current_bid = 0").
			Set("highest_bidder_id = NULL").
			Set("highest_bidder_name = ''").
			Set("timer_seconds = ?", e.cfg.TimerSeconds).
			Set("status = ?", models.AuctionStatusInProgress).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", a.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to start lot: %w", err)
		}

		if err := appendLog(ctx, tx, a.ID, models.LogTypeSystem,
			fmt.Sprintf("%s (%s) is up for auction at base price %d", lot.Name, lot.Category, lot.BasePrice)); err != nil {
			return err
		}

		started = lot
		return nil
	})
	if err != nil {
		return false, err
	}

	e.setLive(true, e.cfg.TimerSeconds)
	e.publishAuction(ctx)
	slog.Info("Lot started",
		slog.Int64("player_id", started.ID),
		slog.String("player", started.Name))
	return true, nil
}

// PlaceBid arbitrates a candidate bid. The write is a conditional update
// guarded on the current bid read in the same transaction, so of two
// near-simultaneous bids only one lands and the other revalidates against
// the fresh state; last-write-wins is never possible.
func (e *Engine) PlaceBid(ctx context.Context, sess *session.Session, teamID, amount int64) error {
	if !sess.CanBidFor(teamID) {
		return ErrForbidden
	}

	for attempt := 0; attempt < maxBidAttempts; attempt++ {
		err := e.tryPlaceBid(ctx, teamID, amount)
		if errors.Is(err, errBidConflict) {
			time.Sleep(bidRetryBackoff << attempt)
			continue
		}
		if err != nil {
			return err
		}

		e.setLive(true, e.cfg.TimerSeconds)
		e.publishAuction(ctx)
		return nil
	}
	return ErrBusy
}

func (e *Engine) tryPlaceBid(ctx context.Context, teamID, amount int64) error {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := e.getAuction(ctx, tx)
	if err != nil {
		return err
	}
	if a.Status != models.AuctionStatusInProgress || a.CurrentPlayerID == 0 {
		return ErrNoLiveLot
	}

	lot := new(models.Player)
	if err := tx.NewSelect().Model(lot).Where("id = ?", a.CurrentPlayerID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "player", ID: a.CurrentPlayerID}
		}
		return fmt.Errorf("failed to get lot: %w", err)
	}

	team := new(models.Team)
	err = tx.NewSelect().
		Model(team).
		Relation("Players").
		Where("t.id = ?", teamID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Entity: "team", ID: teamID}
		}
		return fmt.Errorf("failed to get team: %w", err)
	}

	categories, err := e.getCategories(ctx, tx, a.ID)
	if err != nil {
		return err
	}

	if err := ValidateBid(BidContext{
		Auction:    a,
		Lot:        lot,
		Team:       team,
		Categories: categories,
	}, amount); err != nil {
		logger.LogBid(lot.Name, team.Name, amount, err)
		return err
	}

	// The guard on current_bid is what makes concurrent bids safe: if
	// another bid committed since our read, zero rows match and the caller
	// revalidates from scratch.
	res, err := tx.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("current_bid = ?", amount).
		Set("highest_bidder_id = ?", team.ID).
		Set("highest_bidder_name = ?", team.Name).
		Set("timer_seconds = ?", e.cfg.TimerSeconds).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND current_bid = ?", a.ID, a.CurrentBid).
		Where("status = ? AND bidding_status = ?", models.AuctionStatusInProgress, models.BiddingOn).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update bid: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return errBidConflict
	}

	if err := appendLog(ctx, tx, a.ID, models.LogTypeBid,
		fmt.Sprintf("%s bid %d for %s", team.Name, amount, lot.Name)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bid: %w", err)
	}

	logger.LogBid(lot.Name, team.Name, amount, nil)
	return nil
}

// SellLot hammers the current lot down. Winner and price default to the
// highest bidder and current bid; explicit overrides let the auctioneer
// record walk-up deals. The sale is guarded on the bid it was resolved
// from, so a bid landing between the read and the hammer forces a re-read
// against the fresh state rather than being overwritten.
func (e *Engine) SellLot(ctx context.Context, sess *session.Session, teamID, price int64) error {
	if !sess.CanManage() {
		return ErrForbidden
	}

	for attempt := 0; attempt < maxBidAttempts; attempt++ {
		a, err := e.getAuction(ctx, e.db)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusInProgress || a.CurrentPlayerID == 0 {
			return ErrNoLiveLot
		}

		winner, hammer := teamID, price
		if winner == 0 {
			winner = a.HighestBidderID
		}
		if winner == 0 {
			return ErrNoWinner
		}
		if hammer == 0 {
			hammer = a.CurrentBid
		}

		err = e.coordinator.Sell(ctx, a.ID, a.CurrentPlayerID, winner, hammer, a.CurrentBid)
		if errors.Is(err, errBidConflict) {
			time.Sleep(bidRetryBackoff << attempt)
			continue
		}
		if err != nil {
			return err
		}

		e.setLive(false, 0)
		e.publishAuction(ctx)
		e.publishTeam(ctx, winner)
		e.publishPlayer(ctx, a.CurrentPlayerID)
		return nil
	}
	return ErrBusy
}

// PassLot marks the current lot unsold and parks the auction in the
// unsold resolution state until the next lot starts.
func (e *Engine) PassLot(ctx context.Context, sess *session.Session) error {
	if !sess.CanManage() {
		return ErrForbidden
	}

	var lotID int64
	err := e.coordinator.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
		a, err := e.lockAuction(ctx, tx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusInProgress || a.CurrentPlayerID == 0 {
			return ErrNoLiveLot
		}
		lotID = a.CurrentPlayerID

		lot := new(models.Player)
		if err := tx.NewSelect().Model(lot).Where("id = ?", lotID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &NotFoundError{Entity: "player", ID: lotID}
			}
			return fmt.Errorf("failed to get lot: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*models.Player)(nil)).
			Set("status = ?", models.PlayerStatusUnsold).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", lotID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to mark player unsold: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*models.Auction)(nil)).
			Set("status = ?", models.AuctionStatusUnsold).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", a.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to update auction: %w", err)
		}

		return appendLog(ctx, tx, a.ID, models.LogTypeUnsold,
			fmt.Sprintf("%s went unsold", lot.Name))
	})
	if err != nil {
		return err
	}

	e.setLive(false, 0)
	e.publishAuction(ctx)
	e.publishPlayer(ctx, lotID)
	return nil
}

// UndoLotSelection cancels a just-started lot before the hammer falls,
// returning the auction to not-started. Valid from any state but finished.
func (e *Engine) UndoLotSelection(ctx context.Context, sess *session.Session) error {
	if !sess.CanManage() {
		return ErrForbidden
	}

	err := e.coordinator.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
		a, err := e.lockAuction(ctx, tx)
		if err != nil {
			return err
		}
		if a.Status == models.AuctionStatusFinished {
			return ErrAuctionFinished
		}

		if _, err := tx.NewUpdate().
			Model((*models.Auction)(nil)).
			Set("current_player_id = NULL").
			Set("current_bid = 0").
			Set("highest_bidder_id = NULL").
			Set("highest_bidder_name = ''").
			Set("status = ?", models.AuctionStatusNotStarted).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", a.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to undo lot selection: %w", err)
		}
		return appendLog(ctx, tx, a.ID, models.LogTypeSystem, "lot selection undone")
	})
	if err != nil {
		return err
	}

	e.setLive(false, 0)
	e.publishAuction(ctx)
	return nil
}

// ResetCurrentLot restarts bidding on the same lot: bid and bidder are
// cleared and the timer refilled.
func (e *Engine) ResetCurrentLot(ctx context.Context, sess *session.Session) error {
	if !sess.CanManage() {
		return ErrForbidden
	}

	err := e.coordinator.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
		a, err := e.lockAuction(ctx, tx)
		if err != nil {
			return err
		}
		if a.Status != models.AuctionStatusInProgress || a.CurrentPlayerID == 0 {
			return ErrNoLiveLot
		}

		if _, err := tx.NewUpdate().
			Model((*models.Auction)(nil)).
			Set("current_bid = 0").
			Set("highest_bidder_id = NULL").
			Set("highest_bidder_name = ''").
			Set("timer_seconds = ?", e.cfg.TimerSeconds).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", a.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to reset current lot: %w", err)
		}
		return appendLog(ctx, tx, a.ID, models.LogTypeSystem, "bidding restarted on the current lot")
	})
	if err != nil {
		return err
	}

	e.setLive(true, e.cfg.TimerSeconds)
	e.publishAuction(ctx)
	return nil
}

// EndAuction is terminal: only a full reset revives the auction afterwards.
func (e *Engine) EndAuction(ctx context.Context, sess *session.Session) error {
	if !sess.CanManage() {
		return ErrForbidden
	}

	err := e.coordinator.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
		a, err := e.lockAuction(ctx, tx)
		if err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*models.Auction)(nil)).
			Set("status = ?", models.AuctionStatusFinished).
			Set("current_player_id = NULL").
			Set("updated_at = ?", time.Now()).
			Where("id = ?", a.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to end auction: %w", err)
		}
		return appendLog(ctx, tx, a.ID, models.LogTypeSystem, "auction finished")
	})
	if err != nil {
		return err
	}

	e.setLive(false, 0)
	e.publishAuction(ctx)
	return nil
}

// SetBiddingStatus pauses or resumes bid acceptance without touching the
// lot lifecycle.
func (e *Engine) SetBiddingStatus(ctx context.Context, sess *session.Session, status models.BiddingStatus) error {
	if !sess.CanManage() {
		return ErrForbidden
	}
	if status != models.BiddingOn && status != models.BiddingPaused {
		return fmt.Errorf("invalid bidding status %q", status)
	}

	_, err := e.db.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("bidding_status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", e.cfg.AuctionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set bidding status: %w", err)
	}

	e.mu.Lock()
	e.biddingOn = status == models.BiddingOn
	e.mu.Unlock()

	e.publishAuction(ctx)
	return nil
}

// CorrectSale re-records or reverses a completed sale. See the coordinator
// for the atomicity contract.
func (e *Engine) CorrectSale(ctx context.Context, sess *session.Session, playerID, newTeamID, newPrice int64) error {
	if !sess.CanManage() {
		return ErrForbidden
	}

	prevTeamID, err := e.coordinator.CorrectSale(ctx, e.cfg.AuctionID, playerID, newTeamID, newPrice)
	if err != nil {
		return err
	}

	e.publishPlayer(ctx, playerID)
	if prevTeamID != 0 {
		e.publishTeam(ctx, prevTeamID)
	}
	if newTeamID != 0 {
		e.publishTeam(ctx, newTeamID)
	}
	return nil
}

// ResetUnsoldPlayers returns every unsold player to the available pool.
func (e *Engine) ResetUnsoldPlayers(ctx context.Context, sess *session.Session) error {
	if !sess.CanManage() {
		return ErrForbidden
	}
	if err := e.coordinator.ResetUnsold(ctx, e.cfg.AuctionID); err != nil {
		return err
	}
	e.hub.Publish(stream.CollectionPlayers, stream.KindSnapshot, nil)
	return nil
}

// ResetAuction wipes every outcome and restores starting purses. The
// lifecycle fields flip first in their own transaction, then rosters are
// reconciled in batches, so a crash mid-reset is recoverable rather than
// corrupting.
func (e *Engine) ResetAuction(ctx context.Context, sess *session.Session) error {
	if !sess.CanManage() {
		return ErrForbidden
	}

	if err := e.coordinator.ResetAuction(ctx, e.cfg.AuctionID, e.cfg.TimerSeconds); err != nil {
		return err
	}

	e.setLive(false, e.cfg.TimerSeconds)
	e.mu.Lock()
	e.biddingOn = true
	e.mu.Unlock()

	e.publishAuction(ctx)
	e.hub.Publish(stream.CollectionTeams, stream.KindSnapshot, nil)
	e.hub.Publish(stream.CollectionPlayers, stream.KindSnapshot, nil)
	return nil
}

// NextLegalBid exposes the resolver output for display. Clients can derive
// the same value locally; this read exists for dumb viewers.
func (e *Engine) NextLegalBid(ctx context.Context) (int64, error) {
	a, err := e.getAuction(ctx, e.db)
	if err != nil {
		return 0, err
	}
	if a.CurrentPlayerID == 0 {
		return 0, ErrNoLiveLot
	}

	lot := new(models.Player)
	if err := e.db.NewSelect().Model(lot).Where("id = ?", a.CurrentPlayerID).Scan(ctx); err != nil {
		return 0, fmt.Errorf("failed to get lot: %w", err)
	}

	var catSlabs []models.BidSlab
	cat := new(models.Category)
	err = e.db.NewSelect().
		Model(cat).
		Where("auction_id = ? AND name = ?", a.ID, lot.Category).
		Scan(ctx)
	if err == nil {
		catSlabs = cat.Slabs
	} else if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to get category: %w", err)
	}

	return NextBid(a.CurrentBid, lot.BasePrice, catSlabs, a.BidSlabs, a.DefaultIncrement), nil
}

func (e *Engine) setLive(live bool, timer int) {
	e.mu.Lock()
	e.live = live
	e.timer = timer
	e.mu.Unlock()
}

func (e *Engine) getAuction(ctx context.Context, db bun.IDB) (*models.Auction, error) {
	a := new(models.Auction)
	err := db.NewSelect().Model(a).Where("id = ?", e.cfg.AuctionID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "auction", ID: e.cfg.AuctionID}
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

func (e *Engine) lockAuction(ctx context.Context, tx bun.Tx) (*models.Auction, error) {
	a := new(models.Auction)
	err := tx.NewSelect().Model(a).Where("id = ?", e.cfg.AuctionID).For("UPDATE").Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "auction", ID: e.cfg.AuctionID}
		}
		return nil, fmt.Errorf("failed to lock auction: %w", err)
	}
	return a, nil
}

func (e *Engine) getCategories(ctx context.Context, tx bun.Tx, auctionID int64) ([]*models.Category, error) {
	var categories []*models.Category
	err := tx.NewSelect().
		Model(&categories).
		Where("auction_id = ?", auctionID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}

func (e *Engine) publishAuction(ctx context.Context) {
	a, err := e.getAuction(ctx, e.db)
	if err != nil {
		slog.Error("Failed to publish auction update", slog.Any("error", err))
		return
	}
	e.hub.Publish(stream.CollectionAuction, stream.KindUpdate, a)
}

func (e *Engine) publishTeam(ctx context.Context, teamID int64) {
	team := new(models.Team)
	err := e.db.NewSelect().Model(team).Relation("Players").Where("t.id = ?", teamID).Scan(ctx)
	if err != nil {
		slog.Error("Failed to publish team update",
			slog.Int64("team_id", teamID),
			slog.Any("error", err))
		return
	}
	e.hub.Publish(stream.CollectionTeams, stream.KindUpdate, team)
}

func (e *Engine) publishPlayer(ctx context.Context, playerID int64) {
	player := new(models.Player)
	err := e.db.NewSelect().Model(player).Where("id = ?", playerID).Scan(ctx)
	if err != nil {
		slog.Error("Failed to publish player update",
			slog.Int64("player_id", playerID),
			slog.Any("error", err))
		return
	}
	e.hub.Publish(stream.CollectionPlayers, stream.KindUpdate, player)
}

func appendLog(ctx context.Context, tx bun.Tx, auctionID int64, logType models.LogType, message string) error {
	_, err := tx.NewInsert().
		Model(&models.AuctionLog{
			AuctionID: auctionID,
			Type:      logType,
			Message:   message,
			CreatedAt: time.Now(),
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append auction log: %w", err)
	}
	return nil
}
