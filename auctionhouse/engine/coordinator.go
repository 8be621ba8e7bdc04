package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
)

const (
	maxTxAttempts  = 5
	txRetryBackoff = 50 * time.Millisecond
	resetBatchSize = 200
)

// Coordinator performs the cross-entity mutations the state machine cannot
// do alone: sales, corrections and resets touch player, team and auction
// records together and must commit as one unit. runAtomic is its only
// mutation primitive; serialization conflicts are retried here so callers
// never see partial application.
type Coordinator struct {
	db *bun.DB
}

func NewCoordinator(db *bun.DB) *Coordinator {
	return &Coordinator{db: db}
}

func (c *Coordinator) runAtomic(ctx context.Context, fn func(context.Context, bun.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := c.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}

		lastErr = err
		slog.Warn("Transaction conflict, retrying",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
		time.Sleep(txRetryBackoff << attempt)
	}
	return fmt.Errorf("%w: %v", ErrBusy, lastErr)
}

func (c *Coordinator) runOnce(ctx context.Context, fn func(context.Context, bun.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isSerializationFailure matches SQLSTATE 40001 (serialization_failure)
// and 40P01 (deadlock_detected), the two retryable conflict classes.
func isSerializationFailure(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		code := pgErr.Field('C')
		return code == "40001" || code == "40P01"
	}
	return false
}

// Sell commits a sale: the player flips to sold with its price and buyer,
// the buyer's roster gains the player, the budget is debited, a sold log
// entry is appended and the auction enters the sold resolution state. A
// reader can never observe a subset of those effects.
//
// expectedBid is the current bid the caller resolved the winner from. The
// auction update is guarded on it, so a bid that lands between the caller's
// read and the sale surfaces as errBidConflict instead of being overwritten.
func (c *Coordinator) Sell(ctx context.Context, auctionID, playerID, teamID, price, expectedBid int64) error {
	return c.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
		player, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if player.Status == models.PlayerStatusSold {
			return fmt.Errorf("player %s is already sold", player.Name)
		}
		team, err := lockTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}

		if err := debitTeam(ctx, tx, team.ID, price); err != nil {
			return err
		}
		if err := recordSale(ctx, tx, player.ID, team.ID, price); err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*models.Auction)(nil)).
			Set("status = ?", models.AuctionStatusSold).
			Set("current_bid = ?", price).
			Set("highest_bidder_id = ?", team.ID).
			Set("highest_bidder_name = ?", team.Name).
			Set("updated_at = ?", time.Now()).
			Where("id = ? AND status = ? AND current_bid = ?",
				auctionID, models.AuctionStatusInProgress, expectedBid).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update auction: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			fresh := new(models.Auction)
			if err := tx.NewSelect().Model(fresh).Where("id = ?", auctionID).Scan(ctx); err != nil {
				return fmt.Errorf("failed to recheck auction: %w", err)
			}
			if fresh.Status != models.AuctionStatusInProgress {
				return ErrNoLiveLot
			}
			return errBidConflict
		}

		if err := appendLog(ctx, tx, auctionID, models.LogTypeSold,
			fmt.Sprintf("%s sold to %s for %d", player.Name, team.Name, price)); err != nil {
			return err
		}

		slog.Info("Lot sold",
			slog.Int64("player_id", player.ID),
			slog.String("player", player.Name),
			slog.Int64("team_id", team.ID),
			slog.Int64("price", price))
		return nil
	})
}

// CorrectSale fixes an auctioneer error after the hammer: any previous sale
// of the player is reversed (refund, roster detach) and, when newTeamID is
// non-zero, a sale to the new team at newPrice is applied in the same
// transaction. With newTeamID zero the player reverts to available. It
// returns the previous buyer's team ID, if any, so callers can re-publish
// both teams. The live lot cannot be corrected while still in progress.
func (c *Coordinator) CorrectSale(ctx context.Context, auctionID, playerID, newTeamID, newPrice int64) (int64, error) {
	var prevTeamID int64
	err := c.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
		prevTeamID = 0

		a := new(models.Auction)
		if err := tx.NewSelect().Model(a).Where("id = ?", auctionID).For("UPDATE").Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &NotFoundError{Entity: "auction", ID: auctionID}
			}
			return fmt.Errorf("failed to lock auction: %w", err)
		}
		if a.Status == models.AuctionStatusInProgress && a.CurrentPlayerID == playerID {
			return ErrLotInProgress
		}

		player, err := lockPlayer(ctx, tx, playerID)
		if err != nil {
			return err
		}

		if player.Status == models.PlayerStatusSold {
			prevTeam, err := lockTeam(ctx, tx, player.SoldToTeamID)
			if err != nil {
				return err
			}
			prevTeamID = prevTeam.ID

			if _, err := tx.NewUpdate().
				Model((*models.Team)(nil)).
				Set("budget = budget + ?", player.SoldPrice).
				Set("updated_at = ?", time.Now()).
				Where("id = ?", prevTeam.ID).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to refund previous buyer: %w", err)
			}

			if _, err := tx.NewUpdate().
				Model((*models.Player)(nil)).
				Set("status = ?", models.PlayerStatusAvailable).
				Set("sold_price = NULL").
				Set("sold_to_team_id = NULL").
				Set("sold_at = NULL").
				Set("updated_at = ?", time.Now()).
				Where("id = ?", player.ID).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to detach previous sale: %w", err)
			}

			if err := appendLog(ctx, tx, auctionID, models.LogTypeSystem,
				fmt.Sprintf("sale of %s to %s for %d reversed", player.Name, prevTeam.Name, player.SoldPrice)); err != nil {
				return err
			}
		}

		if newTeamID == 0 {
			return nil
		}

		newTeam, err := lockTeam(ctx, tx, newTeamID)
		if err != nil {
			return err
		}
		if err := debitTeam(ctx, tx, newTeam.ID, newPrice); err != nil {
			return err
		}
		if err := recordSale(ctx, tx, player.ID, newTeam.ID, newPrice); err != nil {
			return err
		}
		return appendLog(ctx, tx, auctionID, models.LogTypeSold,
			fmt.Sprintf("%s sold to %s for %d (correction)", player.Name, newTeam.Name, newPrice))
	})
	if err != nil {
		return 0, err
	}
	return prevTeamID, nil
}

// ResetUnsold returns every unsold player to the pool. Running it twice is
// a no-op the second time.
func (c *Coordinator) ResetUnsold(ctx context.Context, auctionID int64) error {
	return c.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Player)(nil)).
			Set("status = ?", models.PlayerStatusAvailable).
			Set("updated_at = ?", time.Now()).
			Where("auction_id = ? AND status = ?", auctionID, models.PlayerStatusUnsold).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset unsold players: %w", err)
		}

		if affected, _ := res.RowsAffected(); affected > 0 {
			return appendLog(ctx, tx, auctionID, models.LogTypeSystem,
				fmt.Sprintf("%d unsold players returned to the pool", affected))
		}
		return nil
	})
}

// ResetAuction wipes every outcome. The auction-level fields flip once, up
// front, in their own transaction; rosters and purses are then reconciled
// in bounded batches. A crash mid-way leaves a not-started auction with a
// partially reset roster, which a rerun completes — never a lifecycle
// field disagreeing with itself.
func (c *Coordinator) ResetAuction(ctx context.Context, auctionID int64, timerSeconds int) error {
	err := c.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.Auction)(nil)).
			Set("status = ?", models.AuctionStatusNotStarted).
			Set("bidding_status = ?", models.BiddingOn).
			Set("current_player_id = NULL").
			Set("current_bid = 0").
			Set("highest_bidder_id = NULL").
			Set("highest_bidder_name = ''").
			Set("timer_seconds = ?", timerSeconds).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", auctionID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to reset auction record: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*models.AuctionLog)(nil)).
			Where("auction_id = ?", auctionID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear auction log: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for {
		var affected int64
		err := c.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
			batch := tx.NewSelect().
				Model((*models.Player)(nil)).
				Column("id").
				Where("auction_id = ? AND (status != ? OR sold_to_team_id IS NOT NULL)",
					auctionID, models.PlayerStatusAvailable).
				Limit(resetBatchSize)

			res, err := tx.NewUpdate().
				Model((*models.Player)(nil)).
				Set("status = ?", models.PlayerStatusAvailable).
				Set("sold_price = NULL").
				Set("sold_to_team_id = NULL").
				Set("sold_at = NULL").
				Set("updated_at = ?", time.Now()).
				Where("id IN (?)", batch).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to reset player batch: %w", err)
			}
			affected, _ = res.RowsAffected()
			return nil
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			break
		}
		slog.Debug("Reset player batch", slog.Int64("players", affected))
	}

	return c.runAtomic(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.Team)(nil)).
			Set("budget = starting_budget").
			Set("updated_at = ?", time.Now()).
			Where("auction_id = ?", auctionID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to restore team budgets: %w", err)
		}
		return nil
	})
}

func lockPlayer(ctx context.Context, tx bun.Tx, playerID int64) (*models.Player, error) {
	player := new(models.Player)
	err := tx.NewSelect().Model(player).Where("id = ?", playerID).For("UPDATE").Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "player", ID: playerID}
		}
		return nil, fmt.Errorf("failed to lock player: %w", err)
	}
	return player, nil
}

func lockTeam(ctx context.Context, tx bun.Tx, teamID int64) (*models.Team, error) {
	team := new(models.Team)
	err := tx.NewSelect().Model(team).Where("t.id = ?", teamID).For("UPDATE").Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "team", ID: teamID}
		}
		return nil, fmt.Errorf("failed to lock team: %w", err)
	}
	return team, nil
}

// debitTeam moves money out of a purse. The budget >= price guard in the
// WHERE clause is what keeps budgets non-negative under any interleaving.
func debitTeam(ctx context.Context, tx bun.Tx, teamID, price int64) error {
	res, err := tx.NewUpdate().
		Model((*models.Team)(nil)).
		Set("budget = budget - ?", price).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND budget >= ?", teamID, price).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to debit team: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return reject(ReasonInsufficientFunds, "team %d cannot pay %d", teamID, price)
	}
	return nil
}

func recordSale(ctx context.Context, tx bun.Tx, playerID, teamID, price int64) error {
	_, err := tx.NewUpdate().
		Model((*models.Player)(nil)).
		Set("status = ?", models.PlayerStatusSold).
		Set("sold_price = ?", price).
		Set("sold_to_team_id = ?", teamID).
		Set("sold_at = ?", time.Now()).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", playerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record sale on player: %w", err)
	}
	return nil
}
