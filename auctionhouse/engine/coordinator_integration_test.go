package engine

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
)

// startPostgres boots a throwaway Postgres and returns a bun handle with
// the full schema created.
func startPostgres(t *testing.T) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "could not start postgres container")
	t.Cleanup(func() {
		_ = pgContainer.Terminate(ctx)
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://testuser:testpassword@%s:%s/testdb?sslmode=disable", host, port.Port())
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithInsecure(true)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })

	tables := []any{
		(*models.Auction)(nil),
		(*models.AuctionLog)(nil),
		(*models.Team)(nil),
		(*models.Player)(nil),
		(*models.Category)(nil),
	}
	for _, table := range tables {
		_, err = db.NewCreateTable().Model(table).IfNotExists().Exec(ctx)
		require.NoError(t, err, "could not create table")
	}
	return db
}

type fixture struct {
	auction  *models.Auction
	teams    []*models.Team
	players  []*models.Player
	category *models.Category
}

func seed(t *testing.T, db *bun.DB) *fixture {
	t.Helper()
	ctx := context.Background()

	auction := &models.Auction{
		Name:             "Test Auction",
		Status:           models.AuctionStatusNotStarted,
		BiddingStatus:    models.BiddingOn,
		TimerSeconds:     10,
		DefaultIncrement: 500,
		MaxSquadSize:     11,
	}
	_, err := db.NewInsert().Model(auction).Exec(ctx)
	require.NoError(t, err)

	category := &models.Category{
		AuctionID:  auction.ID,
		Name:       "batsman",
		BasePrice:  2000,
		MinPerTeam: 0,
	}
	_, err = db.NewInsert().Model(category).Exec(ctx)
	require.NoError(t, err)

	teams := []*models.Team{
		{AuctionID: auction.ID, Name: "Strikers", Budget: 100000, StartingBudget: 100000},
		{AuctionID: auction.ID, Name: "Titans", Budget: 50000, StartingBudget: 50000},
	}
	_, err = db.NewInsert().Model(&teams).Exec(ctx)
	require.NoError(t, err)

	players := []*models.Player{
		{AuctionID: auction.ID, Name: "R. Sharma", Category: "batsman", BasePrice: 2000, Status: models.PlayerStatusAvailable},
		{AuctionID: auction.ID, Name: "J. Bumrah", Category: "bowler", BasePrice: 2000, Status: models.PlayerStatusAvailable},
		{AuctionID: auction.ID, Name: "S. Gill", Category: "batsman", BasePrice: 2000, Status: models.PlayerStatusUnsold},
	}
	_, err = db.NewInsert().Model(&players).Exec(ctx)
	require.NoError(t, err)

	return &fixture{auction: auction, teams: teams, players: players, category: category}
}

func putLotInProgress(t *testing.T, db *bun.DB, auctionID, playerID int64) {
	t.Helper()
	_, err := db.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("status = ?", models.AuctionStatusInProgress).
		Set("current_player_id = ?", playerID).
		Where("id = ?", auctionID).
		Exec(context.Background())
	require.NoError(t, err)
}

func reloadTeam(t *testing.T, db *bun.DB, id int64) *models.Team {
	t.Helper()
	team := new(models.Team)
	require.NoError(t, db.NewSelect().Model(team).Where("t.id = ?", id).Scan(context.Background()))
	return team
}

func reloadPlayer(t *testing.T, db *bun.DB, id int64) *models.Player {
	t.Helper()
	player := new(models.Player)
	require.NoError(t, db.NewSelect().Model(player).Where("id = ?", id).Scan(context.Background()))
	return player
}

func TestCoordinatorSell(t *testing.T) {
	db := startPostgres(t)
	f := seed(t, db)
	c := NewCoordinator(db)
	ctx := context.Background()

	lot, buyer := f.players[0], f.teams[0]
	putLotInProgress(t, db, f.auction.ID, lot.ID)

	require.NoError(t, c.Sell(ctx, f.auction.ID, lot.ID, buyer.ID, 30000, 0))

	// Every effect of the sale must be visible together.
	soldPlayer := reloadPlayer(t, db, lot.ID)
	assert.Equal(t, models.PlayerStatusSold, soldPlayer.Status)
	assert.Equal(t, int64(30000), soldPlayer.SoldPrice)
	assert.Equal(t, buyer.ID, soldPlayer.SoldToTeamID)

	assert.Equal(t, int64(70000), reloadTeam(t, db, buyer.ID).Budget)

	a := new(models.Auction)
	require.NoError(t, db.NewSelect().Model(a).Where("id = ?", f.auction.ID).Scan(ctx))
	assert.Equal(t, models.AuctionStatusSold, a.Status)
	assert.Equal(t, buyer.ID, a.HighestBidderID)

	var logs []*models.AuctionLog
	require.NoError(t, db.NewSelect().Model(&logs).Where("auction_id = ?", f.auction.ID).Scan(ctx))
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogTypeSold, logs[0].Type)
}

func TestCoordinatorSellRejectsDoubleSale(t *testing.T) {
	db := startPostgres(t)
	f := seed(t, db)
	c := NewCoordinator(db)
	ctx := context.Background()

	lot := f.players[0]
	putLotInProgress(t, db, f.auction.ID, lot.ID)
	require.NoError(t, c.Sell(ctx, f.auction.ID, lot.ID, f.teams[0].ID, 30000, 0))

	putLotInProgress(t, db, f.auction.ID, lot.ID)
	err := c.Sell(ctx, f.auction.ID, lot.ID, f.teams[1].ID, 5000, 0)
	require.Error(t, err)

	// The losing attempt must not have touched the second team's purse.
	assert.Equal(t, int64(50000), reloadTeam(t, db, f.teams[1].ID).Budget)
}

func TestCoordinatorSellInsufficientFundsRollsBack(t *testing.T) {
	db := startPostgres(t)
	f := seed(t, db)
	c := NewCoordinator(db)
	ctx := context.Background()

	lot, poor := f.players[0], f.teams[1]
	putLotInProgress(t, db, f.auction.ID, lot.ID)

	err := c.Sell(ctx, f.auction.ID, lot.ID, poor.ID, 60000, 0)
	var rejected *BidRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, ReasonInsufficientFunds, rejected.Reason)

	// Nothing committed: player still available, budget untouched.
	assert.Equal(t, models.PlayerStatusAvailable, reloadPlayer(t, db, lot.ID).Status)
	assert.Equal(t, int64(50000), reloadTeam(t, db, poor.ID).Budget)
}

func TestCoordinatorSellWithoutLiveLot(t *testing.T) {
	db := startPostgres(t)
	f := seed(t, db)
	c := NewCoordinator(db)

	err := c.Sell(context.Background(), f.auction.ID, f.players[0].ID, f.teams[0].ID, 30000, 0)
	require.ErrorIs(t, err, ErrNoLiveLot)

	assert.Equal(t, models.PlayerStatusAvailable, reloadPlayer(t, db, f.players[0].ID).Status)
	assert.Equal(t, int64(100000), reloadTeam(t, db, f.teams[0].ID).Budget)
}

// A bid that commits after the caller resolved the winner must not be
// overwritten by the sale; the stale sale is refused and nothing commits.
func TestCoordinatorSellDetectsStaleBid(t *testing.T) {
	db := startPostgres(t)
	f := seed(t, db)
	c := NewCoordinator(db)
	ctx := context.Background()

	lot := f.players[0]
	putLotInProgress(t, db, f.auction.ID, lot.ID)

	// The caller read current_bid = 0; another bid lands before the hammer.
	_, err := db.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("current_bid = 2500").
		Set("highest_bidder_id = ?", f.teams[1].ID).
		Where("id = ?", f.auction.ID).
		Exec(ctx)
	require.NoError(t, err)

	err = c.Sell(ctx, f.auction.ID, lot.ID, f.teams[0].ID, 2000, 0)
	require.ErrorIs(t, err, errBidConflict)

	assert.Equal(t, models.PlayerStatusAvailable, reloadPlayer(t, db, lot.ID).Status)
	assert.Equal(t, int64(100000), reloadTeam(t, db, f.teams[0].ID).Budget)

	a := new(models.Auction)
	require.NoError(t, db.NewSelect().Model(a).Where("id = ?", f.auction.ID).Scan(ctx))
	assert.Equal(t, int64(2500), a.CurrentBid)
	assert.Equal(t, f.teams[1].ID, a.HighestBidderID)
}

func TestCoordinatorCorrectSale(t *testing.T) {
	db := startPostgres(t)
	f := seed(t, db)
	c := NewCoordinator(db)
	ctx := context.Background()

	lot := f.players[0]
	putLotInProgress(t, db, f.auction.ID, lot.ID)
	require.NoError(t, c.Sell(ctx, f.auction.ID, lot.ID, f.teams[0].ID, 30000, 0))

	t.Run("reassign to another team", func(t *testing.T) {
		prevTeamID, err := c.CorrectSale(ctx, f.auction.ID, lot.ID, f.teams[1].ID, 20000)
		require.NoError(t, err)
		assert.Equal(t, f.teams[0].ID, prevTeamID)

		// Seller refunded in full, new buyer debited the corrected price.
		assert.Equal(t, int64(100000), reloadTeam(t, db, f.teams[0].ID).Budget)
		assert.Equal(t, int64(30000), reloadTeam(t, db, f.teams[1].ID).Budget)

		player := reloadPlayer(t, db, lot.ID)
		assert.Equal(t, models.PlayerStatusSold, player.Status)
		assert.Equal(t, f.teams[1].ID, player.SoldToTeamID)
		assert.Equal(t, int64(20000), player.SoldPrice)
	})

	t.Run("revert to pool", func(t *testing.T) {
		prevTeamID, err := c.CorrectSale(ctx, f.auction.ID, lot.ID, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, f.teams[1].ID, prevTeamID)

		assert.Equal(t, int64(50000), reloadTeam(t, db, f.teams[1].ID).Budget)
		player := reloadPlayer(t, db, lot.ID)
		assert.Equal(t, models.PlayerStatusAvailable, player.Status)
		assert.Zero(t, player.SoldToTeamID)
	})
}

func TestCoordinatorCorrectSaleGuardsLiveLot(t *testing.T) {
	db := startPostgres(t)
	f := seed(t, db)
	c := NewCoordinator(db)

	lot := f.players[0]
	putLotInProgress(t, db, f.auction.ID, lot.ID)

	_, err := c.CorrectSale(context.Background(), f.auction.ID, lot.ID, f.teams[0].ID, 10000)
	require.ErrorIs(t, err, ErrLotInProgress)
}

func TestCoordinatorResetUnsold(t *testing.T) {
	db := startPostgres(t)
	f := seed(t, db)
	c := NewCoordinator(db)
	ctx := context.Background()

	require.NoError(t, c.ResetUnsold(ctx, f.auction.ID))
	assert.Equal(t, models.PlayerStatusAvailable, reloadPlayer(t, db, f.players[2].ID).Status)

	// Idempotent: the second run changes nothing and appends no log entry.
	require.NoError(t, c.ResetUnsold(ctx, f.auction.ID))
	count, err := db.NewSelect().Model((*models.AuctionLog)(nil)).
		Where("auction_id = ?", f.auction.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCoordinatorResetAuction(t *testing.T) {
	db := startPostgres(t)
	f := seed(t, db)
	c := NewCoordinator(db)
	ctx := context.Background()

	lot := f.players[0]
	putLotInProgress(t, db, f.auction.ID, lot.ID)
	require.NoError(t, c.Sell(ctx, f.auction.ID, lot.ID, f.teams[0].ID, 30000, 0))

	require.NoError(t, c.ResetAuction(ctx, f.auction.ID, 10))

	a := new(models.Auction)
	require.NoError(t, db.NewSelect().Model(a).Where("id = ?", f.auction.ID).Scan(ctx))
	assert.Equal(t, models.AuctionStatusNotStarted, a.Status)
	assert.Zero(t, a.CurrentPlayerID)
	assert.Zero(t, a.CurrentBid)

	for _, p := range f.players {
		got := reloadPlayer(t, db, p.ID)
		assert.Equal(t, models.PlayerStatusAvailable, got.Status)
		assert.Zero(t, got.SoldToTeamID)
	}
	for _, team := range f.teams {
		got := reloadTeam(t, db, team.ID)
		assert.Equal(t, got.StartingBudget, got.Budget)
	}

	count, err := db.NewSelect().Model((*models.AuctionLog)(nil)).
		Where("auction_id = ?", f.auction.ID).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Running the reset again over clean state is harmless.
	require.NoError(t, c.ResetAuction(ctx, f.auction.ID, 10))
}

// Two sells for the same lot can only land once even when racing; the
// loser fails on the in-progress guard or the sold-player check.
func TestCoordinatorConcurrentSellsLandOnce(t *testing.T) {
	db := startPostgres(t)
	f := seed(t, db)
	c := NewCoordinator(db)
	ctx := context.Background()

	lot := f.players[0]
	putLotInProgress(t, db, f.auction.ID, lot.ID)

	errs := make(chan error, 2)
	for _, teamID := range []int64{f.teams[0].ID, f.teams[1].ID} {
		teamID := teamID
		go func() {
			errs <- c.Sell(ctx, f.auction.ID, lot.ID, teamID, 10000, 0)
		}()
	}

	var failures int
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if err != nil {
				failures++
			}
		case <-time.After(30 * time.Second):
			t.Fatal("timed out waiting for concurrent sells")
		}
	}
	require.Equal(t, 1, failures, "exactly one sale must land")

	player := reloadPlayer(t, db, lot.ID)
	require.Equal(t, models.PlayerStatusSold, player.Status)

	// Only the winner paid.
	total := reloadTeam(t, db, f.teams[0].ID).Budget + reloadTeam(t, db, f.teams[1].ID).Budget
	assert.Equal(t, int64(140000), total)
}
