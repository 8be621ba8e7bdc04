package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database/models"
	"github.com/me-zabiullakhan/smsports/auctionhouse/session"
)

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// --- sessions ---

func (s *Server) handleViewerLogin(c *fiber.Ctx) error {
	var req struct {
		Identity string `json:"identity"`
	}
	_ = c.BodyParser(&req)
	if req.Identity == "" {
		req.Identity = c.IP()
	}
	sess := s.sessions.Issue(req.Identity, session.RoleViewer, 0)
	return sendSuccess(c, sess)
}

func (s *Server) handleAdminLogin(c *fiber.Ctx) error {
	var req struct {
		Identity   string `json:"identity"`
		AccessCode string `json:"accessCode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return sendError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	if s.cfg.AdminToken == "" || req.AccessCode != s.cfg.AdminToken {
		return sendError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "invalid access code")
	}
	if req.Identity == "" {
		req.Identity = "auctioneer"
	}
	sess := s.sessions.Issue(req.Identity, session.RoleAdmin, 0)
	return sendSuccess(c, sess)
}

// handleIssueTeamSession lets an admin mint a token for a team owner,
// typically read out or shown as a QR code at the venue.
func (s *Server) handleIssueTeamSession(c *fiber.Ctx) error {
	var req struct {
		Identity string `json:"identity"`
		TeamID   int64  `json:"teamId"`
	}
	if err := c.BodyParser(&req); err != nil || req.TeamID == 0 {
		return sendError(c, fiber.StatusBadRequest, "BAD_REQUEST", "teamId is required")
	}
	team, err := s.teams.GetByID(c.Context(), req.TeamID)
	if err != nil {
		return err
	}
	if req.Identity == "" {
		req.Identity = team.Name
	}
	sess := s.sessions.Issue(req.Identity, session.RoleTeamOwner, team.ID)
	return sendSuccess(c, sess)
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	if token := bearerToken(c); token != "" {
		s.sessions.Clear(token)
	}
	return sendSuccess(c, nil)
}

// --- reads ---

func (s *Server) handleGetAuction(c *fiber.Ctx) error {
	auction, err := s.auctions.GetByID(c.Context(), s.auctionID)
	if err != nil {
		return err
	}
	return sendSuccess(c, auction)
}

func (s *Server) handleGetLog(c *fiber.Ctx) error {
	limit := c.QueryInt("limit")
	log, err := s.auctions.GetLog(c.Context(), s.auctionID, limit)
	if err != nil {
		return err
	}
	return sendSuccess(c, log)
}

func (s *Server) handleNextBid(c *fiber.Ctx) error {
	next, err := s.engine.NextLegalBid(c.Context())
	if err != nil {
		return err
	}
	return sendSuccess(c, fiber.Map{"nextBid": next})
}

func (s *Server) handleGetTeams(c *fiber.Ctx) error {
	teams, err := s.teams.GetAll(c.Context(), s.auctionID)
	if err != nil {
		return err
	}
	return sendSuccess(c, teams)
}

func (s *Server) handleGetTeam(c *fiber.Ctx) error {
	id, err := parseInt64(c.Params("id"))
	if err != nil {
		return sendError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid team id")
	}
	team, err := s.teams.GetByID(c.Context(), id)
	if err != nil {
		return err
	}
	return sendSuccess(c, team)
}

func (s *Server) handleGetPlayers(c *fiber.Ctx) error {
	if query := c.Query("q"); query != "" {
		players, err := s.pool.SearchPlayers(c.Context(), query)
		if err != nil {
			return err
		}
		return sendSuccess(c, players)
	}
	if status := c.Query("status"); status != "" {
		players, err := s.players.GetByStatus(c.Context(), s.auctionID, models.PlayerStatus(status))
		if err != nil {
			return err
		}
		return sendSuccess(c, players)
	}
	players, err := s.players.GetAll(c.Context(), s.auctionID)
	if err != nil {
		return err
	}
	return sendSuccess(c, players)
}

func (s *Server) handleGetPool(c *fiber.Ctx) error {
	pool, err := s.pool.UnsoldPool(c.Context())
	if err != nil {
		return err
	}
	decided, total, err := s.pool.CurrentLotIndex(c.Context())
	if err != nil {
		return err
	}
	return sendSuccess(c, fiber.Map{
		"players": pool,
		"decided": decided,
		"total":   total,
	})
}

func (s *Server) handleGetCategories(c *fiber.Ctx) error {
	categories, err := s.categories.GetAll(c.Context(), s.auctionID)
	if err != nil {
		return err
	}
	return sendSuccess(c, categories)
}

func (s *Server) handleGetSponsors(c *fiber.Ctx) error {
	sponsors, err := s.sponsors.GetAll(c.Context())
	if err != nil {
		return err
	}
	return sendSuccess(c, sponsors)
}

func (s *Server) handleGetDisplayConfig(c *fiber.Ctx) error {
	cfg, err := s.sponsors.GetDisplayConfig(c.Context())
	if err != nil {
		return err
	}
	return sendSuccess(c, cfg)
}

// --- commands ---

func (s *Server) handlePlaceBid(c *fiber.Ctx) error {
	var req struct {
		TeamID int64 `json:"teamId"`
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil || req.TeamID == 0 || req.Amount <= 0 {
		return sendError(c, fiber.StatusBadRequest, "BAD_REQUEST", "teamId and amount are required")
	}
	if err := s.engine.PlaceBid(c.Context(), sessionFrom(c), req.TeamID, req.Amount); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}

func (s *Server) handleStartLot(c *fiber.Ctx) error {
	var req struct {
		PlayerID int64 `json:"playerId"`
	}
	_ = c.BodyParser(&req)
	if _, err := s.engine.StartLot(c.Context(), sessionFrom(c), req.PlayerID); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}

func (s *Server) handleSellLot(c *fiber.Ctx) error {
	var req struct {
		TeamID int64 `json:"teamId"`
		Price  int64 `json:"price"`
	}
	_ = c.BodyParser(&req)
	if err := s.engine.SellLot(c.Context(), sessionFrom(c), req.TeamID, req.Price); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}

func (s *Server) handlePassLot(c *fiber.Ctx) error {
	if err := s.engine.PassLot(c.Context(), sessionFrom(c)); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}

func (s *Server) handleUndoLot(c *fiber.Ctx) error {
	if err := s.engine.UndoLotSelection(c.Context(), sessionFrom(c)); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}

func (s *Server) handleResetLot(c *fiber.Ctx) error {
	if err := s.engine.ResetCurrentLot(c.Context(), sessionFrom(c)); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}

func (s *Server) handleSetBidding(c *fiber.Ctx) error {
	var req struct {
		Paused bool `json:"paused"`
	}
	if err := c.BodyParser(&req); err != nil {
		return sendError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
	}
	status := models.BiddingOn
	if req.Paused {
		status = models.BiddingPaused
	}
	if err := s.engine.SetBiddingStatus(c.Context(), sessionFrom(c), status); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}

func (s *Server) handleEndAuction(c *fiber.Ctx) error {
	if err := s.engine.EndAuction(c.Context(), sessionFrom(c)); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}

func (s *Server) handleResetAuction(c *fiber.Ctx) error {
	if err := s.engine.ResetAuction(c.Context(), sessionFrom(c)); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}

func (s *Server) handleResetUnsold(c *fiber.Ctx) error {
	if err := s.engine.ResetUnsoldPlayers(c.Context(), sessionFrom(c)); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}

func (s *Server) handleCorrectSale(c *fiber.Ctx) error {
	var req struct {
		PlayerID int64 `json:"playerId"`
		TeamID   int64 `json:"teamId"`
		Price    int64 `json:"price"`
	}
	if err := c.BodyParser(&req); err != nil || req.PlayerID == 0 {
		return sendError(c, fiber.StatusBadRequest, "BAD_REQUEST", "playerId is required")
	}
	if err := s.engine.CorrectSale(c.Context(), sessionFrom(c), req.PlayerID, req.TeamID, req.Price); err != nil {
		return err
	}
	return sendSuccess(c, nil)
}
