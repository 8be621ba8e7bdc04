package server

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/me-zabiullakhan/smsports/auctionhouse/engine"
	"github.com/me-zabiullakhan/smsports/auctionhouse/session"
)

const sessionLocal = "session"

// ResolveSession attaches the caller's session to the request context when
// a valid bearer token is presented. Anonymous requests pass through; the
// engine treats a nil session as an unprivileged viewer.
func (s *Server) ResolveSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Next()
		}
		sess, err := s.sessions.Get(token)
		if err != nil {
			return sendError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired session")
		}
		c.Locals(sessionLocal, sess)
		return c.Next()
	}
}

// RequireSession rejects anonymous requests.
func (s *Server) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sessionFrom(c) == nil {
			return sendError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "session required")
		}
		return c.Next()
	}
}

// RequireManage rejects callers without lifecycle privileges.
func (s *Server) RequireManage() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := sessionFrom(c)
		if !sess.CanManage() {
			return sendError(c, fiber.StatusForbidden, "FORBIDDEN", "admin access required")
		}
		return c.Next()
	}
}

func sessionFrom(c *fiber.Ctx) *session.Session {
	sess, _ := c.Locals(sessionLocal).(*session.Session)
	return sess
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Websocket clients cannot set headers from browsers, so the token is
	// also accepted as a query parameter.
	return c.Query("token")
}

// LoggingMiddleware logs every HTTP request in a structured format.
func LoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		statusCode := c.Response().StatusCode()
		logLevel := slog.LevelInfo
		if statusCode >= 400 && statusCode < 500 {
			logLevel = slog.LevelWarn
		} else if statusCode >= 500 {
			logLevel = slog.LevelError
		}

		logger := slog.With(
			slog.String("type", "http"),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", statusCode),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
		)
		if sess := sessionFrom(c); sess != nil {
			logger = logger.With(
				slog.String("identity", sess.Identity),
				slog.String("role", string(sess.Role)),
			)
		}
		if err != nil {
			logger = logger.With(slog.String("error", err.Error()))
		}

		logger.Log(c.Context(), logLevel, "HTTP request processed")
		return err
	}
}

// errorHandler maps domain errors to HTTP responses. Rejected bids are
// client errors, arbitration conflicts are 409s and everything unexpected
// stays a 500.
func errorHandler(c *fiber.Ctx, err error) error {
	var rejected *engine.BidRejected
	if errors.As(err, &rejected) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"error": fiber.Map{
				"code":    "BID_REJECTED",
				"reason":  rejected.Reason,
				"message": rejected.Error(),
			},
		})
	}

	var notFound *engine.NotFoundError
	if errors.As(err, &notFound) {
		return sendError(c, fiber.StatusNotFound, "NOT_FOUND", notFound.Error())
	}

	switch {
	case errors.Is(err, engine.ErrForbidden):
		return sendError(c, fiber.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, session.ErrInvalidToken):
		return sendError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case errors.Is(err, engine.ErrBusy):
		return sendError(c, fiber.StatusConflict, "BUSY", err.Error())
	case errors.Is(err, engine.ErrNoLiveLot),
		errors.Is(err, engine.ErrNoLotsRemaining),
		errors.Is(err, engine.ErrAuctionFinished),
		errors.Is(err, engine.ErrLotInProgress):
		return sendError(c, fiber.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, engine.ErrNoWinner):
		return sendError(c, fiber.StatusUnprocessableEntity, "NO_WINNER", err.Error())
	}

	if e, ok := err.(*fiber.Error); ok {
		return sendError(c, e.Code, "ERROR", e.Message)
	}

	slog.Error("Unhandled request error",
		slog.String("path", c.Path()),
		slog.Any("error", err))
	return sendError(c, fiber.StatusInternalServerError, "INTERNAL", "internal server error")
}

func sendError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

func sendSuccess(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}
