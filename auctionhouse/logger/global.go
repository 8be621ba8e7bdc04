package logger

import (
	"log/slog"
	"time"
)

// LogBid logs a bid attempt outcome.
func LogBid(playerName string, teamName string, amount int64, err error) {
	attrs := []any{
		slog.String("type", "bid"),
		slog.String("player", playerName),
		slog.String("team", teamName),
		slog.Int64("amount", amount),
	}

	if err != nil {
		slog.Warn("Bid rejected", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Bid accepted", attrs...)
	}
}

// LogQuery logs database operations.
func LogQuery(query string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Query failed", append(attrs,
			slog.String("query", query),
			slog.Any("error", err),
		)...)
	} else {
		slog.Debug("Query executed", append(attrs,
			slog.String("query", query),
		)...)
	}
}

// LogSystem logs system events.
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs error events.
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
