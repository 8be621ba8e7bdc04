package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// capture routes the default logger into a buffer for the test's duration.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogBid(t *testing.T) {
	buf := capture(t)

	LogBid("R. Sharma", "Strikers", 2500, nil)
	out := buf.String()
	for _, want := range []string{"level=INFO", "Bid accepted", "type=bid", "player=\"R. Sharma\"", "team=Strikers", "amount=2500"} {
		if !strings.Contains(out, want) {
			t.Errorf("accepted bid log missing %q in %q", want, out)
		}
	}

	buf.Reset()
	LogBid("R. Sharma", "Titans", 2400, errors.New("bid of 2400 does not beat 2500"))
	out = buf.String()
	for _, want := range []string{"level=WARN", "Bid rejected", "does not beat"} {
		if !strings.Contains(out, want) {
			t.Errorf("rejected bid log missing %q in %q", want, out)
		}
	}
}

func TestLogQuery(t *testing.T) {
	buf := capture(t)

	LogQuery("SELECT 1", 3*time.Millisecond, nil)
	if out := buf.String(); !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "type=db") {
		t.Errorf("successful query should log at debug with type=db, got %q", out)
	}

	buf.Reset()
	LogQuery("SELECT broken", time.Millisecond, errors.New("syntax error"))
	out := buf.String()
	for _, want := range []string{"level=ERROR", "Query failed", "syntax error"} {
		if !strings.Contains(out, want) {
			t.Errorf("failed query log missing %q in %q", want, out)
		}
	}
}

func TestLogSystemAndError(t *testing.T) {
	buf := capture(t)

	LogSystem("Auction started", slog.Int64("auction_id", 7))
	out := buf.String()
	if !strings.Contains(out, "type=sys") || !strings.Contains(out, "auction_id=7") {
		t.Errorf("system log missing type or attrs: %q", out)
	}

	buf.Reset()
	LogError("Publish failed", errors.New("hub closed"), slog.String("collection", "teams"))
	out = buf.String()
	for _, want := range []string{"level=ERROR", "type=error", "hub closed", "collection=teams"} {
		if !strings.Contains(out, want) {
			t.Errorf("error log missing %q in %q", want, out)
		}
	}
}
