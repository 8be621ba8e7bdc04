package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/me-zabiullakhan/smsports/auctionhouse/stream"
)

const writeWait = 10 * time.Second

func validCollection(c stream.Collection) bool {
	switch c {
	case stream.CollectionAuction, stream.CollectionTeams, stream.CollectionPlayers,
		stream.CollectionCategories, stream.CollectionSponsors:
		return true
	}
	return false
}

// handleStream bridges one hub subscription onto a websocket. The
// subscriber gets the feed's latest event immediately, then every change
// in order. If the socket cannot keep up the hub disconnects it; the
// client is told to resubscribe rather than trust a gappy view.
func (s *Server) handleStream(conn *websocket.Conn) {
	defer conn.Close()

	collection := stream.Collection(conn.Params("collection"))
	if !validCollection(collection) {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown collection")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return
	}

	sub := s.hub.Subscribe(collection)
	defer sub.Close()

	// Drain reads so client-initiated closes are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				if err := sub.Err(); err != nil {
					msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
					_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
					slog.Warn("Stream subscriber dropped",
						slog.String("collection", string(collection)),
						slog.String("reason", err.Error()))
				}
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
