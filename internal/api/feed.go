package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-dutch-auction/internal/auction"
	"solana-dutch-auction/internal/observability"
)

const (
	feedPongWait     = 60 * time.Second
	feedPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleFeed streams quotes for one auction until it ends or the client leaves.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "id")
	if _, err := s.svc.Auction(r.Context(), auctionID); err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.log.Debug("feed upgrade failed", zap.String("auction_id", auctionID), zap.Error(err))
		return
	}
	defer conn.Close()

	observability.FeedSubscribed(1)
	defer observability.FeedSubscribed(-1)

	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	// The reader only drains control frames and notices disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.feedInterval)
	defer ticker.Stop()
	pings := time.NewTicker(feedPingInterval)
	defer pings.Stop()

	closeFeed := func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "auction closed"),
			time.Now().Add(s.writeTimeout))
	}

	if done, err := s.sendQuote(conn, auctionID, r); err != nil || done {
		if done {
			closeFeed()
		}
		return
	}

	for {
		select {
		case <-ticker.C:
			done, err := s.sendQuote(conn, auctionID, r)
			if err != nil {
				s.log.Debug("feed write failed", zap.String("auction_id", auctionID), zap.Error(err))
				return
			}
			if done {
				closeFeed()
				return
			}
		case <-pings.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// sendQuote writes the current quote and reports whether the auction can no
// longer be claimed.
func (s *Server) sendQuote(conn *websocket.Conn, auctionID string, r *http.Request) (bool, error) {
	q, err := s.svc.Quote(r.Context(), auctionID)
	if err != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		_ = conn.WriteJSON(errorResponse{Error: err.Error(), Reason: auction.Reason(err)})
		return true, nil
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return false, err
	}
	if err := conn.WriteJSON(newQuoteResponse(q)); err != nil {
		return false, err
	}
	return q.Status == auction.StatusEnded || q.Status == auction.StatusExpired, nil
}
