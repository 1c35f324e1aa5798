package server

import (
	"net/http"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const defaultStatsPushInterval = time.Second

// handleStatsStream pushes the room's stats on every interval until the
// client goes away or the room ends.
func (s *serverImpl) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websockets upgrade error: ", err)
		return
	}
	defer conn.Close()

	// The client never sends anything, reading only detects it going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.logger.Debug("stats stream read error: ", err)
				return
			}
		}
	}()

	interval := s.params.StatsPushInterval
	if interval <= 0 {
		interval = defaultStatsPushInterval
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		snapshot := s.store.Stats(roomID)
		if err := conn.WriteJSON(snapshot); err != nil {
			s.logger.Debug("stats stream write error: ", err)
			return
		}
		if snapshot.GameOver {
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, protocol.CloseReasonGameOver),
				// This deadline could be made configurable.
				time.Now().Add(1*time.Second),
			)
			return
		}

		select {
		case <-gone:
			return
		case <-ticker.Chan():
		}
	}
}
