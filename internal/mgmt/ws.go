package mgmt

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

// handleEventStream pushes telemetry events to a WebSocket client as they
// happen. Each message is one JSON event, the same records the JSONL
// telemetry file gets.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, "telemetry is not enabled", http.StatusNotImplemented)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	events, cancel := s.tracker.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case msg, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "telemetry closed")
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				log.Debug().Err(err).Msg("event stream client gone")
				return
			}
		}
	}
}
