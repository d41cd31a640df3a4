package mgmt

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/voxplane/nibblebill/internal/billing"
	"github.com/voxplane/nibblebill/internal/callctl"
	"github.com/voxplane/nibblebill/internal/config"
)

// handleEvent is the platform's delivery path into the billing engine.
//
// Body: {"uuid": "<call id>", "event": "answered", "variables": {...}}
// uuid may be omitted on the first event for a call; one is assigned and
// returned. Variables are overlaid onto the live call before the event is
// handled, so a rate change rides in with any event.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, config.MaxCommandBodySize))
	if err != nil {
		writeError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if !gjson.ValidBytes(body) {
		writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	token := gjson.GetBytes(body, "event").String()
	ev, ok := callctl.ParseEventType(token)
	if !ok {
		writeError(w, "unknown event type: "+token, http.StatusBadRequest)
		return
	}

	id := gjson.GetBytes(body, "uuid").String()
	if id == "" {
		id = uuid.NewString()
	}

	vars := make(map[string]string)
	gjson.GetBytes(body, "variables").ForEach(func(k, v gjson.Result) bool {
		vars[k.String()] = v.String()
		return true
	})

	call := s.calls.upsert(id, vars)
	switch ev {
	case callctl.EventAnswered:
		if call.AnsweredAt().IsZero() {
			call.SetAnswered(time.Now())
		}
	case callctl.EventRouting:
		call.SetState(callctl.StateRouting)
	case callctl.EventMediaStarted:
		call.SetState(callctl.StateActive)
	case callctl.EventHangup:
		call.SetState(callctl.StateHangup)
	}

	log.Debug().Str("call", id).Str("event", token).Msg("platform event")
	s.engine.HandleEvent(r.Context(), call, ev)

	if ev == callctl.EventHangup {
		s.calls.remove(id)
	}

	resp := []byte(`{"status":"ok"}`)
	resp, _ = sjson.SetBytes(resp, "uuid", id)
	if v := call.Variable(billing.VarTotalBilled); v != "" {
		resp, _ = sjson.SetBytes(resp, "total_billed", v)
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}
