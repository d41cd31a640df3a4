package mgmt

import (
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/voxplane/nibblebill/internal/config"
)

// handleCommand executes one manual billing command against a live call.
//
// Body: {"uuid": "<call id>", "command": "pause", "arg": "20.5"}
// The command vocabulary is billing.CommandSyntax.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
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

	id := gjson.GetBytes(body, "uuid").String()
	command := gjson.GetBytes(body, "command").String()
	if id == "" || command == "" {
		writeError(w, "uuid and command are required", http.StatusBadRequest)
		return
	}

	call, ok := s.calls.Lookup(id)
	if !ok {
		writeError(w, "no such channel", http.StatusNotFound)
		return
	}

	args := strings.Fields(command)
	if arg := gjson.GetBytes(body, "arg").String(); arg != "" {
		args = append(args, arg)
	}

	result, err := s.engine.Dispatch(r.Context(), call, args)
	if err != nil {
		log.Warn().Err(err).Str("call", id).Strs("args", args).Msg("billing command rejected")
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := []byte(`{"status":"ok"}`)
	resp, _ = sjson.SetBytes(resp, "uuid", id)
	resp, _ = sjson.SetBytes(resp, "result", result)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}
