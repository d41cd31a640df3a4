package callctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HTTPController requests call-control actions from the platform over HTTP.
// The platform exposes a callback endpoint; the engine posts the action and
// treats any non-2xx response as execution failure, which the billing layer
// retries on its own schedule.
type HTTPController struct {
	baseURL string
	client  *http.Client
}

// NewHTTPController creates a controller posting to baseURL ("/action" and
// "/heartbeat" are appended).
func NewHTTPController(baseURL string, timeout time.Duration) *HTTPController {
	return &HTTPController{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type actionRequest struct {
	UUID   string `json:"uuid"`
	Action string `json:"action"`

	Tone        string `json:"tone,omitempty"`
	Destination string `json:"destination,omitempty"`
	Dialplan    string `json:"dialplan,omitempty"`
	Context     string `json:"context,omitempty"`
	App         string `json:"app,omitempty"`
	Args        string `json:"args,omitempty"`
}

type heartbeatRequest struct {
	UUID    string `json:"uuid"`
	Seconds int    `json:"seconds"`
}

// Execute posts the action to the platform callback.
func (hc *HTTPController) Execute(ctx context.Context, call Call, action Action) error {
	req := actionRequest{UUID: call.ID()}
	switch action.Kind {
	case ActionHangup:
		req.Action = "hangup"
	case ActionPlayTone:
		req.Action = "play"
		req.Tone = action.Tone
	case ActionTransfer:
		req.Action = "transfer"
		req.Destination = action.Destination
		req.Dialplan = action.Dialplan
		req.Context = action.Context
	case ActionRunApp:
		req.Action = "app"
		req.App = action.App
		req.Args = action.Args
	}

	if err := hc.post(ctx, "/action", req); err != nil {
		return fmt.Errorf("execute %s on %s: %w", action, call.ID(), err)
	}
	log.Debug().Str("call", call.ID()).Str("action", action.String()).Msg("call-control action executed")
	return nil
}

// EnableHeartbeat asks the platform to deliver heartbeat events for the call
// at the given interval.
func (hc *HTTPController) EnableHeartbeat(ctx context.Context, call Call, interval time.Duration) error {
	req := heartbeatRequest{UUID: call.ID(), Seconds: int(interval / time.Second)}
	if err := hc.post(ctx, "/heartbeat", req); err != nil {
		return fmt.Errorf("enable heartbeat on %s: %w", call.ID(), err)
	}
	return nil
}

func (hc *HTTPController) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := hc.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform callback returned %d", resp.StatusCode)
	}
	return nil
}
