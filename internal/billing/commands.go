package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/voxplane/nibblebill/internal/callctl"
)

// CommandSyntax documents the command surface exposed to dialplan
// applications and the management API.
const CommandSyntax = "pause | resume | reset | adjust <amount> | heartbeat <seconds> | check | flush"

// Dispatch executes one billing command against a call and returns a
// human-readable result line.
func (e *Engine) Dispatch(ctx context.Context, call callctl.Call, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("usage: %s", CommandSyntax)
	}

	switch strings.ToLower(args[0]) {
	case "pause":
		e.Pause(call)
		return "billing paused", nil

	case "resume":
		e.Resume(call)
		return "billing resumed", nil

	case "reset":
		e.Reset(call)
		return "billing boundary reset", nil

	case "flush":
		e.Tick(ctx, call)
		return "billing flushed", nil

	case "check":
		total, ok := e.Check(call)
		if !ok {
			return "call is not initialized for billing", nil
		}
		return fmt.Sprintf("current billing is at %s", formatAmount(total)), nil

	case "adjust":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: adjust <amount>")
		}
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return "", fmt.Errorf("adjust: bad amount %q", args[1])
		}
		if err := e.Adjust(ctx, call, amount); err != nil {
			return "", fmt.Errorf("adjust failed: %w", err)
		}
		return fmt.Sprintf("adjusted account by %s", formatAmount(amount)), nil

	case "heartbeat":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: heartbeat <seconds>")
		}
		secs, err := strconv.Atoi(args[1])
		if err != nil || secs <= 0 {
			return "", fmt.Errorf("heartbeat: bad interval %q", args[1])
		}
		if err := e.ctl.EnableHeartbeat(ctx, call, time.Duration(secs)*time.Second); err != nil {
			return "", fmt.Errorf("heartbeat: %w", err)
		}
		return fmt.Sprintf("heartbeat set to %ds", secs), nil

	default:
		return "", fmt.Errorf("unknown command %q, usage: %s", args[0], CommandSyntax)
	}
}
