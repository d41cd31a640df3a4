package callctl

import (
	"fmt"
	"strings"
)

// ActionKind discriminates the Action variant.
type ActionKind int

const (
	// ActionHangup drops the call.
	ActionHangup ActionKind = iota
	// ActionPlayTone plays a named tone or prompt on the call.
	ActionPlayTone
	// ActionTransfer reroutes the call to a dialplan destination.
	ActionTransfer
	// ActionRunApp executes an arbitrary dialplan application.
	ActionRunApp
)

// Action is a call-control action the engine can request. Exactly the fields
// relevant to Kind are set.
type Action struct {
	Kind ActionKind

	// ActionPlayTone
	Tone string

	// ActionTransfer
	Destination string
	Dialplan    string
	Context     string

	// ActionRunApp
	App  string
	Args string
}

// ParseAction converts a configured action string into an Action. The format
// is the space-delimited form used in billing configs: "hangup", "play ding",
// "transfer 299 XML default", or "<application> [args]" for anything else.
func ParseAction(s string) (Action, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Action{}, fmt.Errorf("empty action")
	}

	switch strings.ToLower(fields[0]) {
	case "hangup":
		return Action{Kind: ActionHangup}, nil
	case "play":
		if len(fields) < 2 {
			return Action{}, fmt.Errorf("play action needs a tone name: %q", s)
		}
		return Action{Kind: ActionPlayTone, Tone: fields[1]}, nil
	case "transfer":
		if len(fields) < 2 {
			return Action{}, fmt.Errorf("transfer action needs a destination: %q", s)
		}
		a := Action{Kind: ActionTransfer, Destination: fields[1]}
		if len(fields) > 2 {
			a.Dialplan = fields[2]
		}
		if len(fields) > 3 {
			a.Context = fields[3]
		}
		return a, nil
	default:
		return Action{Kind: ActionRunApp, App: fields[0], Args: strings.Join(fields[1:], " ")}, nil
	}
}

// String renders the action in its configured wire form, for logs.
func (a Action) String() string {
	switch a.Kind {
	case ActionHangup:
		return "hangup"
	case ActionPlayTone:
		return "play " + a.Tone
	case ActionTransfer:
		parts := []string{"transfer", a.Destination}
		if a.Dialplan != "" {
			parts = append(parts, a.Dialplan)
		}
		if a.Context != "" {
			parts = append(parts, a.Context)
		}
		return strings.Join(parts, " ")
	case ActionRunApp:
		if a.Args == "" {
			return a.App
		}
		return a.App + " " + a.Args
	}
	return "unknown"
}
