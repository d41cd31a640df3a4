// Package callctl defines the call-control capability consumed by the billing
// engine.
//
// DESIGN: The engine never talks to the telephony platform directly. It sees
// calls through the Call interface, receives lifecycle events as EventType
// values, and requests platform behavior (reroute, tone, hangup) through the
// Controller interface. The platform side implements these; the engine side
// only consumes them.
package callctl

import (
	"context"
	"time"
)

// EventType identifies a call lifecycle event delivered to the engine.
type EventType int

const (
	// EventAnswered fires when the call reaches answered state.
	EventAnswered EventType = iota
	// EventHeartbeat fires on the periodic per-call billing timer.
	EventHeartbeat
	// EventMediaStarted fires when the media path is established or rebridged.
	EventMediaStarted
	// EventRouting fires when the call (re-)enters dialplan routing.
	EventRouting
	// EventHangup fires once at call teardown.
	EventHangup
)

// String returns the wire token for an event type.
func (e EventType) String() string {
	switch e {
	case EventAnswered:
		return "answered"
	case EventHeartbeat:
		return "heartbeat"
	case EventMediaStarted:
		return "media_started"
	case EventRouting:
		return "routing"
	case EventHangup:
		return "hangup"
	}
	return "unknown"
}

// ParseEventType maps a wire token to an EventType.
func ParseEventType(s string) (EventType, bool) {
	switch s {
	case "answered":
		return EventAnswered, true
	case "heartbeat":
		return EventHeartbeat, true
	case "media_started":
		return EventMediaStarted, true
	case "routing":
		return EventRouting, true
	case "hangup":
		return EventHangup, true
	}
	return 0, false
}

// CallState is the coarse lifecycle state of a call.
type CallState int

const (
	StateActive CallState = iota
	StateRouting
	StateHangup
	StateReporting
)

// Terminal reports whether the call has reached a state where threshold
// actions must no longer be requested.
func (s CallState) Terminal() bool {
	return s == StateHangup || s == StateReporting
}

// Call is the engine's view of one active call. Implementations must be safe
// for concurrent use; the engine may touch a call from the heartbeat path and
// the management path at the same time.
type Call interface {
	// ID returns the platform-unique call identifier.
	ID() string
	// AnsweredAt returns when the call was answered, zero if it was not.
	AnsweredAt() time.Time
	// State returns the current lifecycle state.
	State() CallState
	// Variable returns a call-scoped variable, "" when unset.
	Variable(name string) string
	// SetVariable publishes a call-scoped variable back to the platform.
	SetVariable(name, value string)
}

// Controller requests call-control behavior from the platform.
type Controller interface {
	// Execute runs an action against the call (reroute, tone, hangup).
	Execute(ctx context.Context, call Call, action Action) error
	// EnableHeartbeat (re)arms the periodic billing timer for the call.
	EnableHeartbeat(ctx context.Context, call Call, interval time.Duration) error
}

// Resolver looks up an active call by identifier. The management surface uses
// it to address commands at explicit call ids.
type Resolver interface {
	Lookup(id string) (Call, bool)
}
