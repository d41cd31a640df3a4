// Package monitoring records billing telemetry.
//
// DESIGN: Tracker writes structured events as JSONL (one JSON object per
// line) and fans them out to in-process subscribers (the live event feed):
//   - InitEvent:      Once at daemon startup
//   - ChargeEvent:    Every attempted ledger charge
//   - ThresholdEvent: Every threshold action dispatch
//
// Events are appended to the file immediately for real-time tailing.
package monitoring

import "time"

// TelemetryConfig controls JSONL event recording.
type TelemetryConfig struct {
	Enabled bool
	Path    string
}

// InitEvent is recorded once when the daemon starts.
type InitEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Event       string    `json:"event"` // always "billd_init"
	LedgerURL   string    `json:"ledger_url"`
	ServerPort  int       `json:"server_port"`
	HeartbeatMs int64     `json:"heartbeat_ms"`
	LowBalAmt   float64   `json:"lowbal_amt"`
	NoBalAmt    float64   `json:"nobal_amt"`
	PercallMax  float64   `json:"percall_max"`
	JournalOn   bool      `json:"journal_enabled"`
}

// ChargeEvent is recorded for every attempted ledger charge.
type ChargeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"` // always "charge"
	CallID    string    `json:"call_id"`
	Account   string    `json:"account"`
	Amount    float64   `json:"amount"`
	Total     float64   `json:"total"`
	OK        bool      `json:"ok"`
}

// ThresholdEvent is recorded when a threshold action is dispatched.
type ThresholdEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"` // always "threshold"
	CallID    string    `json:"call_id"`
	Account   string    `json:"account"`
	Kind      string    `json:"kind"` // lowbal | nobal | percall
	Balance   float64   `json:"balance"`
	Action    string    `json:"action"`
	OK        bool      `json:"ok"`
}
