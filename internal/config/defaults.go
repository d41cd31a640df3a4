// Package config - defaults.go centralizes default values and limits.
//
// DESIGN: All default values that appear in multiple places should be defined
// here. This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// LEDGER STORE
// =============================================================================

// DefaultLedgerURL is the Redis endpoint holding account balances.
const DefaultLedgerURL = "redis://127.0.0.1:6379/0"

// DefaultLedgerTimeoutSec bounds each ledger read/decrement.
const DefaultLedgerTimeoutSec = 5

// =============================================================================
// BILLING DEFAULTS
// =============================================================================

// DefaultPercallAction runs when a call exceeds its per-call spend cap.
const DefaultPercallAction = "hangup"

// DefaultLowBalAction runs once when the balance crosses the warning threshold.
const DefaultLowBalAction = "play ding"

// DefaultNoBalAction runs (and keeps retrying) when the balance is depleted.
const DefaultNoBalAction = "hangup"

// DefaultHeartbeatSec is the per-call billing tick interval. 0 disables
// engine-armed heartbeats; the platform then decides the cadence.
const DefaultHeartbeatSec = 0

// =============================================================================
// MANAGEMENT SERVER
// =============================================================================

// DefaultServerPort is the management API listen port.
const DefaultServerPort = 9140

// DefaultServerReadTimeout bounds request reads on the management server.
const DefaultServerReadTimeout = 15 * time.Second

// DefaultServerWriteTimeout bounds responses; generous for the event feed.
const DefaultServerWriteTimeout = 10 * time.Minute

// MaxCommandBodySize caps management request bodies.
const MaxCommandBodySize = 64 * 1024

// =============================================================================
// PLATFORM CALLBACK
// =============================================================================

// DefaultPlatformTimeoutSec bounds each action/heartbeat callback request.
const DefaultPlatformTimeoutSec = 10

// =============================================================================
// MONITORING AND JOURNAL
// =============================================================================

// DefaultTelemetryPath is where billing telemetry JSONL is appended.
const DefaultTelemetryPath = "logs/billing.jsonl"

// DefaultJournalPath is the SQLite charge journal location.
const DefaultJournalPath = "logs/charges.db"

// DefaultLogLevel is the zerolog level when none is configured.
const DefaultLogLevel = "info"
