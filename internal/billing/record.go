package billing

import (
	"sync"
	"time"
)

// zeroTime clears pauseStartedAt.
var zeroTime time.Time

// record is the per-call billing state. One exists per metered call, created
// lazily on the first tick after answer and discarded at hangup.
//
// Locking: each record carries its own mutex so unrelated calls never block
// one another. The mutex protects state transitions only; it is never held
// across ledger network calls.
type record struct {
	mu sync.Mutex

	// lastBilledAt is the last charge boundary. In increment mode it runs
	// ahead of wall time (prepaid whole increments).
	lastBilledAt time.Time

	// totalBilled is the cumulative amount successfully charged.
	totalBilled float64

	// pauseStartedAt is zero while metering is active.
	pauseStartedAt time.Time

	// billAdjustments is subtracted from the next computed charge; it
	// accumulates the value of paused intervals.
	billAdjustments float64

	// lowBalActionFired latches after the low-balance action succeeds.
	lowBalActionFired bool

	// capActionFired latches after the per-call cap action succeeds.
	capActionFired bool
}

// paused reports whether metering is suspended. Callers hold rec.mu.
func (r *record) paused() bool {
	return !r.pauseStartedAt.IsZero()
}

// registry owns the engine's call-id -> record mapping.
type registry struct {
	mu      sync.RWMutex
	records map[string]*record
}

func newRegistry() *registry {
	return &registry{records: make(map[string]*record)}
}

// get returns the record for a call if one exists.
func (g *registry) get(id string) (*record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.records[id]
	return r, ok
}

// getOrCreate returns the call's record, creating one anchored at answeredAt
// when none exists yet. created reports whether this call initialized it.
func (g *registry) getOrCreate(id string, answeredAt time.Time) (rec *record, created bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.records[id]; ok {
		return r, false
	}
	r := &record{lastBilledAt: answeredAt}
	g.records[id] = r
	return r, true
}

// remove drops the call's record at teardown.
func (g *registry) remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, id)
}

// len returns the number of live records.
func (g *registry) len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}
