package billing

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/voxplane/nibblebill/internal/callctl"
)

// Pause suspends metering for the call. Idempotent: pausing a paused call is
// a no-op. Pausing a call with no billing record yet is logged, not an error;
// these commands are routinely issued near teardown.
func (e *Engine) Pause(call callctl.Call) {
	rec, ok := e.records.get(call.ID())
	if !ok {
		log.Info().Str("call", call.ID()).Msg("can't pause, call is not initialized for billing")
		return
	}

	rec.mu.Lock()
	if !rec.paused() {
		rec.pauseStartedAt = e.now()
	}
	rec.mu.Unlock()

	log.Info().Str("call", call.ID()).Msg("paused billing")
}

// Resume restarts metering. The paused interval's value is credited against
// the next charge via billAdjustments, priced at the call's current rate
// (the rate may have changed while paused).
func (e *Engine) Resume(call callctl.Call) {
	rec, ok := e.records.get(call.ID())
	if !ok {
		log.Debug().Str("call", call.ID()).Msg("can't resume, call is not initialized for billing (expected at hangup)")
		return
	}

	var rate float64
	if s := call.Variable(VarRate); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			log.Warn().Str("call", call.ID()).Str(VarRate, s).Msg("unparseable rate at resume, pause interval not credited")
		} else {
			rate = v
		}
	}

	rec.mu.Lock()
	if !rec.paused() {
		rec.mu.Unlock()
		log.Debug().Str("call", call.ID()).Msg("can't resume, billing is not paused (expected at hangup)")
		return
	}
	pausedFor := e.now().Sub(rec.pauseStartedAt)
	credit := rate * pausedFor.Minutes()
	rec.billAdjustments += credit
	rec.pauseStartedAt = zeroTime
	rec.mu.Unlock()

	log.Info().Str("call", call.ID()).Dur("paused_for", pausedFor).Float64("credit", credit).
		Msg("resumed billing")
}

// Reset moves the charge boundary to now, discarding the elapsed-but-unbilled
// interval without charging it. Totals and adjustments are untouched.
func (e *Engine) Reset(call callctl.Call) {
	rec, ok := e.records.get(call.ID())
	if !ok {
		log.Info().Str("call", call.ID()).Msg("can't reset, call is not initialized for billing")
		return
	}

	rec.mu.Lock()
	rec.lastBilledAt = e.now()
	rec.mu.Unlock()

	log.Info().Str("call", call.ID()).Msg("reset billing boundary to now")
}

// Check returns the call's running total. ok is false when the call has no
// billing record.
func (e *Engine) Check(call callctl.Call) (total float64, ok bool) {
	rec, found := e.records.get(call.ID())
	if !found {
		log.Info().Str("call", call.ID()).Msg("can't check, call is not initialized for billing")
		return 0, false
	}

	rec.mu.Lock()
	total = rec.totalBilled
	rec.mu.Unlock()
	return total, true
}

// Adjust applies an immediate ledger adjustment outside the metering cycle.
// A positive amount credits the account. The call's record, running total and
// pending adjustments are untouched.
func (e *Engine) Adjust(ctx context.Context, call callctl.Call, amount float64) error {
	account := call.Variable(VarAccount)
	if account == "" {
		log.Debug().Str("call", call.ID()).Msg("can't adjust, no billing account on call")
		return nil
	}

	// The ledger debits; a credit is a negative decrement.
	if _, err := e.store.Decrement(ctx, account, -amount); err != nil {
		log.Error().Err(err).Str("call", call.ID()).Str("account", account).
			Float64("amount", amount).Msg("failed to record adjustment")
		return err
	}

	log.Info().Str("call", call.ID()).Str("account", account).Float64("amount", amount).
		Msg("recorded adjustment")
	if e.journal != nil {
		if err := e.journal.RecordAdjustment(ctx, call.ID(), account, amount); err != nil {
			log.Error().Err(err).Str("call", call.ID()).Msg("adjustment journal write failed")
		}
	}
	return nil
}
