package billing

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/voxplane/nibblebill/internal/callctl"
	"github.com/voxplane/nibblebill/internal/monitoring"
)

// Threshold kinds reported in telemetry and metrics.
const (
	kindLowBal  = "lowbal"
	kindNoBal   = "nobal"
	kindPercall = "percall"
)

// evaluateThresholds reacts to the balance snapshot taken after a tick.
// Order is fixed: the low-balance warning first, then the depletion check,
// both against the same snapshot.
//
// Low balance fires at most once per call (and is retried until the action
// succeeds). The depletion check is level-triggered: a failed reroute must be
// retried on every subsequent tick, so no latch.
func (e *Engine) evaluateThresholds(ctx context.Context, call callctl.Call, rec *record, p callParams, balance float64) {
	rec.mu.Lock()
	lowFired := rec.lowBalActionFired
	rec.mu.Unlock()

	if !lowFired && balance <= p.lowBalAmt {
		log.Info().Str("call", call.ID()).Str("account", p.account).
			Float64("balance", balance).Float64("lowbal_amt", p.lowBalAmt).
			Msg("balance fell below warning threshold")

		if err := e.dispatchThreshold(ctx, call, p, kindLowBal, balance, e.settings.LowBalAction); err != nil {
			log.Error().Err(err).Str("call", call.ID()).Msg("low balance action didn't execute")
		} else {
			rec.mu.Lock()
			rec.lowBalActionFired = true
			rec.mu.Unlock()
		}
	}

	if balance <= p.noBalAmt {
		log.Error().Str("call", call.ID()).Str("account", p.account).
			Float64("balance", balance).Float64("nobal_amt", p.noBalAmt).
			Msg("balance fell below depletion threshold")

		// Billing must be paused before the reroute: the transfer re-enters
		// routing, which would otherwise tick this call again mid-reroute.
		// A caller topping up must issue reset+resume to restart metering.
		e.Pause(call)
		if err := e.dispatchThreshold(ctx, call, p, kindNoBal, balance, e.settings.NoBalAction); err != nil {
			log.Error().Err(err).Str("call", call.ID()).Msg("no balance action didn't execute, will retry next tick")
		}
	}
}

// enforcePercallCap applies the per-call spend cap after a successful charge.
// Edge-triggered like the low-balance warning, with the same pause-first
// ordering as depletion.
func (e *Engine) enforcePercallCap(ctx context.Context, call callctl.Call, rec *record, p callParams) {
	if e.settings.PercallMax <= 0 {
		return
	}

	rec.mu.Lock()
	over := rec.totalBilled >= e.settings.PercallMax && !rec.capActionFired
	total := rec.totalBilled
	rec.mu.Unlock()
	if !over || call.State().Terminal() {
		return
	}

	log.Error().Str("call", call.ID()).Str("account", p.account).
		Float64("total_billed", total).Float64("percall_max", e.settings.PercallMax).
		Msg("per-call spend cap reached")

	e.Pause(call)
	if err := e.dispatchThreshold(ctx, call, p, kindPercall, total, e.settings.PercallAction); err != nil {
		log.Error().Err(err).Str("call", call.ID()).Msg("per-call cap action didn't execute")
		return
	}
	rec.mu.Lock()
	rec.capActionFired = true
	rec.mu.Unlock()
}

// dispatchThreshold executes one threshold action and records it.
func (e *Engine) dispatchThreshold(ctx context.Context, call callctl.Call, p callParams,
	kind string, balance float64, action callctl.Action) error {

	err := e.ctl.Execute(ctx, call, action)

	e.metrics.ObserveThreshold(kind)
	e.telemetry.RecordThreshold(&monitoring.ThresholdEvent{
		Timestamp: e.now(), CallID: call.ID(), Account: p.account,
		Kind: kind, Balance: balance, Action: action.String(), OK: err == nil,
	})
	return err
}
