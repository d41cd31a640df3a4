// Package billing implements the metering core: per-call billing records,
// the tick engine, threshold reactions, and the pause/resume controller.
//
// DESIGN: Real-time prepaid debiting. Each heartbeat computes the billable
// time since the last charge boundary, converts it to currency at the call's
// per-minute rate, and atomically decrements the account in the ledger store.
// Calls without billing variables are simply unmetered; that is not an error.
package billing

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxplane/nibblebill/internal/callctl"
)

// Call-scoped variables consumed from the platform.
const (
	// VarRate is the billing rate in currency units per minute.
	VarRate = "nibble_rate"
	// VarIncrement is the optional billing increment in seconds.
	VarIncrement = "nibble_increment"
	// VarAccount is the prepaid account id.
	VarAccount = "nibble_account"
	// VarLowBalAmt overrides the global low-balance threshold per call.
	VarLowBalAmt = "lowbal_amt"
	// VarNoBalAmt overrides the global no-balance threshold per call.
	VarNoBalAmt = "nobal_amt"
)

// Call-scoped variables produced for the platform.
const (
	// VarTotalBilled carries the running total charged to this call.
	VarTotalBilled = "nibble_total_billed"
	// VarCurrentBalance carries the balance snapshot written at teardown.
	VarCurrentBalance = "nibble_current_balance"
)

// callParams is the per-call billing configuration resolved from call
// variables with global defaults applied.
type callParams struct {
	rate      float64       // currency per minute
	increment time.Duration // 0 = bill exact elapsed time
	account   string
	lowBalAmt float64
	noBalAmt  float64
}

// paramsFor resolves billing parameters for a call. ok is false when the call
// carries no billing configuration (missing rate or account).
func (e *Engine) paramsFor(call callctl.Call) (callParams, bool) {
	rateStr := call.Variable(VarRate)
	account := call.Variable(VarAccount)
	if rateStr == "" || account == "" {
		return callParams{}, false
	}

	rate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil {
		log.Warn().Str("call", call.ID()).Str(VarRate, rateStr).Msg("unparseable billing rate, call is unmetered")
		return callParams{}, false
	}

	p := callParams{
		rate:      rate,
		account:   account,
		lowBalAmt: e.settings.LowBalAmt,
		noBalAmt:  e.settings.NoBalAmt,
	}

	if incStr := call.Variable(VarIncrement); incStr != "" {
		if secs, err := strconv.Atoi(incStr); err != nil || secs < 0 {
			log.Warn().Str("call", call.ID()).Str(VarIncrement, incStr).Msg("unparseable billing increment, billing exact elapsed time")
		} else {
			p.increment = time.Duration(secs) * time.Second
		}
	}

	if s := call.Variable(VarLowBalAmt); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			p.lowBalAmt = v
		}
	}
	if s := call.Variable(VarNoBalAmt); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			p.noBalAmt = v
		}
	}

	return p, true
}

// formatAmount renders currency amounts for call variables.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
