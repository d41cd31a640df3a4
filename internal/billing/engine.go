package billing

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxplane/nibblebill/internal/callctl"
	"github.com/voxplane/nibblebill/internal/journal"
	"github.com/voxplane/nibblebill/internal/ledger"
	"github.com/voxplane/nibblebill/internal/monitoring"
)

// Settings is the engine's global billing configuration. Per-call variables
// override the threshold amounts.
type Settings struct {
	PercallMax    float64        // per-call spend cap, 0 = uncapped
	PercallAction callctl.Action // runs once when the cap is reached
	LowBalAmt     float64        // warning threshold
	LowBalAction  callctl.Action // one-shot warning action
	NoBalAmt      float64        // depletion threshold
	NoBalAction   callctl.Action // reroute action, retried every tick
	Heartbeat     time.Duration  // tick interval armed at answer, 0 = platform-driven
}

// Options carries the engine's optional collaborators.
type Options struct {
	Telemetry *monitoring.Tracker
	Metrics   *monitoring.Metrics
	Journal   *journal.Journal
}

// Engine meters active calls against the prepaid ledger.
type Engine struct {
	settings  Settings
	store     ledger.Client
	ctl       callctl.Controller
	telemetry *monitoring.Tracker
	metrics   *monitoring.Metrics
	journal   *journal.Journal
	records   *registry

	now func() time.Time // test hook
}

// New creates an engine. store and ctl are required; opts collaborators may
// be nil.
func New(settings Settings, store ledger.Client, ctl callctl.Controller, opts Options) *Engine {
	return &Engine{
		settings:  settings,
		store:     store,
		ctl:       ctl,
		telemetry: opts.Telemetry,
		metrics:   opts.Metrics,
		journal:   opts.Journal,
		records:   newRegistry(),
		now:       time.Now,
	}
}

// HandleEvent is the single lifecycle callback the platform invokes.
func (e *Engine) HandleEvent(ctx context.Context, call callctl.Call, ev callctl.EventType) {
	switch ev {
	case callctl.EventAnswered:
		e.armHeartbeat(ctx, call)
	case callctl.EventHeartbeat:
		e.Tick(ctx, call)
	case callctl.EventMediaStarted:
		e.settle(ctx, call)
		e.armHeartbeat(ctx, call)
	case callctl.EventRouting:
		e.settle(ctx, call)
	case callctl.EventHangup:
		e.settle(ctx, call)
		e.evict(call)
	}
}

// Tick runs one metering pass over the call: charge the elapsed window, then
// evaluate balance thresholds.
func (e *Engine) Tick(ctx context.Context, call callctl.Call) {
	e.metrics.ObserveTick()

	p, billable := e.paramsFor(call)
	if !billable {
		return
	}

	// Before answer there is nothing to charge, but a depleted account must
	// not be routed onward.
	if call.AnsweredAt().IsZero() {
		e.gateUnanswered(ctx, call, p)
		return
	}

	rec, created := e.records.getOrCreate(call.ID(), call.AnsweredAt())
	if created {
		log.Info().Str("call", call.ID()).Str("account", p.account).Msg("beginning new billing")
		e.metrics.SetActiveRecords(e.records.len())
	}

	now := e.now()

	rec.mu.Lock()
	if rec.paused() {
		rec.mu.Unlock()
		log.Debug().Str("call", call.ID()).Msg("billing tick while paused, ignoring")
		return
	}

	elapsed := now.Sub(rec.lastBilledAt)
	var (
		amount     float64
		adjSnap    float64
		prevLast   time.Time
		nextLast   time.Time
		chargeable bool
	)
	switch {
	case elapsed >= 0:
		charged := chargedDuration(elapsed, p.increment)
		adjSnap = rec.billAdjustments
		amount = p.rate*charged.Minutes() - adjSnap
		prevLast = rec.lastBilledAt
		nextLast = rec.lastBilledAt.Add(charged)
		// Advance the boundary before the ledger call so a concurrent flush
		// cannot bill the same window twice. The failure path below decides
		// whether the advance sticks.
		rec.lastBilledAt = nextLast
		chargeable = true
	default:
		// Clock regression: skip this window entirely.
		log.Warn().Str("call", call.ID()).Dur("elapsed", elapsed).
			Msg("negative elapsed billing interval, skipping charge")
	}
	rec.mu.Unlock()

	if chargeable {
		e.charge(ctx, call, rec, p, amount, adjSnap, prevLast, nextLast)
	}

	// A call already in teardown no longer gets threshold actions.
	if call.State().Terminal() {
		return
	}

	balance, err := e.store.Balance(ctx, p.account)
	if err != nil {
		log.Error().Err(err).Str("call", call.ID()).Str("account", p.account).
			Msg("balance read failed, skipping threshold evaluation")
		return
	}
	e.evaluateThresholds(ctx, call, rec, p, balance)
}

// charge applies one computed charge against the ledger and commits or
// unwinds record state depending on the outcome.
func (e *Engine) charge(ctx context.Context, call callctl.Call, rec *record, p callParams,
	amount, adjSnap float64, prevLast, nextLast time.Time) {

	log.Debug().Str("call", call.ID()).Str("account", p.account).Float64("amount", amount).
		Msg("billing elapsed window")

	_, err := e.store.Decrement(ctx, p.account, amount)

	rec.mu.Lock()
	var total float64
	if err == nil {
		rec.totalBilled += amount
		// Drain exactly what this charge was computed against; a resume that
		// landed mid-flight keeps its contribution.
		rec.billAdjustments -= adjSnap
		total = rec.totalBilled
	} else if p.increment == 0 {
		// Duration mode: the unbilled window carries into the next tick.
		// Increment mode keeps the prepaid advance (source behavior).
		if rec.lastBilledAt.Equal(nextLast) {
			rec.lastBilledAt = prevLast
		}
	}
	rec.mu.Unlock()

	if err == nil {
		call.SetVariable(VarTotalBilled, formatAmount(total))
		if e.journal != nil {
			if jerr := e.journal.RecordCharge(ctx, call.ID(), p.account, amount, total); jerr != nil {
				log.Error().Err(jerr).Str("call", call.ID()).Msg("charge journal write failed")
			}
		}
	} else {
		log.Error().Err(err).Str("call", call.ID()).Str("account", p.account).
			Float64("amount", amount).Msg("ledger decrement failed, charge not applied")
	}

	e.metrics.ObserveCharge(amount, err == nil)
	e.telemetry.RecordCharge(&monitoring.ChargeEvent{
		Timestamp: e.now(), CallID: call.ID(), Account: p.account,
		Amount: amount, Total: total, OK: err == nil,
	})

	if err == nil {
		e.enforcePercallCap(ctx, call, rec, p)
	}
}

// chargedDuration converts elapsed wall time into the billable duration.
// With an increment, whole increments are always charged and a short window
// still consumes one full increment (prepaid rounding).
func chargedDuration(elapsed, increment time.Duration) time.Duration {
	if increment <= 0 {
		return elapsed
	}
	if elapsed <= increment {
		return increment
	}
	return time.Duration(math.Ceil(float64(elapsed)/float64(increment))) * increment
}

// gateUnanswered reroutes unanswered calls whose account is already depleted.
func (e *Engine) gateUnanswered(ctx context.Context, call callctl.Call, p callParams) {
	balance, err := e.store.Balance(ctx, p.account)
	if err != nil {
		log.Error().Err(err).Str("call", call.ID()).Str("account", p.account).
			Msg("pre-answer balance read failed")
		return
	}
	if balance > p.noBalAmt || call.State().Terminal() {
		return
	}

	log.Info().Str("call", call.ID()).Str("account", p.account).
		Float64("balance", balance).Float64("nobal_amt", p.noBalAmt).
		Msg("balance below depletion threshold before answer, rerouting")
	e.dispatchThreshold(ctx, call, p, kindNoBal, balance, e.settings.NoBalAction)
}

// settle bills any outstanding window and publishes the balance snapshot.
// Used at routing, media and hangup transitions.
func (e *Engine) settle(ctx context.Context, call callctl.Call) {
	e.Tick(ctx, call)

	account := call.Variable(VarAccount)
	if account == "" {
		return
	}
	if balance, err := e.store.Balance(ctx, account); err == nil {
		call.SetVariable(VarCurrentBalance, formatAmount(balance))
	}
}

// armHeartbeat asks the platform for periodic ticks on billable calls.
func (e *Engine) armHeartbeat(ctx context.Context, call callctl.Call) {
	if _, billable := e.paramsFor(call); !billable {
		return
	}
	if e.settings.Heartbeat <= 0 {
		return
	}
	if err := e.ctl.EnableHeartbeat(ctx, call, e.settings.Heartbeat); err != nil {
		log.Error().Err(err).Str("call", call.ID()).Msg("failed to arm billing heartbeat")
	}
}

// evict discards the call's record at teardown.
func (e *Engine) evict(call callctl.Call) {
	e.records.remove(call.ID())
	e.metrics.SetActiveRecords(e.records.len())
}

// ActiveRecords returns the number of calls currently metered.
func (e *Engine) ActiveRecords() int {
	return e.records.len()
}

// Snapshot describes one live billing record for inspection surfaces.
type Snapshot struct {
	CallID          string
	TotalBilled     float64
	BillAdjustments float64
	Paused          bool
	LastBilledAt    time.Time
}

// Snapshots returns a copy of all live records.
func (e *Engine) Snapshots() []Snapshot {
	e.records.mu.RLock()
	defer e.records.mu.RUnlock()

	out := make([]Snapshot, 0, len(e.records.records))
	for id, rec := range e.records.records {
		rec.mu.Lock()
		out = append(out, Snapshot{
			CallID:          id,
			TotalBilled:     rec.totalBilled,
			BillAdjustments: rec.billAdjustments,
			Paused:          rec.paused(),
			LastBilledAt:    rec.lastBilledAt,
		})
		rec.mu.Unlock()
	}
	return out
}
