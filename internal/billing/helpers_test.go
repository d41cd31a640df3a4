package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voxplane/nibblebill/internal/callctl"
	"github.com/voxplane/nibblebill/internal/ledger"
)

var errLedgerDown = errors.New("ledger unreachable")

// fakeLedger mimics the store's micro-unit arithmetic in memory.
type fakeLedger struct {
	mu            sync.Mutex
	balances      map[string]int64 // micro-units
	failNextDecr  int              // fail this many decrements, then succeed
	balanceErr    error
	decrements    []float64
	balanceReads  int
	missingOnRead bool
}

func newFakeLedger(seed map[string]float64) *fakeLedger {
	f := &fakeLedger{balances: make(map[string]int64)}
	for acct, bal := range seed {
		f.balances[acct] = ledger.ToMicroUnits(bal)
	}
	return f
}

func (f *fakeLedger) Decrement(_ context.Context, account string, amount float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextDecr > 0 {
		f.failNextDecr--
		return 0, errLedgerDown
	}
	f.balances[account] -= ledger.ToMicroUnits(amount)
	f.decrements = append(f.decrements, amount)
	return ledger.FromMicroUnits(f.balances[account]), nil
}

func (f *fakeLedger) Balance(_ context.Context, account string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceReads++
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	micro, ok := f.balances[account]
	if !ok || f.missingOnRead {
		return 0, ledger.ErrNotFound
	}
	return ledger.FromMicroUnits(micro), nil
}

func (f *fakeLedger) Close() error { return nil }

func (f *fakeLedger) balanceOf(account string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ledger.FromMicroUnits(f.balances[account])
}

func (f *fakeLedger) decrementCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.decrements)
}

// fakeController records requested call-control behavior.
type fakeController struct {
	mu         sync.Mutex
	executed   []callctl.Action
	execErrs   int // fail this many executions, then succeed
	heartbeats []time.Duration
	onExecute  func(call callctl.Call, action callctl.Action)
}

func (f *fakeController) Execute(_ context.Context, call callctl.Call, action callctl.Action) error {
	f.mu.Lock()
	hook := f.onExecute
	fail := f.execErrs > 0
	if fail {
		f.execErrs--
	} else {
		f.executed = append(f.executed, action)
	}
	f.mu.Unlock()

	if hook != nil {
		hook(call, action)
	}
	if fail {
		return errors.New("action execution failed")
	}
	return nil
}

func (f *fakeController) EnableHeartbeat(_ context.Context, _ callctl.Call, interval time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, interval)
	return nil
}

func (f *fakeController) actions() []callctl.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]callctl.Action(nil), f.executed...)
}

// testClock drives the engine's time.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testEpoch = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func defaultSettings() Settings {
	return Settings{
		LowBalAmt:    0,
		LowBalAction: callctl.Action{Kind: callctl.ActionPlayTone, Tone: "ding"},
		NoBalAmt:     0,
		NoBalAction:  callctl.Action{Kind: callctl.ActionTransfer, Destination: "299", Dialplan: "XML", Context: "default"},

		PercallAction: callctl.Action{Kind: callctl.ActionHangup},
	}
}

func newTestEngine(settings Settings, store *fakeLedger) (*Engine, *fakeController, *testClock) {
	ctl := &fakeController{}
	clock := &testClock{now: testEpoch}
	e := New(settings, store, ctl, Options{})
	e.now = clock.Now
	return e, ctl, clock
}

// answeredCall builds a billable call answered at the test epoch.
func answeredCall(id string, vars map[string]string) *callctl.BasicCall {
	call := callctl.NewBasicCall(id, vars)
	call.SetAnswered(testEpoch)
	return call
}

func billableVars(rate, account string) map[string]string {
	return map[string]string{VarRate: rate, VarAccount: account}
}
