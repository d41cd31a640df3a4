package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxplane/nibblebill/internal/callctl"
)

func TestThresholds_LowBalanceWarnsOnce(t *testing.T) {
	settings := defaultSettings()
	settings.LowBalAmt = 50
	store := newFakeLedger(map[string]float64{"1001": 100})
	e, ctl, clock := newTestEngine(settings, store)
	call := answeredCall("c1", billableVars("60", "1001"))

	clock.Advance(30 * time.Second)
	e.Tick(context.Background(), call) // balance 70, above threshold
	assert.Empty(t, ctl.actions())

	clock.Advance(30 * time.Second)
	e.Tick(context.Background(), call) // balance 40, below threshold
	require.Len(t, ctl.actions(), 1)
	assert.Equal(t, callctl.ActionPlayTone, ctl.actions()[0].Kind)
	assert.Equal(t, "ding", ctl.actions()[0].Tone)

	clock.Advance(10 * time.Second)
	e.Tick(context.Background(), call) // still below, but latched
	assert.Len(t, ctl.actions(), 1, "low balance warning fires at most once")
}

func TestThresholds_LowBalanceRetriedUntilActionSucceeds(t *testing.T) {
	settings := defaultSettings()
	settings.LowBalAmt = 50
	store := newFakeLedger(map[string]float64{"1001": 60})
	e, ctl, clock := newTestEngine(settings, store)
	ctl.execErrs = 1
	call := answeredCall("c1", billableVars("60", "1001"))

	clock.Advance(30 * time.Second)
	e.Tick(context.Background(), call) // balance 30, action fails
	assert.Empty(t, ctl.actions())

	clock.Advance(10 * time.Second)
	e.Tick(context.Background(), call) // retried, succeeds, latches
	require.Len(t, ctl.actions(), 1)

	clock.Advance(10 * time.Second)
	e.Tick(context.Background(), call)
	assert.Len(t, ctl.actions(), 1)
}

func TestThresholds_DepletionPausesBeforeRerouting(t *testing.T) {
	settings := defaultSettings()
	settings.NoBalAmt = 10
	store := newFakeLedger(map[string]float64{"1001": 35})
	e, ctl, clock := newTestEngine(settings, store)
	call := answeredCall("c1", billableVars("60", "1001"))

	// The reroute re-enters routing, which ticks the call again; metering
	// must already be paused when the action runs.
	var pausedAtDispatch bool
	ctl.onExecute = func(_ callctl.Call, action callctl.Action) {
		if action.Kind != callctl.ActionTransfer {
			return
		}
		snaps := e.Snapshots()
		if len(snaps) == 1 && snaps[0].Paused {
			pausedAtDispatch = true
		}
	}

	clock.Advance(30 * time.Second)
	e.Tick(context.Background(), call) // balance 5, below depletion

	require.Len(t, ctl.actions(), 1)
	assert.Equal(t, callctl.ActionTransfer, ctl.actions()[0].Kind)
	assert.Equal(t, "299", ctl.actions()[0].Destination)
	assert.True(t, pausedAtDispatch, "billing must be paused before the reroute runs")

	// Paused: further ticks neither charge nor re-fire.
	clock.Advance(time.Minute)
	e.Tick(context.Background(), call)
	assert.Len(t, ctl.actions(), 1)
	assert.Equal(t, 1, store.decrementCount())
}

func TestThresholds_DepletionRefiresAfterResume(t *testing.T) {
	settings := defaultSettings()
	settings.NoBalAmt = 10
	store := newFakeLedger(map[string]float64{"1001": 35})
	e, ctl, clock := newTestEngine(settings, store)
	call := answeredCall("c1", billableVars("60", "1001"))

	clock.Advance(30 * time.Second)
	e.Tick(context.Background(), call) // depleted: paused + rerouted
	require.Len(t, ctl.actions(), 1)

	// No latch on depletion: once metering resumes with the account still
	// depleted, the next tick reroutes again.
	e.Resume(call)
	clock.Advance(time.Second)
	e.Tick(context.Background(), call)
	actions := ctl.actions()
	require.Len(t, actions, 2)
	assert.Equal(t, callctl.ActionTransfer, actions[1].Kind)
}

func TestThresholds_LowWarningPrecedesDepletion(t *testing.T) {
	settings := defaultSettings()
	settings.LowBalAmt = 50
	settings.NoBalAmt = 10
	store := newFakeLedger(map[string]float64{"1001": 32})
	e, ctl, clock := newTestEngine(settings, store)
	call := answeredCall("c1", billableVars("60", "1001"))

	clock.Advance(30 * time.Second)
	e.Tick(context.Background(), call) // balance 2: below both thresholds

	actions := ctl.actions()
	require.Len(t, actions, 2)
	assert.Equal(t, callctl.ActionPlayTone, actions[0].Kind)
	assert.Equal(t, callctl.ActionTransfer, actions[1].Kind)
}

func TestThresholds_PercallCapHangsUpOnce(t *testing.T) {
	settings := defaultSettings()
	settings.PercallMax = 50
	store := newFakeLedger(map[string]float64{"1001": 1000})
	e, ctl, clock := newTestEngine(settings, store)
	call := answeredCall("c1", billableVars("60", "1001"))

	clock.Advance(30 * time.Second)
	e.Tick(context.Background(), call) // total 30, under cap
	assert.Empty(t, ctl.actions())

	clock.Advance(30 * time.Second)
	e.Tick(context.Background(), call) // total 60, cap reached
	require.Len(t, ctl.actions(), 1)
	assert.Equal(t, callctl.ActionHangup, ctl.actions()[0].Kind)

	total, _ := e.Check(call)
	assert.InDelta(t, 60.0, total, 1e-9)

	// Paused by the cap: no further charges or actions.
	clock.Advance(time.Minute)
	e.Tick(context.Background(), call)
	assert.Len(t, ctl.actions(), 1)
	assert.Equal(t, 2, store.decrementCount())
}

func TestThresholds_PercallCapIgnoredWhenUnset(t *testing.T) {
	store := newFakeLedger(map[string]float64{"1001": 1000})
	e, ctl, clock := newTestEngine(defaultSettings(), store) // PercallMax 0
	call := answeredCall("c1", billableVars("60", "1001"))

	clock.Advance(10 * time.Minute)
	e.Tick(context.Background(), call)
	assert.Empty(t, ctl.actions())
	total, _ := e.Check(call)
	assert.InDelta(t, 600.0, total, 1e-9)
}

func TestThresholds_PerCallLowBalOverride(t *testing.T) {
	settings := defaultSettings()
	settings.LowBalAmt = 0 // global warning effectively off
	store := newFakeLedger(map[string]float64{"1001": 100})
	e, ctl, clock := newTestEngine(settings, store)

	vars := billableVars("60", "1001")
	vars[VarLowBalAmt] = "80"
	call := answeredCall("c1", vars)

	clock.Advance(30 * time.Second)
	e.Tick(context.Background(), call) // balance 70, below the per-call 80

	require.Len(t, ctl.actions(), 1)
	assert.Equal(t, callctl.ActionPlayTone, ctl.actions()[0].Kind)
}
