package billing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_FlushBillsOutstandingWindow(t *testing.T) {
	store := newFakeLedger(map[string]float64{"1001": 100})
	e, _, clock := newTestEngine(defaultSettings(), store)
	call := answeredCall("c1", billableVars("60", "1001"))

	clock.Advance(30 * time.Second)
	out, err := e.Dispatch(context.Background(), call, []string{"flush"})
	require.NoError(t, err)
	assert.Equal(t, "billing flushed", out)
	assert.Equal(t, 70.0, store.balanceOf("1001"))
}

func TestDispatch_CheckReportsRunningTotal(t *testing.T) {
	store := newFakeLedger(map[string]float64{"1001": 100})
	e, _, clock := newTestEngine(defaultSettings(), store)
	call := answeredCall("c1", billableVars("60", "1001"))

	out, err := e.Dispatch(context.Background(), call, []string{"check"})
	require.NoError(t, err)
	assert.Equal(t, "call is not initialized for billing", out)

	clock.Advance(30 * time.Second)
	e.Tick(context.Background(), call)

	out, err = e.Dispatch(context.Background(), call, []string{"check"})
	require.NoError(t, err)
	assert.Equal(t, "current billing is at 30.000000", out)
}

func TestDispatch_PauseResumeReset(t *testing.T) {
	store := newFakeLedger(map[string]float64{"1001": 100})
	e, _, clock := newTestEngine(defaultSettings(), store)
	call := answeredCall("c1", billableVars("60", "1001"))
	e.Tick(context.Background(), call)

	out, err := e.Dispatch(context.Background(), call, []string{"pause"})
	require.NoError(t, err)
	assert.Equal(t, "billing paused", out)

	clock.Advance(time.Minute)
	e.Tick(context.Background(), call)
	assert.Equal(t, 100.0, store.balanceOf("1001"), "paused call is not charged")

	out, err = e.Dispatch(context.Background(), call, []string{"resume"})
	require.NoError(t, err)
	assert.Equal(t, "billing resumed", out)

	out, err = e.Dispatch(context.Background(), call, []string{"reset"})
	require.NoError(t, err)
	assert.Equal(t, "billing boundary reset", out)
}

func TestDispatch_Adjust(t *testing.T) {
	store := newFakeLedger(map[string]float64{"1001": 100})
	e, _, _ := newTestEngine(defaultSettings(), store)
	call := answeredCall("c1", billableVars("60", "1001"))

	out, err := e.Dispatch(context.Background(), call, []string{"adjust", "25"})
	require.NoError(t, err)
	assert.Equal(t, "adjusted account by 25.000000", out)
	assert.Equal(t, 125.0, store.balanceOf("1001"))
}

func TestDispatch_Heartbeat(t *testing.T) {
	store := newFakeLedger(nil)
	e, ctl, _ := newTestEngine(defaultSettings(), store)
	call := answeredCall("c1", billableVars("60", "1001"))

	out, err := e.Dispatch(context.Background(), call, []string{"heartbeat", "30"})
	require.NoError(t, err)
	assert.Equal(t, "heartbeat set to 30s", out)
	require.Len(t, ctl.heartbeats, 1)
	assert.Equal(t, 30*time.Second, ctl.heartbeats[0])
}

func TestDispatch_Errors(t *testing.T) {
	store := newFakeLedger(nil)
	e, _, _ := newTestEngine(defaultSettings(), store)
	call := answeredCall("c1", billableVars("60", "1001"))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "usage:"},
		{"unknown command", []string{"refund"}, `unknown command "refund"`},
		{"adjust without amount", []string{"adjust"}, "usage: adjust"},
		{"adjust bad amount", []string{"adjust", "lots"}, "bad amount"},
		{"heartbeat without interval", []string{"heartbeat"}, "usage: heartbeat"},
		{"heartbeat bad interval", []string{"heartbeat", "soon"}, "bad interval"},
		{"heartbeat zero interval", []string{"heartbeat", "0"}, "bad interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Dispatch(context.Background(), call, tt.args)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want),
				"error %q should contain %q", err.Error(), tt.want)
		})
	}
}

func TestDispatch_CommandsAreCaseInsensitive(t *testing.T) {
	store := newFakeLedger(map[string]float64{"1001": 100})
	e, _, _ := newTestEngine(defaultSettings(), store)
	call := answeredCall("c1", billableVars("60", "1001"))
	e.Tick(context.Background(), call)

	out, err := e.Dispatch(context.Background(), call, []string{"PAUSE"})
	require.NoError(t, err)
	assert.Equal(t, "billing paused", out)
}
