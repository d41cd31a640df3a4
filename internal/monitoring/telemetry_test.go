package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_AppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "billing.jsonl")
	tr, err := NewTracker(TelemetryConfig{Enabled: true, Path: path})
	require.NoError(t, err)

	tr.RecordCharge(&ChargeEvent{Timestamp: time.Now(), CallID: "c1", Account: "1001", Amount: 30, Total: 30, OK: true})
	tr.RecordThreshold(&ThresholdEvent{Timestamp: time.Now(), CallID: "c1", Account: "1001", Kind: "lowbal", Balance: 4, Action: "play ding", OK: true})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "charge", first["event"])
	assert.Equal(t, "c1", first["call_id"])
	assert.Equal(t, 30.0, first["amount"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "threshold", second["event"])
	assert.Equal(t, "lowbal", second["kind"])
}

func TestTracker_DisabledWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.jsonl")
	tr, err := NewTracker(TelemetryConfig{Enabled: false, Path: path})
	require.NoError(t, err)

	tr.RecordCharge(&ChargeEvent{CallID: "c1"})

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestTracker_Subscribe(t *testing.T) {
	tr, err := NewTracker(TelemetryConfig{})
	require.NoError(t, err)

	ch, cancel := tr.Subscribe()
	defer cancel()

	tr.RecordCharge(&ChargeEvent{CallID: "c1", Amount: 1, OK: true})

	select {
	case line := <-ch:
		assert.Contains(t, string(line), `"call_id":"c1"`)
	case <-time.After(time.Second):
		t.Fatal("no event delivered to subscriber")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestTracker_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	tr, err := NewTracker(TelemetryConfig{})
	require.NoError(t, err)

	_, cancel := tr.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			tr.RecordCharge(&ChargeEvent{CallID: "c1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tracker blocked on slow subscriber")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTick()
	m.ObserveCharge(1, true)
	m.ObserveThreshold("nobal")
	m.SetActiveRecords(3)
}

func TestMetrics_NegativeChargeDoesNotPanic(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	assert.NotPanics(t, func() { m.ObserveCharge(-2.5, true) })
}
