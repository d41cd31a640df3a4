package monitoring

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voxplane/nibblebill/internal/utils"
)

// subscriberBuffer bounds each live-feed subscriber channel. Slow consumers
// drop events rather than block billing.
const subscriberBuffer = 64

// Tracker handles telemetry event recording to file and live subscribers.
type Tracker struct {
	config TelemetryConfig

	mu          sync.Mutex
	subscribers map[int]chan []byte
	nextSub     int
}

// NewTracker creates a telemetry tracker. When enabled, the log directory is
// created and an empty file touched so tailing works from startup.
func NewTracker(cfg TelemetryConfig) (*Tracker, error) {
	t := &Tracker{
		config:      cfg,
		subscribers: make(map[int]chan []byte),
	}

	if !cfg.Enabled || cfg.Path == "" {
		return t, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		if f, err := os.Create(cfg.Path); err == nil {
			_ = f.Close()
		}
	}
	return t, nil
}

// RecordInit records the daemon startup event.
func (t *Tracker) RecordInit(ev *InitEvent) {
	if t == nil {
		return
	}
	ev.Event = "billd_init"
	t.emit(ev)
}

// RecordCharge records an attempted ledger charge.
func (t *Tracker) RecordCharge(ev *ChargeEvent) {
	if t == nil {
		return
	}
	ev.Event = "charge"
	t.emit(ev)
}

// RecordThreshold records a threshold action dispatch.
func (t *Tracker) RecordThreshold(ev *ThresholdEvent) {
	if t == nil {
		return
	}
	ev.Event = "threshold"
	t.emit(ev)
}

// Subscribe registers a live event consumer. The returned cancel must be
// called when the consumer goes away.
func (t *Tracker) Subscribe() (<-chan []byte, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	ch := make(chan []byte, subscriberBuffer)
	t.subscribers[id] = ch

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(c)
		}
	}
}

func (t *Tracker) emit(ev any) {
	line, err := utils.MarshalNoEscape(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal telemetry event")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ch := range t.subscribers {
		select {
		case ch <- line:
		default: // drop for slow consumers
		}
	}

	if !t.config.Enabled || t.config.Path == "" {
		return
	}
	f, err := os.OpenFile(t.config.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		log.Error().Err(err).Str("path", t.config.Path).Msg("failed to open telemetry log")
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		log.Error().Err(err).Msg("failed to append telemetry event")
	}
}
