package callctl

import (
	"sync"
	"time"
)

// BasicCall is a thread-safe Call implementation backed by an in-memory
// variable map. The event ingress materializes one per platform call; tests
// use it directly.
type BasicCall struct {
	id string

	mu         sync.RWMutex
	answeredAt time.Time
	state      CallState
	vars       map[string]string
}

// NewBasicCall creates a call in StateActive with the given variables.
func NewBasicCall(id string, vars map[string]string) *BasicCall {
	c := &BasicCall{
		id:    id,
		state: StateActive,
		vars:  make(map[string]string, len(vars)),
	}
	for k, v := range vars {
		c.vars[k] = v
	}
	return c
}

func (c *BasicCall) ID() string { return c.id }

func (c *BasicCall) AnsweredAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.answeredAt
}

// SetAnswered marks the call answered at t.
func (c *BasicCall) SetAnswered(t time.Time) {
	c.mu.Lock()
	c.answeredAt = t
	c.mu.Unlock()
}

func (c *BasicCall) State() CallState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetState moves the call to a new lifecycle state.
func (c *BasicCall) SetState(s CallState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *BasicCall) Variable(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vars[name]
}

func (c *BasicCall) SetVariable(name, value string) {
	c.mu.Lock()
	c.vars[name] = value
	c.mu.Unlock()
}

// Variables returns a copy of all call variables.
func (c *BasicCall) Variables() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}
