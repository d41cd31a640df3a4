package mgmt

import (
	"sync"

	"github.com/voxplane/nibblebill/internal/callctl"
)

// Registry is the daemon's view of live platform calls, materialized from
// the event ingress. It implements callctl.Resolver for the command API.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]*callctl.BasicCall
}

// NewRegistry creates an empty call registry.
func NewRegistry() *Registry {
	return &Registry{calls: make(map[string]*callctl.BasicCall)}
}

// Lookup returns the live call with the given id.
func (r *Registry) Lookup(id string) (callctl.Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calls[id]
	return c, ok
}

// upsert returns the existing call or materializes one with the given
// variables. Variables on an existing call are overlaid, not replaced.
func (r *Registry) upsert(id string, vars map[string]string) *callctl.BasicCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.calls[id]; ok {
		for k, v := range vars {
			c.SetVariable(k, v)
		}
		return c
	}
	c := callctl.NewBasicCall(id, vars)
	r.calls[id] = c
	return c
}

// remove drops a call after teardown.
func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, id)
}

// len returns the number of live calls.
func (r *Registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}
