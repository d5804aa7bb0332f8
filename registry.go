package docbridge

import (
	"sync"
)

// entry is one registry record. All mutation happens through the Manager's
// lifecycle operations; nothing else writes plugin state.
type entry struct {
	factory Factory
	plugin  Plugin
	desc    Descriptor
	status  Status
	lastErr error
	config  map[string]any
}

func (e *entry) health() Health {
	h := Health{
		Name:    e.desc.Name,
		Version: e.desc.Version,
		Enabled: e.desc.Enabled,
		Status:  e.status,
		Roles:   e.desc.Roles,
	}
	if e.lastErr != nil {
		h.Error = e.lastErr.Error()
	}
	if e.status == StatusInitialized {
		if hr, ok := e.plugin.(HealthReporter); ok {
			h.Extra = hr.Health()
		}
	}
	return h
}

// Registry is the table of discovered plugins and their live instances.
// Insertion order is preserved so dependency resolution and health output are
// deterministic. Owned by a Manager; reads are safe from any goroutine.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	keys    []string
}

// NewRegistry returns an empty registry. Most callers get one through a
// Manager; a standalone registry is useful for wiring plugins in tests.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// add inserts or replaces an entry, preserving first-insertion order.
func (r *Registry) add(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := e.desc.Name
	if _, ok := r.entries[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.entries[name] = e
}

func (r *Registry) entry(name string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name]
}

// Get returns the named plugin instance if it is initialized, nil otherwise.
// Failed and Invalid plugins are withheld so callers can't dispatch to them.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[name]; ok && e.status == StatusInitialized {
		return e.plugin
	}
	return nil
}

// Status returns the lifecycle status for a named plugin.
func (r *Registry) Status(name string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[name]; ok {
		return e.status, true
	}
	return "", false
}

// ByRole returns initialized plugins implementing the given role, in
// registration order.
func (r *Registry) ByRole(role Role) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Plugin
	for _, key := range r.keys {
		e := r.entries[key]
		if e.status == StatusInitialized && HasRole(e.plugin, role) {
			out = append(out, e.plugin)
		}
	}
	return out
}

// Descriptors returns descriptors for every known plugin, in registration
// order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.entries[key].desc)
	}
	return out
}

// Len reports the number of known plugins, in any state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

func (r *Registry) setStatus(name string, status Status, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.status = status
		if err != nil || status == StatusInitialized {
			e.lastErr = err
		}
	}
}

// snapshot returns entries in registration order for iteration outside the
// registry lock.
func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.keys))
	for _, key := range r.keys {
		out = append(out, r.entries[key])
	}
	return out
}
