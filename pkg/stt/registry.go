package stt

import "context"

// Registry holds every configured plugin and selects one per spec §4.7:
// preferred_plugin if available, else the first available entry in
// fallback_order, else NoOp.
type Registry struct {
	plugins  map[string]Plugin
	noop     Plugin
	fallback []string
}

func NewRegistry(noop Plugin, fallbackOrder []string) *Registry {
	return &Registry{
		plugins:  make(map[string]Plugin),
		noop:     noop,
		fallback: fallbackOrder,
	}
}

func (r *Registry) Register(p Plugin) {
	r.plugins[p.Info().ID] = p
}

// fallbackExcluding returns the configured fallback order, excluding id.
func (r *Registry) fallbackExcluding(id string) []string {
	out := make([]string, 0, len(r.fallback))
	for _, name := range r.fallback {
		if name != id {
			out = append(out, name)
		}
	}
	return out
}

// Select picks a plugin following spec §4.7's ordering. preferred may be
// empty.
func (r *Registry) Select(ctx context.Context, preferred string) Plugin {
	if preferred != "" {
		if p, ok := r.plugins[preferred]; ok && p.IsAvailable(ctx) {
			return p
		}
	}
	for _, name := range r.fallback {
		if name == preferred {
			continue
		}
		if p, ok := r.plugins[name]; ok && p.IsAvailable(ctx) {
			return p
		}
	}
	return r.noop
}

// SelectExcluding re-selects per spec §4.7 failover, skipping excludeID
// (the plugin that just exhausted its failure budget).
func (r *Registry) SelectExcluding(ctx context.Context, preferred, excludeID string) Plugin {
	if preferred != "" && preferred != excludeID {
		if p, ok := r.plugins[preferred]; ok && p.IsAvailable(ctx) {
			return p
		}
	}
	for _, name := range r.fallbackExcluding(excludeID) {
		if p, ok := r.plugins[name]; ok && p.IsAvailable(ctx) {
			return p
		}
	}
	return r.noop
}

// Get returns a plugin by id for GC/idle-tracking use.
func (r *Registry) Get(id string) (Plugin, bool) {
	p, ok := r.plugins[id]
	return p, ok
}

// All returns every registered plugin (not including NoOp).
func (r *Registry) All() []Plugin {
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	return out
}
