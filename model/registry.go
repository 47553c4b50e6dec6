package model

import (
	"fmt"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/mesa-orm/mesa/field"
)

// Registry is the in-memory catalog of declared Models, keyed by table name.
// A Registry is safe for concurrent reads once bootstrap finishes; Extend is
// typically only called during application bootstrap (spec §3 "Lifecycle").
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Extend declares (or replaces) a table. fields are supplied in declaration
// order. name is used verbatim as the SQL table name; see Humanize for a
// cosmetic plural label derived from it.
func (r *Registry) Extend(name string, fields []field.Descriptor, opts Options) (*Model, error) {
	m, err := New(name, fields, opts)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = m
	return m, nil
}

// Get returns the Model registered under name.
func (r *Registry) Get(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// MustGet returns the Model registered under name, panicking if it was never
// declared with Extend. Intended for call sites where the table has already
// been validated to exist (e.g. after Selection construction).
func (r *Registry) MustGet(name string) *Model {
	m, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("model: table %q is not registered", name))
	}
	return m
}

// All returns every registered Model, in no particular order.
func (r *Registry) All() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	return out
}

// Names returns every registered table name, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.models))
	for n := range r.models {
		out = append(out, n)
	}
	return out
}

// Remove de-registers a table. Per spec §3 this only happens at teardown.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.models, name)
}

// Humanize returns a human-readable plural label for a table name, e.g. for
// diagnostic messages ("3 blog_posts removed"). Cosmetic only.
func Humanize(name string) string {
	return inflect.Humanize(inflect.Pluralize(name))
}
