// Package env builds the application-protocol environment from container
// request state.
//
// An Env is a string-keyed map whose missing keys may be computed on demand
// by the Adapter that created it. Population never overwrites a key that
// already has a value, so whichever source writes a key first wins. A frozen
// Env is never populated; lookups of absent keys on it return nothing.
package env

import (
	"sort"
	"sync"

	bridgeerrors "github.com/wehubfusion/rackbridge/pkg/errors"
)

// loader computes and stores a missing key. It is called with the Env lock
// held and must write through putIfAbsent.
type loader interface {
	load(e *Env, key string)
}

// Env is the application-protocol environment.
type Env struct {
	mu     sync.Mutex
	values map[string]any
	frozen bool
	loader loader
}

// New creates an empty Env with no lazy population.
func New() *Env {
	return &Env{values: make(map[string]any)}
}

func newLazy(l loader) *Env {
	return &Env{values: make(map[string]any), loader: l}
}

// Get returns the value for key, computing it on first access when the Env
// is lazy and not frozen.
func (e *Env) Get(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v, ok := e.values[key]; ok {
		return v, true
	}
	if e.frozen || e.loader == nil {
		return nil, false
	}
	e.loader.load(e, key)
	v, ok := e.values[key]
	return v, ok
}

// GetString returns the value for key when it is a string, or "".
func (e *Env) GetString(key string) string {
	v, _ := e.Get(key)
	s, _ := v.(string)
	return s
}

// Has reports whether key is stored, without computing it.
func (e *Env) Has(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.values[key]
	return ok
}

// Set stores a value, replacing any previous one.
func (e *Env) Set(key string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen {
		return bridgeerrors.ErrFrozen
	}
	e.values[key] = value
	return nil
}

// Delete removes key.
func (e *Env) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen {
		return bridgeerrors.ErrFrozen
	}
	delete(e.values, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (e *Env) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (e *Env) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.values)
}

// Freeze marks the Env immutable.
func (e *Env) Freeze() {
	e.mu.Lock()
	e.frozen = true
	e.mu.Unlock()
}

// Frozen reports whether the Env is immutable.
func (e *Env) Frozen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frozen
}

// Dup returns an unfrozen copy that shares the lazy loader.
func (e *Env) Dup() *Env {
	e.mu.Lock()
	defer e.mu.Unlock()
	values := make(map[string]any, len(e.values))
	for k, v := range e.values {
		values[k] = v
	}
	return &Env{values: values, loader: e.loader}
}

// ToMap returns a copy of the stored values.
func (e *Env) ToMap() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := make(map[string]any, len(e.values))
	for k, v := range e.values {
		m[k] = v
	}
	return m
}

// putIfAbsent stores value unless key already has one. Callers hold e.mu.
func (e *Env) putIfAbsent(key string, value any) {
	if e.frozen {
		return
	}
	if _, ok := e.values[key]; ok {
		return
	}
	e.values[key] = value
}

// populate runs the loader for key under the lock. Used by eager population.
func (e *Env) populate(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen {
		return
	}
	fn()
}
