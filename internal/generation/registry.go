package generation

import (
	"fmt"
	"sort"
)

// Registry maps tier keys ("fast", "quality", "fast-pro", ...) to backends.
// It is built once at startup and read concurrently afterwards; Register
// must not be called while lookups are in flight.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register binds key to backend, replacing any previous binding.
func (r *Registry) Register(key string, backend Backend) {
	r.backends[key] = backend
}

// Lookup returns the backend bound to key. An unknown key is reported as a
// *GenerationError so callers see a single failure kind.
func (r *Registry) Lookup(key string) (Backend, error) {
	backend, ok := r.backends[key]
	if !ok {
		return nil, &GenerationError{Model: key, Err: fmt.Errorf("%w: %q", ErrUnknownModel, key)}
	}
	return backend, nil
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.backends))
	for k := range r.backends {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
