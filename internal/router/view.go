package router

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// View is a mounted feature. Render returns its current text frame.
type View interface {
	Render() string
}

// Readier is implemented by views that finish their own setup after
// mounting. The router waits for Ready before restoring scroll and focus.
type Readier interface {
	Ready(ctx context.Context) error
}

// ViewFactory constructs a view for the resolved params.
type ViewFactory func(params Params) (View, error)

// Registry maps view paths to factories. Views are constructed lazily on
// each navigation, never at registration.
//
// Thread-safety: Registry is safe for concurrent use via internal mutex.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ViewFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ViewFactory)}
}

// Register binds path to factory, replacing any previous binding.
func (r *Registry) Register(path string, factory ViewFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[path] = factory
}

// Build constructs the view registered under path.
func (r *Registry) Build(path string, params Params) (View, error) {
	r.mu.RLock()
	factory, ok := r.factories[path]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, path)
	}
	return factory(params)
}

// Paths returns the registered view paths, sorted.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// StaticView is a View with a fixed frame.
type StaticView string

// Render implements View.
func (v StaticView) Render() string {
	return string(v)
}
