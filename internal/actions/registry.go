package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"scriptorium/internal/queue"
	"scriptorium/internal/services"
)

// Executor performs one named action.
type Executor interface {
	Perform(ctx context.Context, work *queue.Work, params map[string]string) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, work *queue.Work, params map[string]string) (string, error)

// Perform calls f.
func (f ExecutorFunc) Perform(ctx context.Context, work *queue.Work, params map[string]string) (string, error) {
	return f(ctx, work, params)
}

// Registry maps action names to executors. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds executor under name. Names are unique; a second registration
// fails with a duplicate_action error and leaves the first in place.
func (r *Registry) Register(name string, executor Executor) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return services.Wrap(services.ErrValidation, "actions", "register", "action name is required", nil)
	}
	if executor == nil {
		return services.Wrap(services.ErrValidation, "actions", "register", fmt.Sprintf("executor for %q is nil", name), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[name]; exists {
		return services.Wrap(services.ErrDuplicateAction, "actions", "register", name, nil)
	}
	r.executors[name] = executor
	return nil
}

// MustRegister is Register for process wiring, where a duplicate is a bug.
func (r *Registry) MustRegister(name string, executor Executor) {
	if err := r.Register(name, executor); err != nil {
		panic(err)
	}
}

// Resolve returns the executor registered under name, or an unknown_action
// error.
func (r *Registry) Resolve(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[strings.TrimSpace(name)]
	if !ok {
		return nil, services.Wrap(services.ErrUnknownAction, "actions", "resolve", fmt.Sprintf("%q is not registered", name), nil)
	}
	return executor, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.executors[strings.TrimSpace(name)]
	return ok
}

// Names returns registered action names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
