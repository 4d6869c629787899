package workflow

import (
	"context"
	"fmt"
	"slices"
)

// StepFunc is the uniform signature of a unit of work. It receives the
// current run state and returns the updated state. Step-level failures are
// recorded in the state through RecordFailure; a returned error is treated
// as an unexpected, fatal condition by the orchestrator.
type StepFunc func(ctx context.Context, s *State) (*State, error)

// Step pairs a step name with its handler.
type Step struct {
	Name StepName
	Func StepFunc
}

// Registry is an ordered, immutable mapping from step name to handler.
// It is resolved once at construction.
type Registry struct {
	order    []StepName
	handlers map[StepName]StepFunc
}

// NewRegistry builds a registry from step descriptors. Order is preserved
// and used as the default pending sequence for new runs.
func NewRegistry(steps ...Step) (*Registry, error) {
	r := &Registry{
		order:    make([]StepName, 0, len(steps)),
		handlers: make(map[StepName]StepFunc, len(steps)),
	}
	for _, step := range steps {
		if step.Name == "" {
			return nil, fmt.Errorf("workflow: step name is required")
		}
		if step.Func == nil {
			return nil, fmt.Errorf("workflow: handler is required for %s", step.Name)
		}
		if _, exists := r.handlers[step.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, step.Name)
		}
		r.handlers[step.Name] = step.Func
		r.order = append(r.order, step.Name)
	}
	return r, nil
}

// MustRegistry panics if the registry cannot be built.
func MustRegistry(steps ...Step) *Registry {
	r, err := NewRegistry(steps...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the handler registered for name or ErrUnknownStep.
func (r *Registry) Lookup(name StepName) (StepFunc, error) {
	fn, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, name)
	}
	return fn, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name StepName) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered step names in registration order.
func (r *Registry) Names() []StepName {
	return slices.Clone(r.order)
}
