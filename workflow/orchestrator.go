package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Policy decides whether a step-level failure halts the run.
type Policy string

const (
	// HaltOnFailure stops at the first failed step. The failed step stays at
	// the head of the pending list and the run ends failed.
	HaltOnFailure Policy = "halt"

	// ContinueOnFailure moves a failed step to the completed list and keeps
	// going. The run still ends failed when any executed step failed.
	ContinueOnFailure Policy = "continue"
)

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(v string) (Policy, error) {
	switch Policy(v) {
	case HaltOnFailure, ContinueOnFailure:
		return Policy(v), nil
	case "":
		return HaltOnFailure, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", v)
	}
}

// Orchestrator advances a run's cursor through the registry one step at a
// time. It is the only writer of the cursor.
type Orchestrator struct {
	registry *Registry
	store    Store
	policy   Policy
	logger   *slog.Logger
	clock    func() time.Time
	observer Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore persists the state after every transition.
func WithStore(store Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock overrides the time source used for cursor bookkeeping.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithPolicy selects the step failure policy. The default halts.
func WithPolicy(policy Policy) Option {
	return func(o *Orchestrator) { o.policy = policy }
}

// WithObserver registers an event observer.
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) { o.observer = observer }
}

// New creates an orchestrator bound to registry.
func New(registry *Registry, opts ...Option) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("workflow: registry is required")
	}

	o := &Orchestrator{
		registry: registry,
		policy:   HaltOnFailure,
		logger:   slog.New(slog.DiscardHandler),
		clock:    time.Now,
		observer: NoopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}

	if _, err := ParsePolicy(string(o.policy)); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.observer == nil {
		o.observer = NoopObserver{}
	}
	o.logger = o.logger.With("system", "workflow")
	return o, nil
}

// Registry returns the registry the orchestrator dispatches through.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Policy returns the configured failure policy.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Run executes every pending step in order and returns the final state.
// The caller's state is not modified. A terminal state is returned as is.
//
// Step failures and unexpected step errors are contained in the returned
// state; the returned error is reserved for invalid input, persistence
// failures and interruption. When ctx is cancelled the run is persisted
// with status running and the interrupted step at the head of the pending
// list, and the error wraps ErrInterrupted. Calling Run again on that state
// continues from the interrupted step.
func (o *Orchestrator) Run(ctx context.Context, initial *State) (*State, error) {
	if initial == nil {
		return nil, ErrNilState
	}
	if initial.Orchestrator.WorkflowStatus.Terminal() {
		return initial, nil
	}
	if err := initial.Validate(); err != nil {
		return initial, err
	}

	s := initial.Clone()
	s.Orchestrator.WorkflowStatus = StatusRunning
	s.Orchestrator.LastError = nil
	s.Orchestrator.refresh()
	if err := o.persist(ctx, s); err != nil {
		return s, err
	}
	o.observer.RunStarted(s)

	o.logger.InfoContext(
		ctx, "workflow started",
		"workflow_id", s.WorkflowID,
		"pending", len(s.Orchestrator.PendingSteps),
		"policy", o.policy,
	)

	failed := false
	for len(s.Orchestrator.PendingSteps) > 0 {
		name := s.Orchestrator.PendingSteps[0]

		if err := ctx.Err(); err != nil {
			return o.interrupt(ctx, s, name, err)
		}

		fn, err := o.registry.Lookup(name)
		if err != nil {
			o.skip(ctx, s, name)
			if err := o.persist(ctx, s); err != nil {
				return s, err
			}
			continue
		}

		started := o.now()
		next, err := o.invoke(ctx, fn, s, name, started)
		elapsed := o.now().Sub(started)
		// Once ctx is cancelled only a successful outcome is kept.
		if cerr := ctx.Err(); cerr != nil && (err != nil || !succeeded(next, name)) {
			return o.interrupt(ctx, s, name, cerr)
		}
		if err != nil {
			o.observer.StepFinished(s, name, StepFailed, elapsed)
			return o.halt(ctx, s, name, err, true)
		}

		// The step owns its StepState and Logs for the duration of the call;
		// identity and cursor stay with the orchestrator.
		next.WorkflowID = s.WorkflowID
		next.WorkflowDir = s.WorkflowDir
		next.CreatedAt = s.CreatedAt
		next.Orchestrator = s.Orchestrator.clone()
		s = next

		st, ok := s.Steps[name]
		if !ok || !st.Finished() {
			if err := RecordFailure(s, name, fmt.Errorf("%w: %s", ErrStepIncomplete, name), StepResult{}); err != nil {
				return o.halt(ctx, s, name, err, false)
			}
			st = s.Steps[name]
		}
		o.observer.StepFinished(s, name, st.Status, elapsed)

		if st.Status == StepFailed {
			failed = true
			msg := fmt.Sprintf("%s: %s", name, deref(st.Error))
			s.Orchestrator.LastError = &msg

			o.logger.ErrorContext(
				ctx, "step failed",
				"workflow_id", s.WorkflowID,
				"step", name,
				"error", deref(st.Error),
				"elapsed", elapsed,
			)

			if o.policy == HaltOnFailure {
				s.Orchestrator.WorkflowStatus = StatusFailed
				return o.finish(ctx, s)
			}
		} else {
			o.logger.InfoContext(
				ctx, "step completed",
				"workflow_id", s.WorkflowID,
				"step", name,
				"elapsed", elapsed,
			)
		}

		s.Orchestrator.PendingSteps = s.Orchestrator.PendingSteps[1:]
		s.Orchestrator.CompletedSteps = append(s.Orchestrator.CompletedSteps, name)
		s.Orchestrator.refresh()

		if len(s.Orchestrator.PendingSteps) > 0 {
			if err := o.persist(ctx, s); err != nil {
				return s, err
			}
		}
	}

	if failed {
		s.Orchestrator.WorkflowStatus = StatusFailed
	} else {
		s.Orchestrator.WorkflowStatus = StatusCompleted
		s.Output = collectOutput(s)
	}
	return o.finish(ctx, s)
}

func (o *Orchestrator) invoke(
	ctx context.Context,
	fn StepFunc,
	s *State,
	name StepName,
	started time.Time,
) (next *State, err error) {
	defer func() {
		if r := recover(); r != nil {
			next = nil
			err = fmt.Errorf("%w: %s: %v", ErrStepPanicked, name, r)
		}
	}()

	work := s.Clone()
	st, ok := work.Steps[name]
	if !ok {
		st = StepState{Status: StepPending}
	}
	st.StartedAt = &started
	work.Steps[name] = st

	o.logger.DebugContext(ctx, "step started", "workflow_id", s.WorkflowID, "step", name)

	next, err = fn(ctx, work)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if next == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilState, name)
	}
	return next, nil
}

// halt contains an orchestrator-fatal condition. s is the state as it was
// before the offending step ran; nothing the step did is kept.
func (o *Orchestrator) halt(ctx context.Context, s *State, name StepName, cause error, record bool) (*State, error) {
	msg := cause.Error()
	s.Orchestrator.LastError = &msg
	s.Orchestrator.WorkflowStatus = StatusFailed

	if record {
		if err := RecordFailure(s, name, cause, StepResult{}); err != nil {
			s.Logs.Errors = append(s.Logs.Errors, msg)
		}
	} else {
		s.Logs.Errors = append(s.Logs.Errors, msg)
	}

	o.logger.ErrorContext(
		ctx, "workflow halted",
		"workflow_id", s.WorkflowID,
		"step", name,
		"error", cause,
	)

	return o.finish(ctx, s)
}

// interrupt persists s as a resumable run. s is the state from before name
// ran, so name is still pending and heads the pending list.
func (o *Orchestrator) interrupt(ctx context.Context, s *State, name StepName, cause error) (*State, error) {
	msg := fmt.Sprintf("interrupted before %s: %v", name, cause)
	s.Orchestrator.LastError = &msg
	s.Logs.Warnings = append(s.Logs.Warnings, msg)
	s.Orchestrator.refresh()

	o.logger.WarnContext(
		ctx, "workflow interrupted",
		"workflow_id", s.WorkflowID,
		"step", name,
		"error", cause,
	)

	if err := o.persist(ctx, s); err != nil {
		return s, err
	}
	return s, fmt.Errorf("%w: %s: %w", ErrInterrupted, s.WorkflowID, cause)
}

func (o *Orchestrator) skip(ctx context.Context, s *State, name StepName) {
	s.Orchestrator.PendingSteps = s.Orchestrator.PendingSteps[1:]
	s.Orchestrator.SkippedSteps = append(s.Orchestrator.SkippedSteps, name)
	s.Orchestrator.refresh()
	s.Logs.Warnings = append(s.Logs.Warnings, fmt.Sprintf("step %s not registered; skipped", name))

	o.logger.WarnContext(
		ctx, "step not registered",
		"workflow_id", s.WorkflowID,
		"step", name,
	)
	o.observer.StepSkipped(s, name)
}

func (o *Orchestrator) finish(ctx context.Context, s *State) (*State, error) {
	s.Orchestrator.refresh()
	err := o.persist(ctx, s)
	o.observer.RunFinished(s)

	o.logger.InfoContext(
		ctx, "workflow finished",
		"workflow_id", s.WorkflowID,
		"status", s.Orchestrator.WorkflowStatus,
		"completed", len(s.Orchestrator.CompletedSteps),
		"skipped", len(s.Orchestrator.SkippedSteps),
	)
	return s, err
}

func (o *Orchestrator) persist(ctx context.Context, s *State) error {
	s.UpdatedAt = o.now()
	if o.store == nil {
		return nil
	}
	// Cancellation must not prevent the terminal snapshot from landing.
	err := o.store.Save(context.WithoutCancel(ctx), s)
	if errors.Is(err, ErrMirrorFailed) {
		o.logger.WarnContext(ctx, "snapshot mirror failed", "workflow_id", s.WorkflowID, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("persist workflow %s: %w", s.WorkflowID, err)
	}
	return nil
}

func (o *Orchestrator) now() time.Time {
	return o.clock().UTC().Round(0)
}

func collectOutput(s *State) map[StepName]json.RawMessage {
	out := make(map[StepName]json.RawMessage, len(s.Orchestrator.CompletedSteps))
	for _, name := range s.Orchestrator.CompletedSteps {
		st := s.Steps[name]
		if st.Success && len(st.Output) > 0 {
			out[name] = st.Output
		}
	}
	return out
}

func succeeded(s *State, name StepName) bool {
	if s == nil {
		return false
	}
	st, ok := s.Steps[name]
	return ok && st.Status == StepCompleted
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
