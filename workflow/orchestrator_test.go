package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/plugpep/workflow"
)

type payload struct {
	Value string `json:"value"`
}

func succeed(name workflow.StepName) workflow.Step {
	return workflow.Step{
		Name: name,
		Func: func(_ context.Context, s *workflow.State) (*workflow.State, error) {
			return s, workflow.RecordSuccess(s, name, workflow.StepResult{
				OutputPath: "/tmp/" + string(name),
				Output:     payload{Value: string(name)},
			})
		},
	}
}

func fail(name workflow.StepName, cause string) workflow.Step {
	return workflow.Step{
		Name: name,
		Func: func(_ context.Context, s *workflow.State) (*workflow.State, error) {
			return s, workflow.RecordFailure(s, name, errors.New(cause), workflow.StepResult{})
		},
	}
}

type memoryStore struct {
	mu    sync.Mutex
	saves []*workflow.State
}

func (m *memoryStore) Save(_ context.Context, s *workflow.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, s.Clone())
	return nil
}

func (m *memoryStore) Load(_ context.Context, id string) (*workflow.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saves) - 1; i >= 0; i-- {
		if m.saves[i].WorkflowID == id {
			return m.saves[i].Clone(), nil
		}
	}
	return nil, workflow.ErrStateNotFound
}

func (m *memoryStore) last() *workflow.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saves) == 0 {
		return nil
	}
	return m.saves[len(m.saves)-1]
}

func newState(steps ...workflow.StepName) *workflow.State {
	return workflow.Initialize("wf-test", "/tmp/wf-test", workflow.Input{Query: "q"}, steps)
}

func newOrchestrator(t *testing.T, steps []workflow.Step, opts ...workflow.Option) *workflow.Orchestrator {
	t.Helper()
	reg, err := workflow.NewRegistry(steps...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	o, err := workflow.New(reg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestRunAllSucceed(t *testing.T) {
	for _, n := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("%d steps", n), func(t *testing.T) {
			names := workflow.DefaultSteps()[:n]
			var steps []workflow.Step
			for _, name := range names {
				steps = append(steps, succeed(name))
			}

			o := newOrchestrator(t, steps)
			final, err := o.Run(context.Background(), newState(names...))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			c := final.Orchestrator
			if c.WorkflowStatus != workflow.StatusCompleted {
				t.Errorf("status = %s, want completed", c.WorkflowStatus)
			}
			if len(c.PendingSteps) != 0 {
				t.Errorf("pending = %v, want empty", c.PendingSteps)
			}
			if !slices.Equal(c.CompletedSteps, names) {
				t.Errorf("completed = %v, want %v", c.CompletedSteps, names)
			}
			if c.CurrentStep != nil || c.NextStep != nil {
				t.Error("cursor should be cleared")
			}
			if len(final.Output) != n {
				t.Errorf("output entries = %d, want %d", len(final.Output), n)
			}
			for _, name := range names {
				st := final.Steps[name]
				if !st.Success || st.Status != workflow.StepCompleted || st.Error != nil {
					t.Errorf("step %s = %+v, want success", name, st)
				}
			}
		})
	}
}

func TestRunHaltsOnStepFailure(t *testing.T) {
	names := workflow.DefaultSteps()
	for k := 1; k <= len(names); k++ {
		t.Run(fmt.Sprintf("step %d fails", k), func(t *testing.T) {
			var steps []workflow.Step
			for i, name := range names {
				if i == k-1 {
					steps = append(steps, fail(name, "not found"))
				} else {
					steps = append(steps, succeed(name))
				}
			}

			o := newOrchestrator(t, steps)
			final, err := o.Run(context.Background(), newState(names...))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			c := final.Orchestrator
			if c.WorkflowStatus != workflow.StatusFailed {
				t.Errorf("status = %s, want failed", c.WorkflowStatus)
			}
			if len(c.CompletedSteps) != k-1 {
				t.Errorf("completed = %v, want %d entries", c.CompletedSteps, k-1)
			}
			if c.CurrentStep == nil || *c.CurrentStep != names[k-1] {
				t.Errorf("current step = %v, want %s", c.CurrentStep, names[k-1])
			}

			st := final.Steps[names[k-1]]
			if st.Success || st.Error == nil || *st.Error != "not found" {
				t.Errorf("failed step = %+v", st)
			}
			if c.LastError == nil || !strings.Contains(*c.LastError, "not found") {
				t.Errorf("last error = %v", c.LastError)
			}
			for _, name := range names[k:] {
				if final.Steps[name].Status != workflow.StepPending {
					t.Errorf("step %s ran after failure", name)
				}
			}
			if final.Output != nil {
				t.Error("output should not be populated on failure")
			}
		})
	}
}

func TestRunContinuesOnFailure(t *testing.T) {
	var ran []workflow.StepName
	track := func(step workflow.Step) workflow.Step {
		fn := step.Func
		step.Func = func(ctx context.Context, s *workflow.State) (*workflow.State, error) {
			ran = append(ran, step.Name)
			return fn(ctx, s)
		}
		return step
	}

	steps := []workflow.Step{
		track(succeed(workflow.StepPlanning)),
		track(fail(workflow.StepRetrieval, "service unavailable")),
		track(succeed(workflow.StepExtraction)),
	}
	o := newOrchestrator(t, steps, workflow.WithPolicy(workflow.ContinueOnFailure))

	final, err := o.Run(context.Background(), newState(workflow.StepPlanning, workflow.StepRetrieval, workflow.StepExtraction))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(ran) != 3 {
		t.Errorf("ran = %v, want all three steps", ran)
	}
	c := final.Orchestrator
	if c.WorkflowStatus != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", c.WorkflowStatus)
	}
	if len(c.CompletedSteps) != 3 || len(c.PendingSteps) != 0 {
		t.Errorf("cursor = %+v", c)
	}
	if c.LastError == nil || !strings.HasPrefix(*c.LastError, "retrieval") {
		t.Errorf("last error = %v", c.LastError)
	}
}

func TestRunRegistryMiss(t *testing.T) {
	o := newOrchestrator(t, []workflow.Step{
		succeed(workflow.StepPlanning),
		succeed(workflow.StepReporting),
	})

	s := newState(workflow.StepPlanning, "bogus", workflow.StepReporting)
	final, err := o.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	c := final.Orchestrator
	if c.WorkflowStatus != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", c.WorkflowStatus)
	}
	want := []workflow.StepName{workflow.StepPlanning, workflow.StepReporting}
	if !slices.Equal(c.CompletedSteps, want) {
		t.Errorf("completed = %v, want %v", c.CompletedSteps, want)
	}
	if !slices.Equal(c.SkippedSteps, []workflow.StepName{"bogus"}) {
		t.Errorf("skipped = %v", c.SkippedSteps)
	}
	if len(final.Logs.Warnings) != 1 || !strings.Contains(final.Logs.Warnings[0], "bogus") {
		t.Errorf("warnings = %v", final.Logs.Warnings)
	}
}

func TestRunContainsFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   workflow.StepFunc
		want error
	}{
		{
			"returned error",
			func(_ context.Context, s *workflow.State) (*workflow.State, error) {
				s.Logs.Warnings = append(s.Logs.Warnings, "partial")
				return s, errors.New("boom")
			},
			nil,
		},
		{
			"panic",
			func(_ context.Context, s *workflow.State) (*workflow.State, error) {
				s.Logs.Warnings = append(s.Logs.Warnings, "partial")
				panic("unexpected")
			},
			workflow.ErrStepPanicked,
		},
		{
			"nil state",
			func(_ context.Context, _ *workflow.State) (*workflow.State, error) {
				return nil, nil
			},
			workflow.ErrNilState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{}
			o := newOrchestrator(t, []workflow.Step{
				succeed(workflow.StepPlanning),
				{Name: workflow.StepRetrieval, Func: tt.fn},
				succeed(workflow.StepExtraction),
			}, workflow.WithStore(store))

			final, err := o.Run(context.Background(), newState(workflow.StepPlanning, workflow.StepRetrieval, workflow.StepExtraction))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			c := final.Orchestrator
			if c.WorkflowStatus != workflow.StatusFailed {
				t.Errorf("status = %s, want failed", c.WorkflowStatus)
			}
			if c.LastError == nil {
				t.Fatal("last error not recorded")
			}
			if !slices.Equal(c.CompletedSteps, []workflow.StepName{workflow.StepPlanning}) {
				t.Errorf("completed = %v", c.CompletedSteps)
			}
			if slices.Contains(final.Logs.Warnings, "partial") {
				t.Error("partial mutation leaked into final state")
			}
			if final.Steps[workflow.StepRetrieval].Status != workflow.StepFailed {
				t.Errorf("retrieval status = %s, want failed", final.Steps[workflow.StepRetrieval].Status)
			}
			if final.Steps[workflow.StepExtraction].Status != workflow.StepPending {
				t.Error("extraction should not run")
			}

			last := store.last()
			if last == nil || last.Orchestrator.WorkflowStatus != workflow.StatusFailed {
				t.Error("terminal snapshot not persisted")
			}
			if tt.want != nil && !strings.Contains(*c.LastError, tt.want.Error()) {
				t.Errorf("last error = %q, want %q", *c.LastError, tt.want)
			}
		})
	}
}

func TestRunIncompleteStep(t *testing.T) {
	o := newOrchestrator(t, []workflow.Step{{
		Name: workflow.StepPlanning,
		Func: func(_ context.Context, s *workflow.State) (*workflow.State, error) {
			return s, nil
		},
	}})

	final, err := o.Run(context.Background(), newState(workflow.StepPlanning))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	st := final.Steps[workflow.StepPlanning]
	if st.Status != workflow.StepFailed || st.Error == nil {
		t.Fatalf("step = %+v, want failed", st)
	}
	if !strings.Contains(*st.Error, workflow.ErrStepIncomplete.Error()) {
		t.Errorf("error = %q", *st.Error)
	}
}

func TestRunIgnoresCursorWrites(t *testing.T) {
	o := newOrchestrator(t, []workflow.Step{
		{
			Name: workflow.StepPlanning,
			Func: func(_ context.Context, s *workflow.State) (*workflow.State, error) {
				s.Orchestrator.PendingSteps = nil
				s.Orchestrator.WorkflowStatus = workflow.StatusCompleted
				s.WorkflowID = "hijacked"
				return s, workflow.RecordSuccess(s, workflow.StepPlanning, workflow.StepResult{})
			},
		},
		succeed(workflow.StepRetrieval),
	})

	final, err := o.Run(context.Background(), newState(workflow.StepPlanning, workflow.StepRetrieval))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if final.WorkflowID != "wf-test" {
		t.Errorf("workflow id = %s", final.WorkflowID)
	}
	if len(final.Orchestrator.CompletedSteps) != 2 {
		t.Errorf("completed = %v, want both steps", final.Orchestrator.CompletedSteps)
	}
}

func TestRunIdempotent(t *testing.T) {
	calls := 0
	o := newOrchestrator(t, []workflow.Step{{
		Name: workflow.StepPlanning,
		Func: func(_ context.Context, s *workflow.State) (*workflow.State, error) {
			calls++
			return s, workflow.RecordSuccess(s, workflow.StepPlanning, workflow.StepResult{})
		},
	}})

	first, err := o.Run(context.Background(), newState(workflow.StepPlanning))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	snapshot := first.Clone()

	second, err := o.Run(context.Background(), first)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if calls != 1 {
		t.Errorf("step ran %d times, want 1", calls)
	}
	if second != first {
		t.Error("terminal state should be returned as is")
	}
	a, _ := workflow.Encode(snapshot)
	b, _ := workflow.Encode(second)
	if string(a) != string(b) {
		t.Error("terminal state changed on second run")
	}
}

func TestRunEmptyPending(t *testing.T) {
	o := newOrchestrator(t, nil)
	final, err := o.Run(context.Background(), newState())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if final.Orchestrator.WorkflowStatus != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", final.Orchestrator.WorkflowStatus)
	}
}

func TestRunDoesNotModifyInput(t *testing.T) {
	o := newOrchestrator(t, []workflow.Step{succeed(workflow.StepPlanning)})
	s := newState(workflow.StepPlanning)

	if _, err := o.Run(context.Background(), s); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s.Orchestrator.WorkflowStatus != workflow.StatusInitialized {
		t.Errorf("input status = %s, want initialized", s.Orchestrator.WorkflowStatus)
	}
	if s.Steps[workflow.StepPlanning].Status != workflow.StepPending {
		t.Error("input step state modified")
	}
}

func TestRunPersistsEveryTransition(t *testing.T) {
	store := &memoryStore{}
	names := workflow.DefaultSteps()
	var steps []workflow.Step
	for _, name := range names {
		steps = append(steps, succeed(name))
	}
	steps = append(steps[:1], steps[2:]...)

	o := newOrchestrator(t, steps, workflow.WithStore(store))
	if _, err := o.Run(context.Background(), newState(names...)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// start, planning, skip retrieval, extraction, terminal
	if len(store.saves) != 5 {
		t.Fatalf("saves = %d, want 5", len(store.saves))
	}
	if store.saves[0].Orchestrator.WorkflowStatus != workflow.StatusRunning {
		t.Errorf("first save status = %s", store.saves[0].Orchestrator.WorkflowStatus)
	}
	for i := 1; i < len(store.saves); i++ {
		prev := len(store.saves[i-1].Orchestrator.PendingSteps)
		cur := len(store.saves[i].Orchestrator.PendingSteps)
		if cur != prev-1 {
			t.Errorf("save %d: pending %d -> %d", i, prev, cur)
		}
	}
	if store.last().Orchestrator.WorkflowStatus != workflow.StatusCompleted {
		t.Error("final save should be completed")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	store := &memoryStore{}
	o := newOrchestrator(t, []workflow.Step{
		{
			Name: workflow.StepPlanning,
			Func: func(_ context.Context, s *workflow.State) (*workflow.State, error) {
				cancel()
				return s, workflow.RecordSuccess(s, workflow.StepPlanning, workflow.StepResult{})
			},
		},
		succeed(workflow.StepRetrieval),
	}, workflow.WithStore(store))

	final, err := o.Run(ctx, newState(workflow.StepPlanning, workflow.StepRetrieval))
	if !errors.Is(err, workflow.ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want ErrInterrupted", err)
	}

	c := final.Orchestrator
	if c.WorkflowStatus != workflow.StatusRunning {
		t.Errorf("status = %s, want running", c.WorkflowStatus)
	}
	if !slices.Equal(c.CompletedSteps, []workflow.StepName{workflow.StepPlanning}) {
		t.Errorf("completed = %v", c.CompletedSteps)
	}
	if !slices.Equal(c.PendingSteps, []workflow.StepName{workflow.StepRetrieval}) {
		t.Errorf("pending = %v", c.PendingSteps)
	}
	if c.CurrentStep == nil || *c.CurrentStep != workflow.StepRetrieval {
		t.Errorf("current step = %v, want retrieval", c.CurrentStep)
	}
	if c.LastError == nil || !strings.Contains(*c.LastError, "retrieval") {
		t.Errorf("last error = %v", c.LastError)
	}
	if final.Steps[workflow.StepRetrieval].Status != workflow.StepPending {
		t.Error("retrieval should remain pending")
	}

	last := store.last()
	if last.Orchestrator.WorkflowStatus != workflow.StatusRunning {
		t.Errorf("last snapshot status = %s, want running", last.Orchestrator.WorkflowStatus)
	}
	if !slices.Equal(last.Orchestrator.PendingSteps, []workflow.StepName{workflow.StepRetrieval}) {
		t.Errorf("last snapshot pending = %v", last.Orchestrator.PendingSteps)
	}

	resumed, err := o.Run(context.Background(), last)
	if err != nil {
		t.Fatalf("resumed Run() error = %v", err)
	}
	rc := resumed.Orchestrator
	if rc.WorkflowStatus != workflow.StatusCompleted {
		t.Errorf("resumed status = %s, want completed", rc.WorkflowStatus)
	}
	if rc.LastError != nil {
		t.Errorf("resumed last error = %q, want cleared", *rc.LastError)
	}
	if !slices.Equal(rc.CompletedSteps, []workflow.StepName{workflow.StepPlanning, workflow.StepRetrieval}) {
		t.Errorf("resumed completed = %v", rc.CompletedSteps)
	}
}

func TestRunCancelledDuringStep(t *testing.T) {
	tests := []struct {
		name string
		fn   workflow.StepFunc
	}{
		{
			"step error",
			func(ctx context.Context, s *workflow.State) (*workflow.State, error) {
				return s, ctx.Err()
			},
		},
		{
			"recorded failure",
			func(ctx context.Context, s *workflow.State) (*workflow.State, error) {
				return s, workflow.RecordFailure(s, workflow.StepRetrieval, ctx.Err(), workflow.StepResult{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			store := &memoryStore{}
			o := newOrchestrator(t, []workflow.Step{
				succeed(workflow.StepPlanning),
				{
					Name: workflow.StepRetrieval,
					Func: func(ctx context.Context, s *workflow.State) (*workflow.State, error) {
						cancel()
						return tt.fn(ctx, s)
					},
				},
			}, workflow.WithStore(store))

			final, err := o.Run(ctx, newState(workflow.StepPlanning, workflow.StepRetrieval))
			if !errors.Is(err, workflow.ErrInterrupted) {
				t.Fatalf("Run() error = %v, want ErrInterrupted", err)
			}
			if final.Orchestrator.WorkflowStatus != workflow.StatusRunning {
				t.Errorf("status = %s, want running", final.Orchestrator.WorkflowStatus)
			}
			st := final.Steps[workflow.StepRetrieval]
			if st.Status != workflow.StepPending || st.Error != nil || st.StartedAt != nil {
				t.Errorf("retrieval = %+v, want untouched", st)
			}
			if !slices.Equal(final.Orchestrator.PendingSteps, []workflow.StepName{workflow.StepRetrieval}) {
				t.Errorf("pending = %v", final.Orchestrator.PendingSteps)
			}
			if store.last().Orchestrator.WorkflowStatus != workflow.StatusRunning {
				t.Error("interrupted snapshot not persisted")
			}
		})
	}
}

func TestRunNilStepsMap(t *testing.T) {
	store := &memoryStore{}
	o := newOrchestrator(t, []workflow.Step{
		succeed(workflow.StepPlanning),
		succeed(workflow.StepRetrieval),
	}, workflow.WithStore(store))

	s := newState(workflow.StepPlanning, workflow.StepRetrieval)
	s.Steps = nil

	final, err := o.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if final.Orchestrator.WorkflowStatus != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", final.Orchestrator.WorkflowStatus)
	}
	for _, name := range []workflow.StepName{workflow.StepPlanning, workflow.StepRetrieval} {
		if !final.Steps[name].Success {
			t.Errorf("step %s = %+v, want success", name, final.Steps[name])
		}
	}
	if store.last().Orchestrator.WorkflowStatus != workflow.StatusCompleted {
		t.Error("terminal snapshot not persisted")
	}
}

func TestRunDecodedNullSteps(t *testing.T) {
	data, err := workflow.Encode(newState(workflow.StepPlanning))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	raw["steps"] = json.RawMessage("null")
	data, err = json.Marshal(raw)
	if err != nil {
		t.Fatal(err)
	}

	s, err := workflow.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if s.Steps == nil {
		t.Fatal("decoded steps map is nil")
	}

	o := newOrchestrator(t, []workflow.Step{succeed(workflow.StepPlanning)})
	final, err := o.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if final.Orchestrator.WorkflowStatus != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", final.Orchestrator.WorkflowStatus)
	}
}

func TestRunToleratesMirrorFailure(t *testing.T) {
	primary := &memoryStore{}
	store := workflow.NewMultiStore(primary, failingStore{errors.New("redis down")})

	o := newOrchestrator(t, []workflow.Step{
		succeed(workflow.StepPlanning),
		succeed(workflow.StepRetrieval),
	}, workflow.WithStore(store))

	final, err := o.Run(context.Background(), newState(workflow.StepPlanning, workflow.StepRetrieval))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if final.Orchestrator.WorkflowStatus != workflow.StatusCompleted {
		t.Errorf("status = %s, want completed", final.Orchestrator.WorkflowStatus)
	}
	if primary.last().Orchestrator.WorkflowStatus != workflow.StatusCompleted {
		t.Error("primary missing terminal snapshot")
	}
}

func TestRunPrimaryStoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	o := newOrchestrator(t, []workflow.Step{succeed(workflow.StepPlanning)},
		workflow.WithStore(workflow.NewMultiStore(failingStore{boom}, &memoryStore{})))

	_, err := o.Run(context.Background(), newState(workflow.StepPlanning))
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

type recordingObserver struct {
	workflow.NoopObserver
	events []string
}

func (r *recordingObserver) RunStarted(*workflow.State) {
	r.events = append(r.events, "start")
}

func (r *recordingObserver) StepFinished(_ *workflow.State, name workflow.StepName, status workflow.StepStatus, _ time.Duration) {
	r.events = append(r.events, string(name)+":"+string(status))
}

func (r *recordingObserver) StepSkipped(_ *workflow.State, name workflow.StepName) {
	r.events = append(r.events, string(name)+":skipped")
}

func (r *recordingObserver) RunFinished(s *workflow.State) {
	r.events = append(r.events, "finish:"+string(s.Orchestrator.WorkflowStatus))
}

func TestRunObserver(t *testing.T) {
	obs := &recordingObserver{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := newOrchestrator(t, []workflow.Step{
		succeed(workflow.StepPlanning),
		fail(workflow.StepExtraction, "no atoms"),
	}, workflow.WithObserver(obs), workflow.WithClock(func() time.Time { return fixed }))

	final, err := o.Run(context.Background(), newState(workflow.StepPlanning, workflow.StepRetrieval, workflow.StepExtraction))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{
		"start",
		"planning:completed",
		"retrieval:skipped",
		"extraction:failed",
		"finish:failed",
	}
	if !slices.Equal(obs.events, want) {
		t.Errorf("events = %v, want %v", obs.events, want)
	}
	if !final.UpdatedAt.Equal(fixed) {
		t.Errorf("updated at = %v, want %v", final.UpdatedAt, fixed)
	}
	if st := final.Steps[workflow.StepPlanning]; st.StartedAt == nil || !st.StartedAt.Equal(fixed) {
		t.Errorf("started at = %v", st.StartedAt)
	}
}

func TestNewRejectsPolicy(t *testing.T) {
	reg := workflow.MustRegistry()
	if _, err := workflow.New(reg, workflow.WithPolicy("sometimes")); err == nil {
		t.Error("expected error for unknown policy")
	}
	if _, err := workflow.New(nil); err == nil {
		t.Error("expected error for nil registry")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    workflow.Policy
		wantErr bool
	}{
		{"", workflow.HaltOnFailure, false},
		{"halt", workflow.HaltOnFailure, false},
		{"continue", workflow.ContinueOnFailure, false},
		{"retry", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := workflow.ParsePolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePolicy(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
