package workflow

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// StepName identifies one unit of work in the fixed pipeline.
type StepName string

// The fixed set of pipeline steps, in execution order.
const (
	StepPlanning   StepName = "planning"
	StepRetrieval  StepName = "retrieval"
	StepExtraction StepName = "extraction"
	StepReporting  StepName = "reporting"
)

var defaultSteps = []StepName{
	StepPlanning,
	StepRetrieval,
	StepExtraction,
	StepReporting,
}

// DefaultSteps returns the canonical step order.
func DefaultSteps() []StepName {
	return slices.Clone(defaultSteps)
}

// Status is the coarse lifecycle of a workflow run.
type Status string

// Workflow statuses. Completed and failed are terminal.
const (
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

var statuses = []Status{
	StatusInitialized,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// UnmarshalJSON validates that the decoded string is a known status.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := Status(raw)
	if !slices.Contains(statuses, v) {
		return fmt.Errorf("%w: unknown workflow status %q", ErrInvalidState, raw)
	}
	*s = v
	return nil
}

// StepStatus is the outcome of a single step.
type StepStatus string

// Step statuses. A step leaves pending exactly once.
const (
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

var stepStatuses = []StepStatus{
	StepPending,
	StepCompleted,
	StepFailed,
}

// UnmarshalJSON validates that the decoded string is a known step status.
func (s *StepStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := StepStatus(raw)
	if !slices.Contains(stepStatuses, v) {
		return fmt.Errorf("%w: unknown step status %q", ErrInvalidState, raw)
	}
	*s = v
	return nil
}

// Input is the original request that started the run.
type Input struct {
	Query      string  `json:"query"`
	TargetName *string `json:"target_name"`
}

// StepState records the outcome of one step and the artifacts it touched.
// Success is meaningful only once Status has left pending. Error is set
// iff the step failed; Output is set only on success.
type StepState struct {
	Success    bool            `json:"success"`
	Status     StepStatus      `json:"status"`
	Error      *string         `json:"error"`
	InputPath  *string         `json:"input_path"`
	OutputPath *string         `json:"output_path"`
	Output     json.RawMessage `json:"output,omitempty"`
	StartedAt  *time.Time      `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at"`
}

// Finished reports whether the step has left the pending status.
func (s StepState) Finished() bool {
	return s.Status == StepCompleted || s.Status == StepFailed
}

func (s StepState) clone() StepState {
	out := s
	out.Error = clonePtr(s.Error)
	out.InputPath = clonePtr(s.InputPath)
	out.OutputPath = clonePtr(s.OutputPath)
	out.StartedAt = clonePtr(s.StartedAt)
	out.FinishedAt = clonePtr(s.FinishedAt)
	if s.Output != nil {
		out.Output = slices.Clone(s.Output)
	}
	return out
}

// Cursor is the orchestrator's position within the run. Only the
// orchestrator writes it. CurrentStep is the head of PendingSteps and
// NextStep the element after it; both are nil when there is nothing left.
type Cursor struct {
	CurrentStep    *StepName  `json:"current_step"`
	NextStep       *StepName  `json:"next_step"`
	PendingSteps   []StepName `json:"pending_steps"`
	CompletedSteps []StepName `json:"completed_steps"`
	SkippedSteps   []StepName `json:"skipped_steps"`
	WorkflowStatus Status     `json:"workflow_status"`
	LastError      *string    `json:"last_error"`
}

func (c Cursor) clone() Cursor {
	out := c
	out.CurrentStep = clonePtr(c.CurrentStep)
	out.NextStep = clonePtr(c.NextStep)
	out.PendingSteps = cloneSlice(c.PendingSteps)
	out.CompletedSteps = cloneSlice(c.CompletedSteps)
	out.SkippedSteps = cloneSlice(c.SkippedSteps)
	out.LastError = clonePtr(c.LastError)
	return out
}

// refresh recomputes CurrentStep and NextStep from PendingSteps.
func (c *Cursor) refresh() {
	c.CurrentStep = nil
	c.NextStep = nil
	if len(c.PendingSteps) > 0 {
		head := c.PendingSteps[0]
		c.CurrentStep = &head
	}
	if len(c.PendingSteps) > 1 {
		next := c.PendingSteps[1]
		c.NextStep = &next
	}
}

// Logs is the append-only audit trail of a run.
type Logs struct {
	FilePaths  []string               `json:"file_paths"`
	Timestamps map[StepName]time.Time `json:"timestamps"`
	Warnings   []string               `json:"warnings"`
	Errors     []string               `json:"errors"`
}

func (l Logs) clone() Logs {
	return Logs{
		FilePaths:  cloneSlice(l.FilePaths),
		Timestamps: cloneMap(l.Timestamps),
		Warnings:   cloneSlice(l.Warnings),
		Errors:     cloneSlice(l.Errors),
	}
}

// State is the aggregate record of one workflow run. WorkflowID and
// WorkflowDir are fixed at creation.
type State struct {
	WorkflowID   string                       `json:"workflow_id"`
	WorkflowDir  string                       `json:"workflow_dir"`
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
	Input        Input                        `json:"input"`
	Steps        map[StepName]StepState       `json:"steps"`
	Orchestrator Cursor                       `json:"orchestrator"`
	Logs         Logs                         `json:"logs"`
	Output       map[StepName]json.RawMessage `json:"output"`
}

// Step returns the recorded state for name.
func (s *State) Step(name StepName) (StepState, bool) {
	st, ok := s.Steps[name]
	return st, ok
}

// Clone returns a deep copy of s. The copy always has a non-nil Steps map.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Input.TargetName = clonePtr(s.Input.TargetName)
	out.Steps = make(map[StepName]StepState, len(s.Steps))
	for name, st := range s.Steps {
		out.Steps[name] = st.clone()
	}
	out.Orchestrator = s.Orchestrator.clone()
	out.Logs = s.Logs.clone()
	if s.Output != nil {
		out.Output = make(map[StepName]json.RawMessage, len(s.Output))
		for name, raw := range s.Output {
			out.Output[name] = slices.Clone(raw)
		}
	}
	return &out
}

// Validate checks the structural invariants of the cursor: every step
// name appears at most once across pending, completed and skipped.
func (s *State) Validate() error {
	if s.WorkflowID == "" {
		return fmt.Errorf("%w: workflow_id required", ErrInvalidState)
	}
	seen := make(map[StepName]string)
	check := func(list []StepName, label string) error {
		for _, name := range list {
			if prev, ok := seen[name]; ok {
				return fmt.Errorf("%w: step %s appears in both %s and %s", ErrInvalidState, name, prev, label)
			}
			seen[name] = label
		}
		return nil
	}
	if err := check(s.Orchestrator.PendingSteps, "pending_steps"); err != nil {
		return err
	}
	if err := check(s.Orchestrator.CompletedSteps, "completed_steps"); err != nil {
		return err
	}
	return check(s.Orchestrator.SkippedSteps, "skipped_steps")
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[T any](values []T) []T {
	if values == nil {
		return nil
	}
	out := make([]T, len(values))
	copy(out, values)
	return out
}

func cloneMap[K comparable, V any](values map[K]V) map[K]V {
	if values == nil {
		return nil
	}
	return maps.Clone(values)
}
