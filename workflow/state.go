package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// StepResult carries the artifacts a step touched and, on success, its
// structured payload.
type StepResult struct {
	InputPath  string
	OutputPath string
	Output     any
}

// NewID returns a fresh workflow identifier.
func NewID() string {
	return "wf-" + uuid.NewString()
}

// Initialize builds the initial state for a run without touching the
// filesystem. Every step in steps is seeded as pending and placed on the
// pending list in order.
func Initialize(id, dir string, input Input, steps []StepName) *State {
	now := time.Now().UTC()
	s := &State{
		WorkflowID:  id,
		WorkflowDir: dir,
		CreatedAt:   now,
		UpdatedAt:   now,
		Input: Input{
			Query:      input.Query,
			TargetName: clonePtr(input.TargetName),
		},
		Steps: make(map[StepName]StepState, len(steps)),
		Orchestrator: Cursor{
			PendingSteps:   cloneSlice(steps),
			CompletedSteps: []StepName{},
			SkippedSteps:   []StepName{},
			WorkflowStatus: StatusInitialized,
		},
		Logs: Logs{
			FilePaths:  []string{},
			Timestamps: map[StepName]time.Time{},
			Warnings:   []string{},
			Errors:     []string{},
		},
	}
	if s.Orchestrator.PendingSteps == nil {
		s.Orchestrator.PendingSteps = []StepName{}
	}
	for _, name := range steps {
		s.Steps[name] = StepState{Status: StepPending}
	}
	s.Orchestrator.refresh()
	return s
}

// NewState creates a run rooted at root/<id>, creating the run directory
// and one artifact subdirectory per step.
func NewState(root string, input Input, steps []StepName) (*State, error) {
	id := NewID()
	dir, err := filepath.Abs(filepath.Join(root, id))
	if err != nil {
		return nil, fmt.Errorf("resolve workflow dir: %w", err)
	}

	dirs := []string{dir}
	for _, name := range steps {
		dirs = append(dirs, filepath.Join(dir, string(name)))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create workflow dir: %w", err)
		}
	}

	return Initialize(id, dir, input, steps), nil
}

// StepDir returns the artifact directory for name within the run.
func (s *State) StepDir(name StepName) string {
	return filepath.Join(s.WorkflowDir, string(name))
}

// RecordSuccess marks name completed with the given artifacts and payload.
// The new StepState is built in full before it replaces the previous one.
func RecordSuccess(s *State, name StepName, res StepResult) error {
	if err := checkPending(s, name); err != nil {
		return err
	}

	var payload json.RawMessage
	if res.Output != nil {
		data, err := json.Marshal(res.Output)
		if err != nil {
			return fmt.Errorf("encode %s output: %w", name, err)
		}
		payload = data
	}

	prev := s.Steps[name]
	now := time.Now().UTC()
	next := StepState{
		Success:    true,
		Status:     StepCompleted,
		InputPath:  optional(res.InputPath),
		OutputPath: optional(res.OutputPath),
		Output:     payload,
		StartedAt:  clonePtr(prev.StartedAt),
		FinishedAt: &now,
	}

	s.Steps[name] = next
	if res.InputPath != "" {
		s.Logs.FilePaths = append(s.Logs.FilePaths, res.InputPath)
	}
	if res.OutputPath != "" {
		s.Logs.FilePaths = append(s.Logs.FilePaths, res.OutputPath)
	}
	s.stamp(name, now)
	return nil
}

// RecordFailure marks name failed with cause. Artifact paths are kept when
// known; no payload is stored.
func RecordFailure(s *State, name StepName, cause error, res StepResult) error {
	if err := checkPending(s, name); err != nil {
		return err
	}
	if cause == nil {
		cause = fmt.Errorf("%s failed", name)
	}

	prev := s.Steps[name]
	now := time.Now().UTC()
	msg := cause.Error()
	next := StepState{
		Success:    false,
		Status:     StepFailed,
		Error:      &msg,
		InputPath:  optional(res.InputPath),
		OutputPath: optional(res.OutputPath),
		StartedAt:  clonePtr(prev.StartedAt),
		FinishedAt: &now,
	}

	s.Steps[name] = next
	s.Logs.Errors = append(s.Logs.Errors, fmt.Sprintf("%s error: %s", name, msg))
	s.stamp(name, now)
	return nil
}

// DecodeOutput unmarshals the payload recorded for name into T. The bool
// result is false when the step has not completed successfully.
func DecodeOutput[T any](s *State, name StepName) (T, bool, error) {
	var out T
	st, ok := s.Steps[name]
	if !ok || !st.Success || len(st.Output) == 0 {
		return out, false, nil
	}
	if err := json.Unmarshal(st.Output, &out); err != nil {
		return out, false, fmt.Errorf("decode %s output: %w", name, err)
	}
	return out, true, nil
}

func checkPending(s *State, name StepName) error {
	if s == nil {
		return ErrNilState
	}
	if s.Steps == nil {
		s.Steps = make(map[StepName]StepState)
	}
	if prev, ok := s.Steps[name]; ok && prev.Finished() {
		return fmt.Errorf("%w: %s is %s", ErrStepFinalized, name, prev.Status)
	}
	return nil
}

func (s *State) stamp(name StepName, at time.Time) {
	if s.Logs.Timestamps == nil {
		s.Logs.Timestamps = make(map[StepName]time.Time)
	}
	s.Logs.Timestamps[name] = at
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
