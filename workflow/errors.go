// Package workflow implements the sequential step orchestrator for the
// plugpep pipeline. It provides the typed run state, the step registry,
// the orchestration loop with failure containment, and snapshot
// persistence used to resume and inspect runs.
package workflow

import "errors"

// Sentinel errors for workflow operations.
var (
	ErrUnknownStep    = errors.New("step not registered")
	ErrDuplicateStep  = errors.New("step already registered")
	ErrStepPanicked   = errors.New("step panicked")
	ErrStepIncomplete = errors.New("step returned without recording an outcome")
	ErrStepFinalized  = errors.New("step outcome already recorded")
	ErrNilState       = errors.New("step returned nil state")
	ErrInvalidState   = errors.New("invalid workflow state")
	ErrStateNotFound  = errors.New("workflow state not found")
	ErrInterrupted    = errors.New("workflow interrupted")
	ErrMirrorFailed   = errors.New("snapshot mirror failed")
)
