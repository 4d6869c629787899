package workflow

import "time"

// Observer receives orchestration events. Implementations must not mutate
// the state they are handed.
type Observer interface {
	RunStarted(s *State)
	StepFinished(s *State, name StepName, status StepStatus, elapsed time.Duration)
	StepSkipped(s *State, name StepName)
	RunFinished(s *State)
}

// NoopObserver ignores every event.
type NoopObserver struct{}

func (NoopObserver) RunStarted(*State) {}
func (NoopObserver) StepFinished(*State, StepName, StepStatus, time.Duration) {}
func (NoopObserver) StepSkipped(*State, StepName) {}
func (NoopObserver) RunFinished(*State) {}
