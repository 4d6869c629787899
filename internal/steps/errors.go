package steps

import "errors"

// Step-level errors. They are recorded in the step's state rather than
// returned to the orchestrator.
var (
	ErrNoQuery         = errors.New("no query provided")
	ErrMissingUpstream = errors.New("required upstream output missing")
	ErrInvalidPlan     = errors.New("invalid planning response")
	ErrNoGenerator     = errors.New("text generation is not configured")
)
