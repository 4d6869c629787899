// Package statestore provides secondary workflow snapshot mirrors backed by
// PostgreSQL and Redis. Both implement workflow.Store and are combined with
// the primary file store through workflow.MultiStore.
package statestore

import (
	"errors"
	"time"

	"github.com/JaimeStill/plugpep/workflow"
)

// Errors returned by the mirrors.
var (
	ErrLocked   = errors.New("workflow run is locked by another process")
	ErrNotOwner = errors.New("run lock is not held by this holder")
)

var (
	_ workflow.Store = (*Postgres)(nil)
	_ workflow.Store = (*Redis)(nil)
)

// Summary is the listing view of a mirrored run.
type Summary struct {
	WorkflowID  string          `json:"workflow_id"`
	WorkflowDir string          `json:"workflow_dir"`
	Status      workflow.Status `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
