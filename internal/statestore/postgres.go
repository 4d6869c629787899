package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/plugpep/pkg/repository"
	"github.com/JaimeStill/plugpep/workflow"
)

// ErrDuplicate is returned when an insert collides with an existing run.
var ErrDuplicate = errors.New("workflow state already exists")

var dbErrors = repository.Errors{
	NotFound:  workflow.ErrStateNotFound,
	Duplicate: ErrDuplicate,
	Invalid:   workflow.ErrInvalidState,
}

// Postgres mirrors snapshots into the workflow_states table. The state
// column is json, so the stored document matches the snapshot file.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgres creates a PostgreSQL snapshot mirror.
func NewPostgres(db *sql.DB, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: logger.With("system", "statestore", "backend", "postgres"),
	}
}

// Save upserts the snapshot for s.
func (p *Postgres) Save(ctx context.Context, s *workflow.State) error {
	if s == nil {
		return workflow.ErrNilState
	}

	data, err := workflow.Encode(s)
	if err != nil {
		return err
	}

	q := `
		INSERT INTO workflow_states(workflow_id, workflow_dir, status, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workflow_id) DO UPDATE
		SET status = EXCLUDED.status, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`

	args := []any{
		s.WorkflowID,
		s.WorkflowDir,
		string(s.Orchestrator.WorkflowStatus),
		string(data),
		s.CreatedAt,
		s.UpdatedAt,
	}

	err = repository.Tx(ctx, p.db, func(tx *sql.Tx) error {
		return repository.ExecOne(ctx, tx, q, args...)
	})
	if err != nil {
		return fmt.Errorf("upsert workflow state: %w", dbErrors.Map(err))
	}

	p.logger.DebugContext(ctx, "state mirrored", "workflow_id", s.WorkflowID, "status", s.Orchestrator.WorkflowStatus)
	return nil
}

// Load returns the mirrored snapshot for id.
func (p *Postgres) Load(ctx context.Context, id string) (*workflow.State, error) {
	q := "SELECT state FROM workflow_states WHERE workflow_id = $1"

	s, err := repository.Get(ctx, p.db, scanState, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrStateNotFound, id)
	}
	if err != nil {
		return nil, dbErrors.Map(err)
	}
	return s, nil
}

// List returns mirrored runs, newest first, optionally filtered by status.
func (p *Postgres) List(ctx context.Context, status *workflow.Status) ([]Summary, error) {
	q := "SELECT workflow_id, workflow_dir, status, created_at, updated_at FROM workflow_states"
	var args []any
	if status != nil {
		q += " WHERE status = $1"
		args = append(args, string(*status))
	}
	q += " ORDER BY updated_at DESC"

	runs, err := repository.Select(ctx, p.db, scanSummary, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query workflow states: %w", dbErrors.Map(err))
	}
	return runs, nil
}

func scanState(s repository.Scanner) (*workflow.State, error) {
	var data []byte
	if err := s.Scan(&data); err != nil {
		return nil, err
	}
	return workflow.Decode(data)
}

func scanSummary(s repository.Scanner) (Summary, error) {
	var sum Summary
	var status string
	err := s.Scan(&sum.WorkflowID, &sum.WorkflowDir, &status, &sum.CreatedAt, &sum.UpdatedAt)
	sum.Status = workflow.Status(status)
	sum.CreatedAt = sum.CreatedAt.UTC()
	sum.UpdatedAt = sum.UpdatedAt.UTC()
	return sum, err
}
