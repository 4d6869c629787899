package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/plugpep/pkg/repository"
)

const projection = "id, name, stage, instructions, description, active"

var dbErrors = repository.Errors{
	NotFound:  ErrNotFound,
	Duplicate: ErrDuplicate,
	Invalid:   ErrInvalidStage,
}

// Repository serves active instruction overrides from PostgreSQL and falls
// back to the built-in text when a stage has none.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a prompt override repository.
func New(db *sql.DB, logger *slog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With("system", "prompts"),
	}
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var p Prompt
	err := s.Scan(&p.ID, &p.Name, &p.Stage, &p.Instructions, &p.Description, &p.Active)
	return p, err
}

// Instructions returns the active override for stage, or the built-in
// instructions when no override is active.
func (r *Repository) Instructions(ctx context.Context, stage Stage) (string, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return "", err
	}

	q := "SELECT " + projection + " FROM prompts WHERE stage = $1 AND active = true"
	p, err := repository.Get(ctx, r.db, scanPrompt, q, stage)
	if errors.Is(err, sql.ErrNoRows) {
		return Instructions(stage)
	}
	if err != nil {
		return "", fmt.Errorf("query active prompt: %w", dbErrors.Map(err))
	}

	r.logger.DebugContext(ctx, "using prompt override", "stage", stage, "name", p.Name)
	return p.Instructions, nil
}

// Spec returns the built-in spec. Specs are not overridable.
func (r *Repository) Spec(_ context.Context, stage Stage) (string, error) {
	return Spec(stage)
}

// List returns every stored prompt, optionally restricted to one stage.
func (r *Repository) List(ctx context.Context, stage *Stage) ([]Prompt, error) {
	q := "SELECT " + projection + " FROM prompts"
	var args []any
	if stage != nil {
		q += " WHERE stage = $1"
		args = append(args, *stage)
	}
	q += " ORDER BY stage, name"

	prompts, err := repository.Select(ctx, r.db, scanPrompt, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}
	return prompts, nil
}

// Find returns the prompt with the given id.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q := "SELECT " + projection + " FROM prompts WHERE id = $1"

	p, err := repository.Get(ctx, r.db, scanPrompt, q, id)
	if err != nil {
		return nil, dbErrors.Map(err)
	}
	return &p, nil
}

// Create stores a new inactive prompt override.
func (r *Repository) Create(ctx context.Context, cmd CreateCommand) (*Prompt, error) {
	if _, err := ParseStage(string(cmd.Stage)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.Name) == "" || strings.TrimSpace(cmd.Instructions) == "" {
		return nil, fmt.Errorf("create prompt: name and instructions are required")
	}

	q := `
		INSERT INTO prompts(name, stage, instructions, description)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + projection

	p, err := repository.TxResult(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.Get(ctx, tx, scanPrompt, q, cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description)
	})
	if err != nil {
		return nil, dbErrors.Map(err)
	}

	r.logger.InfoContext(ctx, "prompt created", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return &p, nil
}

// Delete removes a prompt override.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.Tx(ctx, r.db, func(tx *sql.Tx) error {
		return repository.ExecOne(ctx, tx, "DELETE FROM prompts WHERE id = $1", id)
	})
	if err != nil {
		return dbErrors.Map(err)
	}

	r.logger.InfoContext(ctx, "prompt deleted", "id", id)
	return nil
}

// Activate makes the prompt the active override for its stage,
// deactivating whichever prompt held that role.
func (r *Repository) Activate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := repository.TxResult(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		findQ := "SELECT " + projection + " FROM prompts WHERE id = $1 FOR UPDATE"
		target, err := repository.Get(ctx, tx, scanPrompt, findQ, id)
		if err != nil {
			return Prompt{}, err
		}

		_, err = tx.ExecContext(
			ctx,
			"UPDATE prompts SET active = false WHERE stage = $1 AND active = true",
			target.Stage,
		)
		if err != nil {
			return Prompt{}, fmt.Errorf("deactivate current: %w", err)
		}

		activateQ := "UPDATE prompts SET active = true WHERE id = $1 RETURNING " + projection
		return repository.Get(ctx, tx, scanPrompt, activateQ, id)
	})
	if err != nil {
		return nil, dbErrors.Map(err)
	}

	r.logger.InfoContext(ctx, "prompt activated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return &p, nil
}

// Clear deactivates the override for stage so the built-in instructions apply.
func (r *Repository) Clear(ctx context.Context, stage Stage) error {
	if _, err := ParseStage(string(stage)); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(
		ctx,
		"UPDATE prompts SET active = false WHERE stage = $1 AND active = true",
		stage,
	); err != nil {
		return fmt.Errorf("clear %s override: %w", stage, err)
	}

	r.logger.InfoContext(ctx, "prompt override cleared", "stage", stage)
	return nil
}
