// Package prompts holds the stage-keyed instructions and response specs sent
// to the text-generation service, with optional instruction overrides stored
// in PostgreSQL.
package prompts

import "github.com/google/uuid"

// Prompt represents a named instruction override for a stage.
// At most one prompt per stage is active.
type Prompt struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Stage        Stage     `json:"stage"`
	Instructions string    `json:"instructions"`
	Description  *string   `json:"description"`
	Active       bool      `json:"active"`
}

// CreateCommand carries the data needed to create a new prompt override.
type CreateCommand struct {
	Name         string  `json:"name"`
	Stage        Stage   `json:"stage"`
	Instructions string  `json:"instructions"`
	Description  *string `json:"description"`
}
