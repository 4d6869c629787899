package steps

import (
	"context"
	"log/slog"

	"github.com/JaimeStill/plugpep/internal/prompts"
	"github.com/JaimeStill/plugpep/pkg/alphafold"
	"github.com/JaimeStill/plugpep/pkg/generation"
	"github.com/JaimeStill/plugpep/pkg/uniprot"
)

// Structures downloads predicted structure artifacts for an accession.
type Structures interface {
	Fetch(ctx context.Context, accession, dir string) (*alphafold.Artifacts, error)
}

// Resolver looks up a protein entry by name.
type Resolver interface {
	Search(ctx context.Context, query string) (*uniprot.Entry, error)
}

// Runtime bundles the dependencies that step functions require.
// Generator and Resolver are optional: without a Generator planning only
// answers catalogue queries and reporting skips the narrative.
type Runtime struct {
	Generator  generation.Generator
	Structures Structures
	Resolver   Resolver
	Prompts    prompts.System
	Logger     *slog.Logger
	Narrative  bool
}

func (rt *Runtime) promptSystem() prompts.System {
	if rt.Prompts == nil {
		return prompts.Defaults()
	}
	return rt.Prompts
}

func (rt *Runtime) log() *slog.Logger {
	if rt.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return rt.Logger
}
