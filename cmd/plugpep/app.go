package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/plugpep/internal/config"
	"github.com/JaimeStill/plugpep/internal/infrastructure"
	"github.com/JaimeStill/plugpep/internal/steps"
	"github.com/JaimeStill/plugpep/workflow"
)

type app struct {
	cfg   *config.Config
	infra *infrastructure.Infrastructure
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// setup loads configuration and starts every enabled system. Callers must
// close the returned app.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	infra, err := infrastructure.New(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	if err := infra.Start(); err != nil {
		infra.Shutdown()
		return nil, err
	}

	infra.Logger.Debug("plugpep started", "version", cfg.Version, "env", cfg.Env())
	return &app{cfg: cfg, infra: infra}, nil
}

func (a *app) close() {
	if err := a.infra.Shutdown(); err != nil {
		a.infra.Logger.Warn("shutdown incomplete", "error", err)
	}
}

func (a *app) registry() (*workflow.Registry, error) {
	rt, err := a.infra.Runtime()
	if err != nil {
		return nil, err
	}
	return steps.Registry(rt)
}

func (a *app) orchestrator(root string) (*workflow.Orchestrator, error) {
	registry, err := a.registry()
	if err != nil {
		return nil, err
	}
	return a.infra.Orchestrator(registry, root)
}

// execute runs s to a terminal status, then exports metrics and archives the
// run directory when those systems are enabled. Export failures are logged;
// they do not change the run outcome.
func (a *app) execute(cmd *cobra.Command, s *workflow.State, root string) (*workflow.State, error) {
	orch, err := a.orchestrator(root)
	if err != nil {
		return nil, err
	}

	final, err := orch.Run(cmd.Context(), s)
	if errors.Is(err, workflow.ErrInterrupted) && final != nil {
		summarize(cmd, final)
		fmt.Fprintf(cmd.OutOrStdout(), "resume with: plugpep resume %s\n", statePath(final))
		return final, err
	}
	if err != nil {
		return final, err
	}

	a.export(context.WithoutCancel(cmd.Context()), final)
	return final, nil
}

func (a *app) export(ctx context.Context, s *workflow.State) {
	logger := a.infra.Logger

	if a.infra.Metrics != nil {
		path, err := a.infra.Metrics.WriteRun(s)
		if err != nil {
			logger.WarnContext(ctx, "metrics export failed", "workflow_id", s.WorkflowID, "error", err)
		} else {
			logger.DebugContext(ctx, "metrics written", "path", path)
		}
	}

	if arc := a.infra.Archiver(); arc != nil {
		if _, err := arc.Archive(ctx, s); err != nil {
			logger.WarnContext(ctx, "archive failed", "workflow_id", s.WorkflowID, "error", err)
		}
	}
}

func summarize(cmd *cobra.Command, s *workflow.State) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "workflow %s %s\n", s.WorkflowID, s.Orchestrator.WorkflowStatus)
	fmt.Fprintf(out, "state: %s\n", statePath(s))
	if s.Orchestrator.LastError != nil {
		fmt.Fprintf(out, "error: %s\n", *s.Orchestrator.LastError)
	}

	if s.Orchestrator.WorkflowStatus == workflow.StatusFailed {
		return errRunFailed
	}
	return nil
}
