package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/plugpep/workflow"
)

var errNotResumable = errors.New("workflow is not resumable")

func newResumeCmd() *cobra.Command {
	var (
		fromArchive bool
		root        string
	)

	cmd := &cobra.Command{
		Use:   "resume PATH",
		Short: "Continue an interrupted workflow run",
		Long: `Resume loads the snapshot at PATH (a state file or its run directory) and
continues from its pending steps. With --from-archive, PATH is a workflow id
whose archived artifacts are first restored under --id-root.

When the Redis mirror is enabled a run lock prevents two resumes of the
same run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			var s *workflow.State
			if fromArchive {
				arc := a.infra.Archiver()
				if arc == nil {
					return fmt.Errorf("--from-archive requires [storage] enabled")
				}
				if root == "" {
					root = a.cfg.Workflow.RootDir
				}
				if s, err = arc.Restore(cmd.Context(), args[0], root); err != nil {
					return err
				}
			} else if s, err = loadSnapshot(args[0]); err != nil {
				return err
			}

			if s.Orchestrator.WorkflowStatus.Terminal() {
				return fmt.Errorf("%w: %s already %s", errNotResumable, s.WorkflowID, s.Orchestrator.WorkflowStatus)
			}

			if a.infra.Redis != nil {
				release, err := a.infra.Redis.Lock(cmd.Context(), s.WorkflowID, a.cfg.State.LockTTLDuration())
				if err != nil {
					return err
				}
				defer func() {
					if err := release(context.WithoutCancel(cmd.Context())); err != nil {
						a.infra.Logger.Warn("run lock release failed", "workflow_id", s.WorkflowID, "error", err)
					}
				}()
			}

			final, err := a.execute(cmd, s, filepath.Dir(s.WorkflowDir))
			if err != nil {
				return err
			}
			return summarize(cmd, final)
		},
	}

	cmd.Flags().BoolVar(&fromArchive, "from-archive", false, "restore PATH (a workflow id) from blob storage first")
	cmd.Flags().StringVar(&root, "id-root", "", "directory to restore archived runs into (default [workflow] root_dir)")
	return cmd
}

// loadSnapshot reads the state file at path, or path/state.json when path
// is a run directory.
func loadSnapshot(path string) (*workflow.State, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", workflow.ErrStateNotFound, path)
	}
	if info.IsDir() {
		path = filepath.Join(path, workflow.StateFile)
	}
	return workflow.Load(path)
}

func statePath(s *workflow.State) string {
	return filepath.Join(s.WorkflowDir, workflow.StateFile)
}
