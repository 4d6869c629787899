package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/plugpep/workflow"
)

func newRunCmd() *cobra.Command {
	var (
		query  string
		target string
		root   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a new workflow run",
		Long: `Run identifies the target protein described by --query, retrieves its
predicted structure, extracts the backbone, and writes a report. Artifacts
and the state snapshot are written under <root>/<workflow-id>/.

The command exits non-zero when the run finishes failed. An interrupted
run is saved with status running and can be continued with resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("--query is required")
			}

			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if root == "" {
				root = a.cfg.Workflow.RootDir
			}

			input := workflow.Input{Query: query}
			if target != "" {
				input.TargetName = &target
			}

			s, err := workflow.NewState(root, input, a.cfg.Workflow.StepNames())
			if err != nil {
				return err
			}

			final, err := a.execute(cmd, s, root)
			if err != nil {
				return err
			}
			return summarize(cmd, final)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "natural-language description of the target")
	cmd.Flags().StringVar(&target, "target", "", "target protein name used when resolving the accession")
	cmd.Flags().StringVar(&root, "id-root", "", "directory holding run directories (default [workflow] root_dir)")
	return cmd
}
