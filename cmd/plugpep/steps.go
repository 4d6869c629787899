package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/plugpep/internal/infrastructure"
	"github.com/JaimeStill/plugpep/internal/steps"
)

func newStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the configured step order",
		Long: `Steps prints the step order a new run starts with. Steps without a
registered function are marked; the orchestrator skips them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			infra, err := infrastructure.New(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rt, err := infra.Runtime()
			if err != nil {
				return err
			}
			registry, err := steps.Registry(rt)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i, name := range cfg.Workflow.StepNames() {
				state := "registered"
				if !registry.Has(name) {
					state = "not registered"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, name, state)
			}
			return tw.Flush()
		},
	}
}
