package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/plugpep/internal/statestore"
	"github.com/JaimeStill/plugpep/workflow"
)

func newRunsCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in the Postgres mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if a.infra.Database == nil || !a.cfg.State.Postgres {
				return fmt.Errorf("runs requires [state] postgres = true")
			}

			var filter *workflow.Status
			if status != "" {
				st := workflow.Status(status)
				filter = &st
			}

			pg := statestore.NewPostgres(a.infra.Database.Connection(), a.infra.Logger)
			runs, err := pg.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WORKFLOW\tSTATUS\tUPDATED\tDIR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.WorkflowID, r.Status, r.UpdatedAt.Format(time.RFC3339), r.WorkflowDir)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only runs with this status")
	return cmd
}
