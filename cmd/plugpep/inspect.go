package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/plugpep/pkg/formatting"
	"github.com/JaimeStill/plugpep/workflow"
)

func newInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect PATH",
		Short: "Show the cursor and step outcomes of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSnapshot(args[0])
			if err != nil {
				return err
			}

			if asJSON {
				data, err := workflow.Encode(s)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return printState(cmd.OutOrStdout(), s)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot")
	return cmd
}

func printState(w io.Writer, s *workflow.State) error {
	c := s.Orchestrator

	fmt.Fprintf(w, "workflow:  %s\n", s.WorkflowID)
	fmt.Fprintf(w, "dir:       %s\n", s.WorkflowDir)
	fmt.Fprintf(w, "status:    %s\n", c.WorkflowStatus)
	fmt.Fprintf(w, "query:     %s\n", s.Input.Query)
	fmt.Fprintf(w, "current:   %s\n", stepOrNone(c.CurrentStep))
	fmt.Fprintf(w, "next:      %s\n", stepOrNone(c.NextStep))
	fmt.Fprintf(w, "pending:   %s\n", joinSteps(c.PendingSteps))
	fmt.Fprintf(w, "completed: %s\n", joinSteps(c.CompletedSteps))
	if len(c.SkippedSteps) > 0 {
		fmt.Fprintf(w, "skipped:   %s\n", joinSteps(c.SkippedSteps))
	}
	if c.LastError != nil {
		fmt.Fprintf(w, "error:     %s\n", *c.LastError)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTATUS\tOUTPUT\tSIZE\tERROR")

	seen := make(map[workflow.StepName]bool, len(s.Steps))
	order := append(append(append([]workflow.StepName{}, c.CompletedSteps...), c.PendingSteps...), c.SkippedSteps...)
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true

		st, ok := s.Step(name)
		if !ok {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\n", name, "skipped")
			continue
		}

		output, size := "-", "-"
		if st.OutputPath != nil {
			output = *st.OutputPath
			if info, err := os.Stat(*st.OutputPath); err == nil {
				size = formatting.FormatBytes(info.Size(), 1)
			}
		}
		errText := "-"
		if st.Error != nil {
			errText = *st.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, st.Status, output, size, errText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warning := range s.Logs.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

func stepOrNone(name *workflow.StepName) string {
	if name == nil {
		return "none"
	}
	return string(*name)
}

func joinSteps(names []workflow.StepName) string {
	if len(names) == 0 {
		return "none"
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
