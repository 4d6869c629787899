// Command plugpep runs, resumes, and inspects binder-design preparation
// workflows: target identification, structure retrieval, backbone
// extraction, and reporting.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// errRunFailed marks a run that finished with status failed. The run has
// already been reported, so main only sets the exit code.
var errRunFailed = errors.New("workflow failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "plugpep",
		Short:         "Prepare protein targets for binder design",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().String("config", "", "config file (default ./config.toml when present)")

	root.AddCommand(
		newRunCmd(),
		newResumeCmd(),
		newInspectCmd(),
		newStepsCmd(),
		newRunsCmd(),
		newPromptsCmd(),
	)
	return root
}
