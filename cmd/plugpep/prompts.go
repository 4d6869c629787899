package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/plugpep/internal/prompts"
)

func newPromptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage stored instruction overrides",
		Long: `Prompts manages instruction overrides kept in PostgreSQL. At most one
override per stage is active; stages without one use the built-in text.`,
	}

	cmd.AddCommand(
		newPromptsListCmd(),
		newPromptsCreateCmd(),
		newPromptsActivateCmd(),
		newPromptsClearCmd(),
		newPromptsDeleteCmd(),
	)
	return cmd
}

// withPrompts runs fn against the prompt repository.
func withPrompts(cmd *cobra.Command, fn func(*prompts.Repository) error) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	repo, ok := a.infra.Prompts().(*prompts.Repository)
	if !ok {
		return fmt.Errorf("prompt overrides require [database] enabled")
	}
	return fn(repo)
}

func newPromptsListCmd() *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter *prompts.Stage
			if stage != "" {
				st, err := prompts.ParseStage(stage)
				if err != nil {
					return err
				}
				filter = &st
			}

			return withPrompts(cmd, func(repo *prompts.Repository) error {
				list, err := repo.List(cmd.Context(), filter)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSTAGE\tACTIVE")
				for _, p := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", p.ID, p.Name, p.Stage, p.Active)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "only overrides for this stage")
	return cmd
}

func newPromptsCreateCmd() *cobra.Command {
	var (
		name        string
		stage       string
		file        string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a new inactive override",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := prompts.ParseStage(stage)
			if err != nil {
				return err
			}
			text, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read instructions: %w", err)
			}

			command := prompts.CreateCommand{
				Name:         name,
				Stage:        st,
				Instructions: string(text),
			}
			if description != "" {
				command.Description = &description
			}

			return withPrompts(cmd, func(repo *prompts.Repository) error {
				p, err := repo.Create(cmd.Context(), command)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "unique override name")
	cmd.Flags().StringVar(&stage, "stage", "", "stage the override applies to")
	cmd.Flags().StringVar(&file, "file", "", "file holding the instruction text")
	cmd.Flags().StringVar(&description, "description", "", "optional description")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("stage")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newPromptsActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate ID",
		Short: "Make an override active for its stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid prompt id: %w", err)
			}
			return withPrompts(cmd, func(repo *prompts.Repository) error {
				p, err := repo.Activate(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s active for %s\n", p.Name, p.Stage)
				return nil
			})
		},
	}
}

func newPromptsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear STAGE",
		Short: "Deactivate the override for a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := prompts.ParseStage(args[0])
			if err != nil {
				return err
			}
			return withPrompts(cmd, func(repo *prompts.Repository) error {
				return repo.Clear(cmd.Context(), st)
			})
		},
	}
}

func newPromptsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a stored override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid prompt id: %w", err)
			}
			return withPrompts(cmd, func(repo *prompts.Repository) error {
				return repo.Delete(cmd.Context(), id)
			})
		},
	}
}
