package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
)

func newStepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Manage checklist steps of a todo",
	}

	add := &cobra.Command{
		Use:   "add <todo-id> <title>",
		Short: "Append a step to a todo",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			todoID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				step, err := a.Store().Steps().Create(cmd.Context(), todoID, args[1])
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), step)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created step %d\n", step.ID)
				return nil
			})
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle <step-id>",
		Short: "Flip a step between open and completed",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				step, err := a.Store().Steps().Toggle(cmd.Context(), id)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), step)
				}
				state := "open"
				if step.IsCompleted {
					state = "completed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Step %d is %s\n", step.ID, state)
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <step-id>",
		Short: "Delete a step",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				if err := a.Store().Steps().Delete(cmd.Context(), id); err != nil {
					return err
				}
				if !flags.jsonMode {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted step %d\n", id)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(add, toggle, rm)
	return cmd
}
