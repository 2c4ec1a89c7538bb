package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
)

func newAttachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Manage file attachments",
	}

	add := &cobra.Command{
		Use:   "add <todo-id> <file>",
		Short: "Copy a file into the data directory and attach it to a todo",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			todoID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				att, err := a.AddAttachment(cmd.Context(), todoID, args[1])
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), att)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Attached %s as %d\n", att.Name, att.ID)
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <attachment-id>",
		Short: "Delete an attachment and its file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				if err := a.RemoveAttachment(cmd.Context(), id); err != nil {
					return err
				}
				if !flags.jsonMode {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted attachment %d\n", id)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(add, rm)
	return cmd
}
