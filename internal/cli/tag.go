package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
	"github.com/rtodo/rtodo/pkg/types"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags",
	}

	var color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a tag",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				tag, err := a.Store().Tags().Create(cmd.Context(), args[0], color)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), tag)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created tag %d\n", tag.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&color, "color", "", "color (default "+types.DefaultColor+")")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tags",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				tags, err := a.Store().Tags().List(cmd.Context())
				if err != nil {
					return err
				}
				if flags.jsonMode {
					if tags == nil {
						tags = []types.Tag{}
					}
					return printJSON(cmd.OutOrStdout(), tags)
				}
				for _, tag := range tags {
					style := lipgloss.NewStyle().Foreground(lipgloss.Color(tag.Color))
					fmt.Fprintf(cmd.OutOrStdout(), "%4d %s\n", tag.ID, style.Render(tag.Name))
				}
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a tag and remove it from all todos",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				if err := a.Store().Tags().Delete(cmd.Context(), id); err != nil {
					return err
				}
				if !flags.jsonMode {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted tag %d\n", id)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(add, list, rm)
	return cmd
}
