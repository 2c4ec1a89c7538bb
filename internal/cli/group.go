package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
	"github.com/rtodo/rtodo/pkg/types"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage todo groups",
	}

	var (
		parentID int64
		icon     string
		color    string
	)
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a group",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var parent *int64
			if parentID != 0 {
				parent = &parentID
			}
			var iconp, colorp *string
			if icon != "" {
				iconp = &icon
			}
			if color != "" {
				colorp = &color
			}
			return withApp(cmd, func(a *app.App) error {
				g, err := a.Store().Groups().Create(cmd.Context(), args[0], parent, iconp, colorp)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), g)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created group %d\n", g.ID)
				return nil
			})
		},
	}
	add.Flags().Int64Var(&parentID, "parent", 0, "parent group id")
	add.Flags().StringVar(&icon, "icon", "", "icon (default "+types.DefaultGroupIcon+")")
	add.Flags().StringVar(&color, "color", "", "color (default "+types.DefaultColor+")")

	list := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				groups, err := a.Store().Groups().List(cmd.Context())
				if err != nil {
					return err
				}
				if flags.jsonMode {
					if groups == nil {
						groups = []types.TaskGroup{}
					}
					return printJSON(cmd.OutOrStdout(), groups)
				}
				for _, g := range groups {
					line := fmt.Sprintf("%4d %s", g.ID, g.Name)
					if g.ParentID != nil {
						line += fmt.Sprintf("  (in %d)", *g.ParentID)
					}
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a group; its todos and subgroups are kept and detached",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				if err := a.Store().Groups().Delete(cmd.Context(), id); err != nil {
					return err
				}
				if !flags.jsonMode {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %d\n", id)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(add, list, rm)
	return cmd
}
