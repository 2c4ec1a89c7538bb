package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the database schema",
		Long: "Open the database and apply any pending schema upgrades. Upgrades\n" +
			"also run automatically whenever the database is opened; this command\n" +
			"reports which ones ran.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				applied := a.Store().AppliedMigrations()
				if flags.jsonMode {
					if applied == nil {
						applied = []string{}
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"database": a.Store().Path(),
						"applied":  applied,
					})
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied: %s\n", strings.Join(applied, ", "))
				return nil
			})
		},
	}
}
