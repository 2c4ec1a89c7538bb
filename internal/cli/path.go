package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
	"github.com/rtodo/rtodo/internal/paths"
)

func newPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the data directory in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				dir := a.DataDir()
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]any{
						"data_dir":    dir,
						"database":    paths.DatabasePath(dir),
						"attachments": paths.AttachmentsPath(dir),
						"custom":      a.Config().DataPath() != "",
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), dir)
				return nil
			})
		},
	}
}
