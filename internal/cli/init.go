package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
	"github.com/rtodo/rtodo/pkg/types"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and data directories",
		Long: "Create the configuration file and the data directory, then open the\n" +
			"database so that any pending upgrades run. Running init again is safe.",
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app.App) error {
		// Write config.json if missing so the defaults are visible on disk.
		if _, err := os.Stat(a.Config().Path()); os.IsNotExist(err) {
			if err := a.Config().Update(func(*types.AppConfig) {}); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(a.Attachments().Path(), 0o755); err != nil {
			return fmt.Errorf("create attachments dir: %w", err)
		}

		if flags.jsonMode {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"config":   a.Config().Path(),
				"data_dir": a.DataDir(),
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rtodo initialized\nconfig: %s\ndata:   %s\n", a.Config().Path(), a.DataDir())
		return nil
	})
}
