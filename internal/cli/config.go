package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rtodo/rtodo/internal/config"
	"github.com/rtodo/rtodo/internal/paths"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration record",
		RunE:  runConfigShow,
	})
	return cmd
}

// runConfigShow reads the configuration without opening the database.
func runConfigShow(cmd *cobra.Command, args []string) error {
	dir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	rec := cfg.Get()
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), rec)
	}
	out, err := yaml.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", cfg.Path(), out)
	return nil
}
