package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
	"github.com/rtodo/rtodo/internal/sqlite"
)

func newExportCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every table to <dir> as JSONL",
		Long: "Write one <table>.jsonl file per table into <dir>, one JSON object per\n" +
			"row, then read the files back to check them. Attachment files are not\n" +
			"copied. With --check, read an existing export in <dir> instead and\n" +
			"report its record counts and malformed lines.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if check {
				counts, skipped, err := sqlite.ExportCounts(args[0])
				if err != nil {
					return err
				}
				if err := printCounts(cmd, counts); err != nil {
					return err
				}
				if skipped > 0 {
					return fmt.Errorf("%d malformed lines skipped in %s", skipped, args[0])
				}
				return nil
			}
			return withApp(cmd, func(a *app.App) error {
				counts, err := a.Store().Export(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printCounts(cmd, counts)
			})
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "read back an existing export instead of writing one")
	return cmd
}

func printCounts(cmd *cobra.Command, counts map[string]int) error {
	if flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), counts)
	}
	for _, table := range sqlite.ExportTables() {
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", table, counts[table])
	}
	return nil
}
