package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/rtodo/rtodo"

// Version is set at build time with -ldflags "-X github.com/rtodo/rtodo/internal/cli.Version=...".
var Version = "0.1.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rtodo version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "rtodo v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
