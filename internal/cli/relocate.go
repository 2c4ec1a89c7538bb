package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
	"github.com/rtodo/rtodo/internal/relocate"
)

var (
	stageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#409EFF")).Width(22)
	doneStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#67C23A"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F56C6C"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

func newRelocateCmd() *cobra.Command {
	var keepOriginal bool
	cmd := &cobra.Command{
		Use:   "relocate <dir>",
		Short: "Move the data directory to a new location",
		Long: "Copy the database and attachments to <dir>, validate the copy, make\n" +
			"<dir> the configured data directory, and remove the original unless\n" +
			"--keep-original is given. An existing <dir> holding data is moved\n" +
			"aside to <dir>.bak first.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				out := cmd.OutOrStdout()
				req := relocate.Request{NewPath: args[0], KeepOriginal: keepOriginal}

				progress := renderProgress(out)
				if flags.jsonMode {
					progress = jsonProgress(out)
				}
				err := a.Relocate(cmd.Context(), req, progress)
				if err != nil && !flags.jsonMode {
					fmt.Fprintln(out, failStyle.Render("failed"))
					var serr *relocate.StageError
					if errors.As(err, &serr) && serr.StagingKept {
						fmt.Fprintln(out, hintStyle.Render("A complete copy was left at "+serr.Staging))
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&keepOriginal, "keep-original", false, "leave the original data directory in place")
	return cmd
}

func renderProgress(w io.Writer) relocate.ProgressFunc {
	return func(e relocate.Event) {
		if e.Status == relocate.StatusCompleted {
			fmt.Fprintf(w, "%s%s\n", stageStyle.Render(string(e.Status)), doneStyle.Render(e.Message))
			return
		}
		fmt.Fprintf(w, "%s%s\n", stageStyle.Render(string(e.Status)), e.Message)
	}
}

// jsonProgress writes one JSON object per event.
func jsonProgress(w io.Writer) relocate.ProgressFunc {
	enc := json.NewEncoder(w)
	return func(e relocate.Event) {
		_ = enc.Encode(e)
	}
}
