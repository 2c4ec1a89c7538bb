// Package cli implements the rtodo command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

var flags rootFlags

// NewRootCmd creates the top-level "rtodo" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rtodo",
		Short: "A local todo list backed by SQLite",
		Long: "rtodo keeps todos, groups, tags, steps, and attachments in a single\n" +
			"data directory, upgrades older databases on open, and can move the\n" +
			"data directory to a new location.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $RTODO_CONFIG_DIR)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory for this run (default: configured data_path)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newMigrateCmd(),
		newPathCmd(),
		newRelocateCmd(),
		newConfigCmd(),
		newTodoCmd(),
		newGroupCmd(),
		newTagCmd(),
		newStepCmd(),
		newAttachCmd(),
		newExportCmd(),
	)

	return root
}

// Main runs the CLI with os.Args and returns the process exit code.
func Main() int {
	root := NewRootCmd()
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitCode(err)
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(Main())
}

// codeError carries an explicit exit code.
type codeError struct {
	code int
	err  error
}

func (e *codeError) Error() string { return e.err.Error() }
func (e *codeError) Unwrap() error { return e.err }
func (e *codeError) ExitCode() int { return e.code }

// userError marks err as caused by bad input.
func userError(err error) error {
	return &codeError{code: exitUserError, err: err}
}

// exitCode maps an error to a process exit code. Errors that do not carry a
// code are user errors when they come from bad input (unknown ids, invalid
// names, rejected paths, cobra argument checks) and system errors otherwise.
func exitCode(err error) int {
	var ce interface{ ExitCode() int }
	if errors.As(err, &ce) {
		return ce.ExitCode()
	}
	if app.IsUserError(err) {
		return exitUserError
	}
	return exitSysError
}

// newLogger returns the logger for this run: warnings and above on stderr,
// debug with --verbose.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openApp opens the application using the global flags. The caller must
// Close it.
func openApp(cmd *cobra.Command) (*app.App, error) {
	return app.Open(cmd.Context(), app.Options{
		ConfigDir: flags.configDir,
		DataDir:   flags.dataDir,
		Logger:    newLogger(cmd.ErrOrStderr()),
	})
}

// withApp opens the application, runs fn, and closes it.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
