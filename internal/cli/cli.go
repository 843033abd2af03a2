package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/foldsync/foldsync/internal/source"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// App bundles the streams and settings shared by every subcommand.
type App struct {
	outW io.Writer
	inR  io.Reader

	logLevel  string
	logFormat string
	logger    *slog.Logger

	tags         []string
	skipFirstLvl bool
	assumeYes    bool
	workers      int
	showOutput   string
}

// NewRootCommand builds the full foldsync command tree. Output goes to
// outW, confirmation prompts read from inR.
func NewRootCommand(outW io.Writer, inR io.Reader) *cobra.Command {
	a := &App{outW: outW, inR: inR}

	root := &cobra.Command{
		Use:           "foldsync",
		Short:         "Keep a directory exactly as a declarative recipe describes it",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.logLevel, a.logFormat, os.Stderr)
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			a.logger = logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Logging level: 'debug', 'info', 'warn' or 'error'.")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "Log output format: 'text' or 'json'.")

	root.AddCommand(
		a.newSyncCommand(),
		a.newCleanCommand(),
		a.newListCommand(),
		a.newTagsCommand(),
		a.newHashCommand(),
		a.newShowCommand(),
	)
	return root
}

// newLogger creates a slog.Logger for the requested level and format. It
// does not touch the global logger.
func newLogger(levelStr, formatStr string, outW io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(formatStr) {
	case "json":
		handler = slog.NewJSONHandler(outW, handlerOpts)
	case "text":
		handler = slog.NewTextHandler(outW, handlerOpts)
	default:
		return nil, fmt.Errorf("invalid log-format: must be 'text' or 'json'")
	}
	return slog.New(handler), nil
}

// absLocator turns a relative local path into an absolute one so that
// SELF_ROOT and the resolver's absolute-path rule both hold. Remote and git
// locators pass through untouched.
func absLocator(locator string) (string, error) {
	if strings.Contains(locator, "#") || strings.Contains(locator, "://") || strings.Contains(locator, "@") {
		return locator, nil
	}
	return filepath.Abs(locator)
}

// confirm prints a question and accepts y/yes (case-insensitive) as
// agreement. A closed or empty input stream counts as refusal.
func (a *App) confirm(question string) bool {
	if a.assumeYes {
		return true
	}
	fmt.Fprintf(a.outW, "%s [y/N] ", question)
	scanner := bufio.NewScanner(a.inR)
	if !scanner.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return true
	}
	return false
}

// guardTarget refuses full-mode operations aimed at the current working
// directory, which would delete the directory the user is standing in.
func guardTarget(target string) error {
	abs, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if abs == cwd {
		return fmt.Errorf("target %q is the current working directory; refusing to delete it (use --skip-first-level or a different target)", target)
	}
	return nil
}

func (a *App) newResolver() *source.Resolver {
	return source.NewResolver()
}
