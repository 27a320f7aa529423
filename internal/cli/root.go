// Package cli implements the sqlq command line: schema listings, streamed
// queries rendered as terminal tables, and file exports.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sqlite-browser/internal/config"
	"sqlite-browser/internal/console"
	"sqlite-browser/internal/session"
)

var version = "dev"

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		console.NewRenderer(os.Stderr, 0).Error(err)
		return 1
	}
	return 0
}

// app holds the resolved global options shared by every subcommand.
type app struct {
	driver    string
	readOnly  bool
	retryWait time.Duration
	maxRows   int
	verbose   bool
	logger    *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "sqlq",
		Short:         "Browse and query SQLite databases from the terminal",
		Long:          "sqlq opens a database, lists its schema, streams query results into a table and exports them to CSV, JSON, Excel or PDF.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()

			// flag > env > default
			if !cmd.Flags().Changed("driver") {
				a.driver = cfg.DBDriver
			}
			if !cmd.Flags().Changed("read-only") {
				a.readOnly = cfg.ReadOnly
			}
			if !cmd.Flags().Changed("retry-wait") {
				a.retryWait = cfg.RetryWait
			}

			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.driver, "driver", "sqlite3", "Database driver (sqlite3, sqlite, mysql, postgres, mongo)")
	rootCmd.PersistentFlags().BoolVar(&a.readOnly, "read-only", false, "Open the database read-only and reject mutating statements")
	rootCmd.PersistentFlags().DurationVar(&a.retryWait, "retry-wait", time.Second, "How long a new query waits for the one it replaces")
	rootCmd.PersistentFlags().IntVar(&a.maxRows, "max-rows", console.DefaultMaxRows, "Maximum rows printed per result")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging on stderr")

	rootCmd.AddCommand(newSchemaCmd(a))
	rootCmd.AddCommand(newTablesCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))
	rootCmd.AddCommand(newBrowseCmd(a))
	rootCmd.AddCommand(newExplainCmd(a))
	rootCmd.AddCommand(newExportCmd(a))

	return rootCmd
}

func (a *app) open(ctx context.Context, path string) (*session.Session, error) {
	sess, err := session.Open(ctx, session.Options{
		Driver:    a.driver,
		Path:      path,
		ReadOnly:  a.readOnly,
		RetryWait: a.retryWait,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("database opened", "driver", sess.Driver(), "path", path)
	return sess, nil
}

func (a *app) renderer(cmd *cobra.Command) *console.Renderer {
	return console.NewRenderer(cmd.OutOrStdout(), a.maxRows)
}

// progress starts a spinner only when writing to the real terminal.
func progress(cmd *cobra.Command, text string) *console.Progress {
	if cmd.OutOrStdout() != os.Stdout {
		return &console.Progress{}
	}
	return console.StartProgress(text)
}

func wrapOpen(path string, err error) error {
	return fmt.Errorf("open %s: %w", path, err)
}
