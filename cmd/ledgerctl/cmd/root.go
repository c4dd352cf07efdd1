// Package cmd provides the ledgerctl commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"recettes/internal/backend"
	"recettes/internal/cli"
	"recettes/internal/config"
	ledgerlog "recettes/internal/log"
	"recettes/internal/services"
)

type rootOptions struct {
	envFile string
	owner   string
	debug   bool

	logger *ledgerlog.Logger
	cfg    *config.Config
}

// NewRootCmd builds the ledgerctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect and repair the recettes ledger",
		Long: `ledgerctl works directly against the configured backend
(DATA_BACKEND, SQLITE_DB_PATH, SEED_FILE) without going through the
HTTP server.

Example:
  ledgerctl sources --owner alice
  ledgerctl reconcile --owner alice
  ledgerctl budget --owner alice --year 2025 --month 3
  ledgerctl events tail`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				if err := godotenv.Load(opts.envFile); err != nil {
					return fmt.Errorf("load env file: %w", err)
				}
			} else {
				cli.LoadEnvFile()
			}

			cfg := config.Load()
			level := cfg.LogLevel
			if opts.debug {
				level = "debug"
			}
			opts.logger = ledgerlog.New(ledgerlog.Config{
				Component: ledgerlog.ComponentCLI,
				Handler:   slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: ledgerlog.ParseLevel(level)}),
			})
			ledgerlog.SetDefault(opts.logger)

			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "env file to load (default is .env)")
	root.PersistentFlags().StringVar(&opts.owner, "owner", "", "owner the command is scoped to")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newSourcesCmd(opts))
	root.AddCommand(newReconcileCmd(opts))
	root.AddCommand(newBudgetCmd(opts))
	root.AddCommand(newEventsCmd(opts))

	return root
}

// Execute runs ledgerctl with the process arguments until it returns or the
// process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *rootOptions) requireOwner() error {
	if o.owner == "" {
		return errors.New("--owner is required")
	}
	return nil
}

// withLedger opens the configured backend, runs fn and releases the backend.
// The drift writer is not started, so corrections are written inline.
func (o *rootOptions) withLedger(ctx context.Context, fn func(*services.Ledger) error) (err error) {
	result, err := cli.InitBackend(ctx, o.logger, o.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if result.Cleanup == nil {
			return
		}
		if cerr := result.Cleanup(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close backend: %w", cerr))
		}
	}()

	ledger := services.NewLedger(result.Repository, ledgerOptions(o.logger, result))
	return fn(ledger)
}

func ledgerOptions(logger *ledgerlog.Logger, result *backend.BackendResult) services.Options {
	opts := services.Options{Logger: logger.WithComponent(ledgerlog.ComponentLedger)}
	if result.Events != nil {
		opts.Events = result.Events
	}
	return opts
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
