package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/config"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/ledger"
	"github.com/techequitycollaborative/ca-leg-tracker/internal/logger"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
	format     string
	verbose    bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "legcal",
		Short: "Track California legislative hearings and floor sessions",
		Long: `A CLI tool that scrapes the Assembly and Senate calendars, resolves each
listed measure to a known bill and keeps an event ledger of upcoming
floor sessions and committee hearings in step with the published schedule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&g.format, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&g.verbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newSyncCmd(g), newListCmd(g), newExportCmd(g))
	return cmd
}

// outputFormat validates the --format flag
func (g *globalFlags) outputFormat() (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(g.format))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", g.format)
	}
	return format, nil
}

// load reads the config and installs the default logger, writing to stderr
func (g *globalFlags) load(cmd *cobra.Command) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, nil, err
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cfg, nil, err
	}
	if g.verbose {
		level = logger.LevelDebug
	}
	log := logger.New(level, cmd.ErrOrStderr())
	logger.SetDefault(log)
	return cfg, log, nil
}

func openLedger(ctx context.Context, cfg config.Config, log *logger.Logger) (*ledger.Store, error) {
	store, err := ledger.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	return store.WithLogger(log), nil
}

// chambers parses a --chamber flag; empty means every chamber
func chambers(values []string) ([]event.Chamber, error) {
	var out []event.Chamber
	for _, v := range values {
		c, err := event.ParseChamber(v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}
