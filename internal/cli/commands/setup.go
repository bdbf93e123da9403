package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cssdedupe/internal/cli/config"
	"github.com/leapstack-labs/cssdedupe/internal/cli/output"
	"github.com/leapstack-labs/cssdedupe/internal/plugin"
	"github.com/leapstack-labs/cssdedupe/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or the defaults when no
// configuration has been loaded (commands run outside the root command).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// NewPlugin creates the dedupe pass from the configuration.
func (c *CommandContext) NewPlugin() (*plugin.Plugin, error) {
	opts, err := c.Cfg.PluginOptions()
	if err != nil {
		return nil, err
	}
	return plugin.New(opts, nil, c.Logger), nil
}

// RecordRun stores the run in the history database. History failures are
// logged, never returned: they must not fail a build.
func (c *CommandContext) RecordRun(ctx context.Context, command string, startedAt time.Time, outcomes []plugin.Outcome, runErr error) *state.Run {
	if !c.Cfg.History {
		return nil
	}

	store, err := openHistory(c.Cfg.StatePath, c.Logger)
	if err != nil {
		c.Logger.Warn("failed to open history", "path", c.Cfg.StatePath, "error", err)
		return nil
	}
	defer func() { _ = store.Close() }()

	run, err := store.RecordRun(ctx, command, startedAt, time.Since(startedAt), outcomes, runErr)
	if err != nil {
		c.Logger.Warn("failed to record run", "error", err)
		return nil
	}
	c.Logger.Debug("run recorded", "id", run.ID, "path", c.Cfg.StatePath)
	return run
}

func openHistory(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, err
	}
	return store, nil
}
