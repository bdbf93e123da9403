// Package cli provides the command-line interface for cssdedupe.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cssdedupe/internal/cli/commands"
	"github.com/leapstack-labs/cssdedupe/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cssdedupe",
		Short: "cssdedupe - ancestor-aware CSS dedupe for split bundles",
		Long: `cssdedupe removes from each chunk's stylesheet the rules that every
ancestor chunk already loads, so split bundles ship each rule once.

It bundles with esbuild (build, watch) or works on any output directory
described by a chunk graph manifest (dedupe, graph).`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help, completion and version
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg.Verbose)
			ctx := config.WithLogger(cmd.Context(), logger)
			ctx = context.WithValue(ctx, configKey{}, cfg)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", configFile)
				}
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
` + fmt.Sprintf("commit %s, built %s\n", GitCommit, BuildDate))

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./cssdedupe.yaml)")
	pf.String("project-dir", "", "Project root (default: directory of the config file)")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	pf.String("dir", "", "Output directory to dedupe (default: dist)")
	pf.String("state", "", "Path to the history database")
	pf.Bool("history", true, "Record runs in the history database")
	pf.String("asset-pattern", "", `Regexp selecting the assets to dedupe (default: \.css$)`)
	pf.String("ancestor-pattern", "", "Regexp selecting which ancestor files contribute rules (default: asset pattern)")
	pf.Bool("emit-warnings", true, "Log recovered per-asset failures as warnings")
	pf.Int("concurrency", config.DefaultConcurrency, "Assets processed at once")
	pf.Bool("source-map", false, "Read and write <asset>.map source maps")
	pf.String("prev-map", "", "Previous source map file to compose through")
	pf.Bool("sources-content", false, "Embed original sources in written maps")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewDedupeCommand())
	rootCmd.AddCommand(commands.NewGraphCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// newLogger writes text logs to stderr: warnings by default, everything
// with --verbose.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	// Return default config if none in context
	return config.Default()
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for cssdedupe.

To load completions:

Bash:
  $ source <(cssdedupe completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ cssdedupe completion bash > /etc/bash_completion.d/cssdedupe
  # macOS:
  $ cssdedupe completion bash > $(brew --prefix)/etc/bash_completion.d/cssdedupe

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ cssdedupe completion zsh > "${fpath[1]}/_cssdedupe"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ cssdedupe completion fish | source

  # To load completions for each session, execute once:
  $ cssdedupe completion fish > ~/.config/fish/completions/cssdedupe.fish

PowerShell:
  PS> cssdedupe completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> cssdedupe completion powershell > cssdedupe.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
