// Package cli provides the command-line interface for poisync.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mapierhub/poisync/internal/cli/commands"
	"github.com/mapierhub/poisync/internal/cli/config"
	"github.com/mapierhub/poisync/internal/cli/output"
	"github.com/spf13/cobra"

	// Register the source and store adapters.
	_ "github.com/mapierhub/poisync/pkg/adapters/duckdb"
	_ "github.com/mapierhub/poisync/pkg/adapters/postgres"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile    string
		outputFlag string
	)

	rootCmd := &cobra.Command{
		Use:   "poisync",
		Short: "poisync - Overture Maps places sync",
		Long: `poisync bulk-loads places from an Overture Maps release into a
Postgres (Supabase) places table, and can empty that table again.

Configuration is read from poisync.yaml, POISYNC_* environment variables
and flags. The store connection may also come from SUPABASE_DB_URL or
DATABASE_URL.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, used, err := config.Load(cfgFile, cmd.Flags(), cmd.Name())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
			renderer := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(outputFlag))

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			ctx = output.WithRenderer(ctx, renderer)
			cmd.SetContext(ctx)

			if used != "" {
				logger.Debug("using config file", slog.String("path", used))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./poisync.yaml)")
	rootCmd.PersistentFlags().String("state-db", "", "Path to the run journal database")
	rootCmd.PersistentFlags().String("table", "", "Destination table (default: places)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewImportCommand())
	rootCmd.AddCommand(commands.NewClearCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// NewLogger returns the CLI logger: warnings and errors by default, debug
// output when verbose.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command. An interrupt cancels the running
// operation, which then stops at the next page.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for poisync.

To load completions:

Bash:
  $ source <(poisync completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ poisync completion bash > /etc/bash_completion.d/poisync
  # macOS:
  $ poisync completion bash > $(brew --prefix)/etc/bash_completion.d/poisync

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ poisync completion zsh > "${fpath[1]}/_poisync"

Fish:
  $ poisync completion fish | source

  # To load completions for each session, execute once:
  $ poisync completion fish > ~/.config/fish/completions/poisync.fish

PowerShell:
  PS> poisync completion powershell | Out-String | Invoke-Expression
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
