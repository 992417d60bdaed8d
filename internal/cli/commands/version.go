package commands

import (
	"fmt"
	"os"

	"github.com/mapierhub/poisync/internal/cli/config"
	"github.com/mapierhub/poisync/internal/overture"
	"github.com/mapierhub/poisync/internal/state"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display poisync version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "poisync v%s\n", version)
			_, _ = fmt.Fprintf(out, "commit %s, built %s\n", commit, buildDate)
			_, _ = fmt.Fprintf(out, "default Overture release %s\n", overture.DefaultRelease)

			if cfg := config.FromContext(cmd.Context()); cfg != nil {
				if v, ok := journalSchema(cfg.StatePath); ok {
					_, _ = fmt.Fprintf(out, "run journal schema v%d (%s)\n", v, cfg.StatePath)
				}
			}
		},
	}
}

// journalSchema reports the schema version of an existing run journal.
func journalSchema(path string) (int64, bool) {
	if path == "" {
		return 0, false
	}
	if _, err := os.Stat(path); err != nil {
		return 0, false
	}

	store := state.NewSQLiteStore(nil)
	if err := store.Open(path); err != nil {
		return 0, false
	}
	defer func() { _ = store.Close() }()

	v, err := store.GetMigrationVersion()
	if err != nil {
		return 0, false
	}
	return v, true
}
