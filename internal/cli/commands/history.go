package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mapierhub/poisync/internal/cli/config"
	"github.com/mapierhub/poisync/internal/cli/output"
	"github.com/mapierhub/poisync/internal/state"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent import and clear runs",
		Long: `Show runs recorded in the local journal, newest first.

With a run id, show that run in detail including its error samples.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			if cfg == nil {
				return fmt.Errorf("configuration not loaded")
			}
			r := output.FromContext(ctx)

			if _, err := os.Stat(cfg.StatePath); errors.Is(err, os.ErrNotExist) {
				r.Println("No runs recorded yet.")
				return nil
			}

			journal := state.NewSQLiteStore(config.GetLogger(ctx))
			if err := journal.Open(cfg.StatePath); err != nil {
				return err
			}
			defer func() { _ = journal.Close() }()

			if len(args) == 1 {
				return showRun(ctx, r, journal, args[0])
			}
			return listRuns(ctx, r, journal, opts.Limit)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of runs to show")

	return cmd
}

func title(s string) string {
	return cases.Title(language.English).String(s)
}

func listRuns(ctx context.Context, r *output.Renderer, journal state.Store, limit int) error {
	runs, err := journal.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}
	if len(runs) == 0 {
		r.Println("No runs recorded yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Kind", "Status", "Started", "Duration", "Total", "OK", "Failed", "Filters"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			kindLabel(run),
			title(string(run.Status)),
			output.FormatAge(run.StartedAt),
			runDuration(run),
			output.FormatCount(run.Total),
			output.FormatCount(run.Succeeded),
			output.FormatCount(run.Failed),
			run.Filters,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(t.RenderMarkdown())
	} else {
		r.Println(t.Render())
	}
	return nil
}

func showRun(ctx context.Context, r *output.Renderer, journal state.Store, id string) error {
	run, err := journal.GetRun(ctx, id)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(run)
	}

	r.Header(fmt.Sprintf("%s run %s", kindLabel(run), run.ID))
	const width = 10
	r.Println(output.FormatKeyValue("Status", title(string(run.Status)), width))
	r.Println(output.FormatKeyValue("Started", run.StartedAt.Local().Format(time.DateTime), width))
	r.Println(output.FormatKeyValue("Duration", runDuration(run), width))
	if run.Release != "" {
		r.Println(output.FormatKeyValue("Release", run.Release, width))
	}
	r.Println(output.FormatKeyValue("Filters", run.Filters, width))
	r.Println(output.FormatKeyValue("Total", output.FormatCount(run.Total), width))
	if run.Kind == state.RunKindImport {
		r.Println(output.FormatKeyValue("Pulled", output.FormatCount(run.Pulled), width))
	}
	r.Println(output.FormatKeyValue("Succeeded", output.FormatCount(run.Succeeded), width))
	r.Println(output.FormatKeyValue("Failed", output.FormatCount(run.Failed), width))
	if run.Error != "" {
		r.Println(output.FormatKeyValue("Error", run.Error, width))
	}

	if len(run.Samples) > 0 {
		r.Println("")
		r.Header("Error samples")
		for _, s := range run.Samples {
			r.StatusLine(r.Styles().StatusFailed.String(), s)
		}
	}
	return nil
}

func kindLabel(run *state.Run) string {
	label := title(string(run.Kind))
	if run.DryRun {
		label += " (dry run)"
	}
	return label
}

func runDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return output.FormatDuration(run.CompletedAt.Sub(run.StartedAt))
}
