package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mapierhub/poisync/internal/cli/config"
	"github.com/mapierhub/poisync/internal/cli/output"
	"github.com/mapierhub/poisync/internal/pipeline"
	"github.com/mapierhub/poisync/internal/state"
	"github.com/mapierhub/poisync/internal/store"
	"github.com/spf13/cobra"
)

// ClearOptions holds options for the clear command.
type ClearOptions struct {
	Yes bool
}

// NewClearCommand creates the clear command.
func NewClearCommand() *cobra.Command {
	opts := &ClearOptions{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every row from the places table",
		Long: `Delete every row from the places table.

Rows are removed in pages: each cycle fetches ids that still exist and
deletes exactly those, until the table is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClear(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().Int("page-size", config.DefaultClearPageSize, "Rows deleted per cycle")

	return cmd
}

func runClear(cmd *cobra.Command, opts *ClearOptions) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	logger := config.GetLogger(ctx)

	if err := cfg.ValidateStore(); err != nil {
		return err
	}

	dst, err := openAdapter(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	journal := openJournal(cfg.StatePath, logger)
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	return executeClear(ctx, clearRun{
		cfg:     cfg,
		opts:    opts,
		target:  store.NewPlacesStore(dst.Conn(), cfg.Table),
		journal: journal,
		in:      cmd.InOrStdin(),
		r:       output.FromContext(ctx),
		logger:  logger,
	})
}

// clearRun bundles the collaborators of one purge.
type clearRun struct {
	cfg     *config.Config
	opts    *ClearOptions
	target  pipeline.Target
	journal state.Store
	in      io.Reader
	r       *output.Renderer
	logger  *slog.Logger
}

// ClearSummary is the JSON form of a purge report.
type ClearSummary struct {
	Table       string `json:"table"`
	Total       int64  `json:"total"`
	Deleted     int64  `json:"deleted"`
	Cycles      int    `json:"cycles"`
	NothingToDo bool   `json:"nothing_to_do"`
	Aborted     bool   `json:"aborted"`
	ElapsedMS   int64  `json:"elapsed_ms"`
}

func executeClear(ctx context.Context, cr clearRun) error {
	r := cr.r
	table := cr.cfg.Table

	run := &state.Run{Kind: state.RunKindClear, Filters: "table=" + table}
	j := startJournal(ctx, cr.journal, run, cr.logger)

	var prog *output.Progress
	opts := pipeline.PurgeOptions{
		PageSize: cr.cfg.Clear.PageSize,
		Confirm: func(_ context.Context, total int64) (bool, error) {
			if cr.opts.Yes {
				return true, nil
			}
			return confirm(r, cr.in, fmt.Sprintf("Delete all %s rows from %s?", output.FormatCount(total), table))
		},
		OnProgress: func(deleted, total int64) {
			if prog == nil {
				prog = r.StartProgress("Deleted", total)
			}
			prog.Update(deleted)
		},
	}

	report, err := pipeline.NewPurger(cr.target, opts, cr.logger).Run(ctx)
	if prog != nil {
		prog.Done(err != nil)
	}

	run.Total = report.Total
	run.Succeeded = report.Deleted
	if report.Aborted {
		run.Status = state.RunStatusAborted
	}
	j.finish(ctx, err)

	if r.EffectiveMode() == output.ModeJSON {
		if jerr := r.JSON(ClearSummary{
			Table:       table,
			Total:       report.Total,
			Deleted:     report.Deleted,
			Cycles:      report.Cycles,
			NothingToDo: report.NothingToDo,
			Aborted:     report.Aborted,
			ElapsedMS:   report.Elapsed.Milliseconds(),
		}); jerr != nil {
			cr.logger.Warn("failed to render report", slog.String("error", jerr.Error()))
		}
	} else {
		switch {
		case report.NothingToDo:
			r.Success("Places table is already empty.")
		case report.Aborted:
			r.Warning("Clear cancelled.")
		case err == nil:
			r.Success(fmt.Sprintf("Deleted %s / %s rows from %s in %s.",
				output.FormatCount(report.Deleted), output.FormatCount(report.Total),
				table, output.FormatDuration(report.Elapsed)))
		}
	}

	if err != nil {
		return fmt.Errorf("clear stopped after deleting %s rows: %w", output.FormatCount(report.Deleted), err)
	}
	return nil
}
