package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mapierhub/poisync/internal/cli/config"
	"github.com/mapierhub/poisync/internal/cli/output"
	"github.com/mapierhub/poisync/internal/overture"
	"github.com/mapierhub/poisync/internal/pipeline"
	"github.com/mapierhub/poisync/internal/places"
	"github.com/mapierhub/poisync/internal/sink"
	"github.com/mapierhub/poisync/internal/state"
	"github.com/mapierhub/poisync/internal/store"
	"github.com/spf13/cobra"
)

// ImportOptions holds options for the import command.
type ImportOptions struct {
	Limit    int64
	Category string
	Region   string
	DryRun   bool
	Yes      bool
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import Overture places into the places table",
		Long: `Stream places from an Overture Maps release into the places table.

Rows are upserted by id, so re-running an import refreshes existing places
instead of duplicating them. Rows that cannot be transformed or written are
counted and sampled; they do not fail the run.`,
		Example: `  # Count what would be imported
  poisync import --dry-run

  # Import up to 1000 coffee shops in Washington
  poisync import --category coffee_shop --state WA --limit 1000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.Limit, "limit", 0, "Maximum number of places to import (0 = no limit)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Only import places with this primary category")
	cmd.Flags().StringVar(&opts.Region, "state", "", "Only import places in this state (e.g. CA)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Count matching places without importing")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().Int("page-size", config.DefaultImportPageSize, "Rows pulled from the source per page")
	cmd.Flags().Int("batch-size", config.DefaultBatchSize, "Records per upsert batch")
	cmd.Flags().String("release", overture.DefaultRelease, "Overture release to import")

	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	logger := config.GetLogger(ctx)
	r := output.FromContext(ctx)

	if opts.Limit < 0 {
		return fmt.Errorf("--limit must not be negative, got %d", opts.Limit)
	}
	if err := cfg.ValidateStore(); err != nil {
		return err
	}

	src, err := openAdapter(ctx, cfg.Source, logger)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	source := overture.NewSource(src, importQuery(cfg, opts), logger)

	var writer pipeline.RecordWriter
	if !opts.DryRun {
		dst, err := openAdapter(ctx, cfg.Store, logger)
		if err != nil {
			return err
		}
		defer func() { _ = dst.Close() }()

		ps := store.NewPlacesStore(dst.Conn(), cfg.Table)
		writer = sink.New(ps, logger).WithBatchSize(cfg.Import.BatchSize)
	}

	journal := openJournal(cfg.StatePath, logger)
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	return executeImport(ctx, importRun{
		cfg:     cfg,
		opts:    opts,
		query:   source.Query(),
		source:  source,
		writer:  writer,
		journal: journal,
		in:      cmd.InOrStdin(),
		r:       r,
		logger:  logger,
	})
}

func importQuery(cfg *config.Config, opts *ImportOptions) overture.Query {
	q := cfg.Query()
	q.Category = opts.Category
	q.Region = strings.ToUpper(opts.Region)
	q.Limit = opts.Limit
	return q
}

// importRun bundles the collaborators of one import.
type importRun struct {
	cfg     *config.Config
	opts    *ImportOptions
	query   overture.Query
	source  pipeline.Source
	writer  pipeline.RecordWriter
	journal state.Store
	in      io.Reader
	r       *output.Renderer
	logger  *slog.Logger
}

func executeImport(ctx context.Context, ir importRun) error {
	r := ir.r
	if r.EffectiveMode() != output.ModeJSON {
		r.Header(fmt.Sprintf("Importing Overture places (release %s)", ir.query.Release))
		r.Println(r.Muted("Filters: " + describeQuery(ir.query)))
		r.Println("")
	}

	run := &state.Run{
		Kind:    state.RunKindImport,
		Release: ir.query.Release,
		Filters: describeQuery(ir.query),
		DryRun:  ir.opts.DryRun,
	}
	j := startJournal(ctx, ir.journal, run, ir.logger)

	var prog *output.Progress
	loadOpts := pipeline.LoadOptions{
		PageSize: ir.cfg.Import.PageSize,
		Limit:    ir.opts.Limit,
		DryRun:   ir.opts.DryRun,
		Confirm: func(_ context.Context, total int64) (bool, error) {
			if ir.opts.Yes || total <= ir.cfg.Import.ConfirmThreshold {
				return true, nil
			}
			return confirm(r, ir.in, fmt.Sprintf("This will import %s places. Continue?", output.FormatCount(total)))
		},
		OnProgress: func(rep pipeline.LoadReport) {
			if prog == nil {
				prog = r.StartProgress("Imported", rep.Total)
			}
			prog.Update(rep.Pulled)
		},
	}

	tr := places.NewTransformer(ir.query.Release)
	report, err := pipeline.NewLoader(ir.source, tr, ir.writer, loadOpts, ir.logger).Run(ctx)
	if prog != nil {
		prog.Done(err != nil)
	}

	run.Total = report.Total
	run.Pulled = report.Pulled
	run.Succeeded = report.Imported
	run.Failed = report.Errors()
	run.Samples = errorStrings(report.Samples)
	if report.Aborted {
		run.Status = state.RunStatusAborted
	}
	j.finish(ctx, err)

	if renderErr := renderImportReport(r, report, ir.query, ir.cfg.Table); renderErr != nil {
		ir.logger.Warn("failed to render report", slog.String("error", renderErr.Error()))
	}
	if err != nil {
		return fmt.Errorf("import stopped after %s rows: %w", output.FormatCount(report.Pulled), err)
	}
	return nil
}

// describeQuery summarizes the selection for display and the journal.
func describeQuery(q overture.Query) string {
	parts := []string{
		"country=" + q.Country,
		fmt.Sprintf("lon=[%g,%g]", q.BBox.MinLon, q.BBox.MaxLon),
		fmt.Sprintf("lat=[%g,%g]", q.BBox.MinLat, q.BBox.MaxLat),
	}
	if q.Category != "" {
		parts = append(parts, "category="+q.Category)
	}
	if q.Region != "" {
		parts = append(parts, "state="+q.Region)
	}
	if q.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", q.Limit))
	}
	return strings.Join(parts, " ")
}

// ImportSummary is the JSON form of an import report.
type ImportSummary struct {
	Release         string   `json:"release"`
	Filters         string   `json:"filters"`
	DryRun          bool     `json:"dry_run"`
	Aborted         bool     `json:"aborted"`
	Total           int64    `json:"total"`
	Pulled          int64    `json:"pulled"`
	Imported        int64    `json:"imported"`
	TransformErrors int64    `json:"transform_errors"`
	WriteErrors     int64    `json:"write_errors"`
	Pages           int      `json:"pages"`
	ElapsedMS       int64    `json:"elapsed_ms"`
	Samples         []string `json:"samples,omitempty"`
}

func renderImportReport(r *output.Renderer, rep *pipeline.LoadReport, q overture.Query, tableName string) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(ImportSummary{
			Release:         q.Release,
			Filters:         describeQuery(q),
			DryRun:          rep.DryRun,
			Aborted:         rep.Aborted,
			Total:           rep.Total,
			Pulled:          rep.Pulled,
			Imported:        rep.Imported,
			TransformErrors: rep.TransformErrors,
			WriteErrors:     rep.WriteErrors,
			Pages:           rep.Pages,
			ElapsedMS:       rep.Elapsed.Milliseconds(),
			Samples:         errorStrings(rep.Samples),
		})
	}

	switch {
	case rep.DryRun:
		r.Success(fmt.Sprintf("Dry run: %s places match. Nothing was imported.", output.FormatCount(rep.Total)))
		return nil
	case rep.Aborted:
		r.Warning("Import cancelled.")
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Matching", output.FormatCount(rep.Total)},
		{"Pulled", output.FormatCount(rep.Pulled)},
		{"Imported", output.FormatCount(rep.Imported)},
		{"Transform errors", output.FormatCount(rep.TransformErrors)},
		{"Write errors", output.FormatCount(rep.WriteErrors)},
		{"Pages", rep.Pages},
		{"Elapsed", output.FormatDuration(rep.Elapsed)},
		{"Rate", output.FormatRate(rep.Pulled, rep.Elapsed)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	r.Println("")
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(t.RenderMarkdown())
	} else {
		r.Println(t.Render())
	}

	if len(rep.Samples) > 0 {
		r.Println("")
		r.Header(fmt.Sprintf("Error samples (%d of %s)", len(rep.Samples), output.FormatCount(rep.Errors())))
		for _, s := range rep.Samples {
			r.StatusLine(r.Styles().StatusFailed.String(), s.Error())
		}
	}

	if rep.Imported > 0 {
		r.Println("")
		r.Header("Next step: populate geometry")
		sql := store.GeometryBackfillSQL(tableName)
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println("```sql")
			r.Println(sql)
			r.Println("```")
		} else {
			r.Println(r.Styles().Code.Render(sql))
		}
	}
	return nil
}
