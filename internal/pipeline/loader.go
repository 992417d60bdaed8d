// Package pipeline drives the two bulk operations against the places
// store: the streaming import and the repeated-fetch purge.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mapierhub/poisync/internal/places"
	"github.com/mapierhub/poisync/internal/sink"
)

const (
	// DefaultLoadPageSize is the number of rows pulled per page.
	DefaultLoadPageSize = 500
	// MaxSamples bounds the error samples kept in a report.
	MaxSamples = 5
)

// Source is a countable, forward-only record stream.
type Source interface {
	// Count returns an estimate of the rows Open will yield.
	Count(ctx context.Context) (int64, error)
	Open(ctx context.Context) (Cursor, error)
}

// Cursor yields pages of rows. An empty page means the stream is done.
type Cursor interface {
	Next(ctx context.Context, n int) ([]places.SourceRecord, error)
	Close() error
}

// RecordWriter writes transformed records. *sink.Sink implements it.
type RecordWriter interface {
	Write(ctx context.Context, recs []places.WriteRecord) (sink.Result, error)
	BatchSize() int
}

// ConfirmFunc is asked before any destructive or large operation starts.
// Returning false aborts the run without error.
type ConfirmFunc func(ctx context.Context, total int64) (bool, error)

// LoadOptions configures a Loader.
type LoadOptions struct {
	PageSize int
	// Limit caps the rows pulled; zero means no cap.
	Limit  int64
	DryRun bool
	// Confirm, when set, is consulted after counting.
	Confirm ConfirmFunc
	// OnProgress, when set, is called after each page.
	OnProgress func(LoadReport)
}

// LoadReport holds the counters of one import run.
type LoadReport struct {
	// Total is the advisory count, capped by the limit.
	Total           int64
	Pulled          int64
	Imported        int64
	TransformErrors int64
	WriteErrors     int64
	Pages           int
	Samples         []error
	DryRun          bool
	Aborted         bool
	Elapsed         time.Duration
}

// Errors returns all per-row failures. At completion
// Imported+Errors() equals Pulled.
func (r *LoadReport) Errors() int64 {
	return r.TransformErrors + r.WriteErrors
}

func (r *LoadReport) addSample(err error) {
	if len(r.Samples) < MaxSamples {
		r.Samples = append(r.Samples, err)
	}
}

// Loader streams source rows through the transformer into the writer.
type Loader struct {
	source      Source
	transformer *places.Transformer
	writer      RecordWriter
	opts        LoadOptions
	logger      *slog.Logger
}

// NewLoader creates a Loader. If logger is nil, a discard logger is used.
func NewLoader(src Source, tr *places.Transformer, w RecordWriter, opts LoadOptions, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultLoadPageSize
	}
	return &Loader{
		source:      src,
		transformer: tr,
		writer:      w,
		opts:        opts,
		logger:      logger,
	}
}

// Run executes one import. Row failures are counted in the report; a
// source fault stops the run and is returned with the partial report.
func (l *Loader) Run(ctx context.Context) (*LoadReport, error) {
	start := time.Now()
	report := &LoadReport{DryRun: l.opts.DryRun}
	defer func() { report.Elapsed = time.Since(start) }()

	count, err := l.source.Count(ctx)
	if err != nil {
		return report, sourceError("count", err)
	}
	report.Total = count
	if l.opts.Limit > 0 && l.opts.Limit < count {
		report.Total = l.opts.Limit
	}

	l.logger.Info("import planned",
		slog.Int64("count", count),
		slog.Int64("total", report.Total),
		slog.Bool("dry_run", l.opts.DryRun))

	if l.opts.DryRun {
		return report, nil
	}

	if l.opts.Confirm != nil {
		ok, err := l.opts.Confirm(ctx, report.Total)
		if err != nil {
			return report, err
		}
		if !ok {
			report.Aborted = true
			return report, nil
		}
	}

	cur, err := l.source.Open(ctx)
	if err != nil {
		return report, sourceError("open", err)
	}
	defer func() { _ = cur.Close() }()

	for {
		want := l.opts.PageSize
		if l.opts.Limit > 0 {
			remaining := l.opts.Limit - report.Pulled
			if remaining <= 0 {
				break
			}
			if remaining < int64(want) {
				want = int(remaining)
			}
		}

		rows, err := cur.Next(ctx, want)
		if err != nil {
			return report, sourceError("fetch", err)
		}
		if len(rows) == 0 {
			break
		}
		if len(rows) > want {
			return report, &SourceFault{Op: "fetch", Err: fmt.Errorf("%w: got %d rows, asked for %d", ErrPageOverflow, len(rows), want)}
		}

		report.Pages++
		report.Pulled += int64(len(rows))

		if err := l.loadPage(ctx, report, rows); err != nil {
			return report, err
		}

		elapsed := time.Since(start).Seconds()
		rps := 0.0
		if elapsed > 0 {
			rps = float64(report.Pulled) / elapsed
		}
		l.logger.Debug("page loaded",
			slog.Int("page", report.Pages),
			slog.Int("rows", len(rows)),
			slog.Int64("pulled", report.Pulled),
			slog.Int64("imported", report.Imported),
			slog.Int64("errors", report.Errors()),
			slog.String("rps", fmt.Sprintf("%.0f", rps)))

		if l.opts.OnProgress != nil {
			l.opts.OnProgress(*report)
		}
	}

	l.logger.Info("import finished",
		slog.Int64("pulled", report.Pulled),
		slog.Int64("imported", report.Imported),
		slog.Int64("errors", report.Errors()),
		slog.Int("pages", report.Pages))

	return report, nil
}

func (l *Loader) loadPage(ctx context.Context, report *LoadReport, rows []places.SourceRecord) error {
	recs := make([]places.WriteRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := l.transformer.Transform(row)
		if err != nil {
			report.TransformErrors++
			report.addSample(err)
			continue
		}
		recs = append(recs, rec)
	}

	batch := l.writer.BatchSize()
	if batch <= 0 {
		batch = len(recs)
	}
	for len(recs) > 0 {
		n := min(batch, len(recs))
		res, err := l.writer.Write(ctx, recs[:n])
		report.Imported += int64(res.Succeeded)
		report.WriteErrors += int64(res.Failed)
		for _, s := range res.Samples {
			report.addSample(s)
		}
		if err != nil {
			return fmt.Errorf("failed to write page %d: %w", report.Pages, err)
		}
		recs = recs[n:]
	}
	return nil
}
