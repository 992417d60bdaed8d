package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultPurgePageSize is the number of ids fetched and deleted per cycle.
const DefaultPurgePageSize = 1000

// Target is a store whose rows can be counted, sampled by id and deleted
// by id set.
type Target interface {
	Count(ctx context.Context) (int64, error)
	// FetchIDs returns up to limit ids of rows that still exist. No order
	// or offset is implied.
	FetchIDs(ctx context.Context, limit int) ([]string, error)
	// DeleteIDs deletes exactly ids and returns the number of rows removed.
	DeleteIDs(ctx context.Context, ids []string) (int64, error)
}

// PurgeOptions configures a Purger.
type PurgeOptions struct {
	PageSize int
	// Confirm must approve the purge; a nil Confirm aborts.
	Confirm ConfirmFunc
	// OnProgress, when set, receives the running deleted count.
	OnProgress func(deleted, total int64)
}

// PurgeReport holds the counters of one purge run.
type PurgeReport struct {
	Total       int64
	Deleted     int64
	Cycles      int
	NothingToDo bool
	Aborted     bool
	Elapsed     time.Duration
}

// Purger empties the target. Each cycle fetches any surviving ids and
// deletes exactly those, so rows shifting between pages cannot be missed.
type Purger struct {
	target Target
	opts   PurgeOptions
	logger *slog.Logger
}

// NewPurger creates a Purger. If logger is nil, a discard logger is used.
func NewPurger(target Target, opts PurgeOptions, logger *slog.Logger) *Purger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPurgePageSize
	}
	return &Purger{target: target, opts: opts, logger: logger}
}

// Run executes one purge.
func (p *Purger) Run(ctx context.Context) (*PurgeReport, error) {
	start := time.Now()
	report := &PurgeReport{}
	defer func() { report.Elapsed = time.Since(start) }()

	total, err := p.target.Count(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to count rows: %w", err)
	}
	report.Total = total
	if total == 0 {
		report.NothingToDo = true
		return report, nil
	}

	if p.opts.Confirm == nil {
		report.Aborted = true
		return report, nil
	}
	ok, err := p.opts.Confirm(ctx, total)
	if err != nil {
		return report, err
	}
	if !ok {
		report.Aborted = true
		return report, nil
	}

	for {
		ids, err := p.target.FetchIDs(ctx, p.opts.PageSize)
		if err != nil {
			return report, fmt.Errorf("failed to fetch ids: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		n, err := p.target.DeleteIDs(ctx, ids)
		if err != nil {
			return report, fmt.Errorf("failed to delete %d rows: %w", len(ids), err)
		}
		if n == 0 {
			return report, ErrNoProgress
		}

		report.Cycles++
		report.Deleted += n

		p.logger.Debug("purge cycle",
			slog.Int("cycle", report.Cycles),
			slog.Int("fetched", len(ids)),
			slog.Int64("deleted", report.Deleted),
			slog.Int64("total", total))

		if p.opts.OnProgress != nil {
			p.opts.OnProgress(report.Deleted, total)
		}
	}

	p.logger.Info("purge finished",
		slog.Int64("deleted", report.Deleted),
		slog.Int("cycles", report.Cycles))

	return report, nil
}
