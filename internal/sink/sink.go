// Package sink writes batches of place records to the store, falling back
// to per-record writes when a batch is rejected.
package sink

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mapierhub/poisync/internal/places"
)

const (
	// DefaultBatchSize is the largest batch handed to the store at once.
	DefaultBatchSize = 500
	// MaxSamples bounds the failure samples kept per call.
	MaxSamples = 5
)

// Store performs keyed upserts. An Upsert either writes every record or,
// on error, none of them.
type Store interface {
	Upsert(ctx context.Context, recs []places.WriteRecord) error
}

// Result summarizes one Write call. Samples holds at most MaxSamples
// failures; Failed is always the exact count.
type Result struct {
	Succeeded int
	Failed    int
	Samples   []error
}

// Sink upserts batches with single-record fallback.
type Sink struct {
	store     Store
	batchSize int
	logger    *slog.Logger
}

// New creates a Sink. If logger is nil, a discard logger is used.
func New(store Store, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{store: store, batchSize: DefaultBatchSize, logger: logger}
}

// WithBatchSize overrides the batch cap.
func (s *Sink) WithBatchSize(n int) *Sink {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// BatchSize returns the batch cap.
func (s *Sink) BatchSize() int {
	return s.batchSize
}

// Write upserts recs as one batch. When the batch fails, each record is
// retried on its own in order and failures are isolated. Only a fatal
// store fault aborts the call.
func (s *Sink) Write(ctx context.Context, recs []places.WriteRecord) (Result, error) {
	var res Result
	if len(recs) == 0 {
		return res, nil
	}
	if len(recs) > s.batchSize {
		return res, fmt.Errorf("batch of %d records exceeds limit of %d", len(recs), s.batchSize)
	}

	err := s.store.Upsert(ctx, recs)
	if err == nil {
		res.Succeeded = len(recs)
		return res, nil
	}
	if IsFatal(err) {
		return res, fmt.Errorf("failed to upsert batch: %w", err)
	}

	s.logger.Warn("batch upsert failed, retrying records individually",
		slog.Int("records", len(recs)),
		slog.String("error", err.Error()))

	for i := range recs {
		if err := s.store.Upsert(ctx, recs[i:i+1]); err != nil {
			if IsFatal(err) {
				return res, fmt.Errorf("failed to upsert %s: %w", recs[i].ID, err)
			}
			res.Failed++
			if len(res.Samples) < MaxSamples {
				res.Samples = append(res.Samples, &places.WriteError{ID: recs[i].ID, Err: err})
			}
			s.logger.Debug("record rejected", slog.String("id", recs[i].ID), slog.String("error", err.Error()))
			continue
		}
		res.Succeeded++
	}

	return res, nil
}

// IsFatal reports whether err means the store itself is unusable rather
// than that a record was rejected.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	// Class 08 is connection exception, 57P operator intervention.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
