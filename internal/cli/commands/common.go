// Package commands implements the poisync subcommands.
package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mapierhub/poisync/internal/cli/output"
	"github.com/mapierhub/poisync/internal/state"
	"github.com/mapierhub/poisync/pkg/adapter"
)

// openAdapter creates and connects the adapter described by cfg.
func openAdapter(ctx context.Context, cfg adapter.Config, logger *slog.Logger) (adapter.Adapter, error) {
	a, err := adapter.NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return a, nil
}

// openJournal opens the run journal. The journal is best effort: when it
// cannot be opened the run proceeds unrecorded.
func openJournal(path string, logger *slog.Logger) state.Store {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			logger.Warn("run journal unavailable", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		logger.Warn("run journal unavailable", slog.String("path", path), slog.String("error", err.Error()))
		return nil
	}
	return store
}

// journal records one run in an optional store.
type journal struct {
	store  state.Store
	run    *state.Run
	logger *slog.Logger
}

func startJournal(ctx context.Context, store state.Store, run *state.Run, logger *slog.Logger) *journal {
	j := &journal{store: store, run: run, logger: logger}
	if store == nil {
		return j
	}
	if err := store.StartRun(ctx, run); err != nil {
		logger.Warn("failed to record run start", slog.String("error", err.Error()))
		j.store = nil
	}
	return j
}

// finish stores the run outcome. runErr marks the run failed.
func (j *journal) finish(ctx context.Context, runErr error) {
	if j.store == nil {
		return
	}
	if runErr != nil {
		j.run.Status = state.RunStatusFailed
		j.run.Error = runErr.Error()
	}
	// record the outcome even when ctx was cancelled mid-run
	if err := j.store.FinishRun(context.WithoutCancel(ctx), j.run); err != nil {
		j.logger.Warn("failed to record run outcome", slog.String("id", j.run.ID), slog.String("error", err.Error()))
	}
}

// confirm asks question on the renderer and reads a y/N answer from in.
// Anything but y or yes, including end of input, declines.
func confirm(r *output.Renderer, in io.Reader, question string) (bool, error) {
	_, _ = fmt.Fprintf(r.ErrWriter(), "%s [y/N]: ", question)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
