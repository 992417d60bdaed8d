package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mapierhub/poisync/internal/cli/output"
	"github.com/mapierhub/poisync/internal/pipeline"
	"github.com/mapierhub/poisync/internal/state"
	"github.com/mapierhub/poisync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clearHarness struct {
	run     clearRun
	store   *testutil.MemStore
	journal *state.SQLiteStore
	out     *bytes.Buffer
	errOut  *bytes.Buffer
}

func newClearHarness(t *testing.T, rows int, mode output.OutputMode) *clearHarness {
	t.Helper()
	h := &clearHarness{
		store:   testutil.NewMemStore(),
		journal: openTestJournal(t),
		out:     &bytes.Buffer{},
		errOut:  &bytes.Buffer{},
	}
	h.store.Seed(rows)
	h.run = clearRun{
		cfg:     testConfig(),
		opts:    &ClearOptions{},
		target:  h.store,
		journal: h.journal,
		in:      strings.NewReader(""),
		r:       output.NewRendererWithTTY(h.out, h.errOut, false, mode),
		logger:  testutil.NewTestLogger(t),
	}
	return h
}

func (h *clearHarness) lastRun(t *testing.T) *state.Run {
	t.Helper()
	runs, err := h.journal.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	return runs[0]
}

func TestExecuteClear_Deletes(t *testing.T) {
	h := newClearHarness(t, 2500, output.ModeText)
	h.run.in = strings.NewReader("yes\n")

	require.NoError(t, executeClear(context.Background(), h.run))

	assert.Zero(t, h.store.Len())
	assert.Contains(t, h.errOut.String(), "Delete all 2,500 rows from places? [y/N]")
	assert.Contains(t, h.errOut.String(), "Deleted 1,000 / 2,500")
	assert.Contains(t, h.out.String(), "Deleted 2,500 / 2,500 rows from places")

	run := h.lastRun(t)
	assert.Equal(t, state.RunKindClear, run.Kind)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, int64(2500), run.Total)
	assert.Equal(t, int64(2500), run.Succeeded)
}

func TestExecuteClear_AlreadyEmpty(t *testing.T) {
	h := newClearHarness(t, 0, output.ModeText)

	require.NoError(t, executeClear(context.Background(), h.run))

	assert.Contains(t, h.out.String(), "Places table is already empty.")
	assert.NotContains(t, h.errOut.String(), "[y/N]")
}

func TestExecuteClear_Declined(t *testing.T) {
	h := newClearHarness(t, 10, output.ModeText)
	h.run.in = strings.NewReader("n\n")

	require.NoError(t, executeClear(context.Background(), h.run))

	assert.Equal(t, 10, h.store.Len())
	assert.Contains(t, h.out.String(), "Clear cancelled.")
	assert.Equal(t, state.RunStatusAborted, h.lastRun(t).Status)
}

func TestExecuteClear_YesSkipsPrompt(t *testing.T) {
	h := newClearHarness(t, 10, output.ModeText)
	h.run.opts.Yes = true

	require.NoError(t, executeClear(context.Background(), h.run))

	assert.Zero(t, h.store.Len())
	assert.NotContains(t, h.errOut.String(), "[y/N]")
}

func TestExecuteClear_StoreFailure(t *testing.T) {
	h := newClearHarness(t, 10, output.ModeText)
	h.run.opts.Yes = true
	h.store.Fault = errors.New("permission denied for table places")

	err := executeClear(context.Background(), h.run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	run := h.lastRun(t)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "permission denied")
}

// frozenTarget reports rows it never deletes.
type frozenTarget struct{}

func (frozenTarget) Count(context.Context) (int64, error) { return 3, nil }
func (frozenTarget) FetchIDs(context.Context, int) ([]string, error) { return []string{"a"}, nil }
func (frozenTarget) DeleteIDs(context.Context, []string) (int64, error) { return 0, nil }

func TestExecuteClear_NoProgress(t *testing.T) {
	h := newClearHarness(t, 0, output.ModeText)
	h.run.opts.Yes = true
	h.run.target = frozenTarget{}

	err := executeClear(context.Background(), h.run)
	require.ErrorIs(t, err, pipeline.ErrNoProgress)
}

func TestExecuteClear_JSON(t *testing.T) {
	h := newClearHarness(t, 1500, output.ModeJSON)
	h.run.opts.Yes = true

	require.NoError(t, executeClear(context.Background(), h.run))

	var summary ClearSummary
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &summary))
	assert.Equal(t, "places", summary.Table)
	assert.Equal(t, int64(1500), summary.Deleted)
	assert.Equal(t, 2, summary.Cycles)
	assert.False(t, summary.NothingToDo)
}
