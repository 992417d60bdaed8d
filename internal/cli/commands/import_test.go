package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mapierhub/poisync/internal/cli/config"
	"github.com/mapierhub/poisync/internal/cli/output"
	"github.com/mapierhub/poisync/internal/overture"
	"github.com/mapierhub/poisync/internal/pipeline"
	"github.com/mapierhub/poisync/internal/places"
	"github.com/mapierhub/poisync/internal/sink"
	"github.com/mapierhub/poisync/internal/state"
	"github.com/mapierhub/poisync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowSource serves generated rows; ids listed in bad have no id column.
type rowSource struct {
	rows      int
	bad       map[int]bool
	failAfter int
	served    int
	pages     int
	opened    bool
}

func (s *rowSource) Count(context.Context) (int64, error) { return int64(s.rows), nil }

func (s *rowSource) Open(context.Context) (pipeline.Cursor, error) {
	s.opened = true
	return s, nil
}

func (s *rowSource) Next(_ context.Context, n int) ([]places.SourceRecord, error) {
	if s.failAfter > 0 && s.pages == s.failAfter {
		return nil, errors.New("IO Error: connection reset reading parquet")
	}
	s.pages++
	end := min(s.served+n, s.rows)
	page := make([]places.SourceRecord, 0, end-s.served)
	for i := s.served; i < end; i++ {
		if s.bad[i] {
			page = append(page, places.SourceRecord{"name": "nameless"})
			continue
		}
		page = append(page, places.SourceRecord{"id": fmt.Sprintf("ovt-%06d", i), "name": "Place"})
	}
	s.served = end
	return page, nil
}

func (s *rowSource) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Table: "places",
		Import: config.ImportConfig{
			PageSize:         500,
			BatchSize:        500,
			ConfirmThreshold: config.DefaultConfirmThreshold,
		},
		Clear: config.ClearConfig{PageSize: 1000},
	}
}

func openTestJournal(t *testing.T) *state.SQLiteStore {
	t.Helper()
	j := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, j.Open(":memory:"))
	t.Cleanup(func() { _ = j.Close() })
	return j
}

type importHarness struct {
	run     importRun
	store   *testutil.MemStore
	source  *rowSource
	journal *state.SQLiteStore
	out     *bytes.Buffer
	errOut  *bytes.Buffer
}

func newImportHarness(t *testing.T, rows int, mode output.OutputMode) *importHarness {
	t.Helper()
	h := &importHarness{
		store:   testutil.NewMemStore(),
		source:  &rowSource{rows: rows},
		journal: openTestJournal(t),
		out:     &bytes.Buffer{},
		errOut:  &bytes.Buffer{},
	}
	q := overture.DefaultQuery()
	h.run = importRun{
		cfg:     testConfig(),
		opts:    &ImportOptions{},
		query:   q,
		source:  h.source,
		writer:  sink.New(h.store, nil),
		journal: h.journal,
		in:      strings.NewReader(""),
		r:       output.NewRendererWithTTY(h.out, h.errOut, false, mode),
		logger:  testutil.NewTestLogger(t),
	}
	return h
}

func (h *importHarness) lastRun(t *testing.T) *state.Run {
	t.Helper()
	runs, err := h.journal.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run, err := h.journal.GetRun(context.Background(), runs[0].ID)
	require.NoError(t, err)
	return run
}

func TestExecuteImport_Completes(t *testing.T) {
	h := newImportHarness(t, 1200, output.ModeText)
	h.source.bad = map[int]bool{17: true}

	require.NoError(t, executeImport(context.Background(), h.run))

	assert.Equal(t, 1199, h.store.Len())
	out := h.out.String()
	assert.Contains(t, out, "Importing Overture places (release "+overture.DefaultRelease+")")
	assert.Contains(t, out, "1,199")
	assert.Contains(t, out, "Error samples (1 of 1)")
	assert.Contains(t, out, "transform error: id is missing")
	assert.Contains(t, out, `UPDATE "places" SET geom = ST_SetSRID(ST_MakePoint(lon, lat), 4326)`)
	assert.Contains(t, h.errOut.String(), "Imported 1,200 / 1,200", "progress lines when not on a terminal")

	run := h.lastRun(t)
	assert.Equal(t, state.RunKindImport, run.Kind)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, overture.DefaultRelease, run.Release)
	assert.Equal(t, int64(1200), run.Pulled)
	assert.Equal(t, int64(1199), run.Succeeded)
	assert.Equal(t, int64(1), run.Failed)
	assert.Equal(t, []string{"transform error: id is missing"}, run.Samples)
}

func TestExecuteImport_Confirmation(t *testing.T) {
	tests := []struct {
		name       string
		rows       int
		threshold  int64
		yes        bool
		answer     string
		wantPrompt bool
		wantRows   int
		wantStatus state.RunStatus
	}{
		{name: "below threshold", rows: 20, threshold: 100, wantRows: 20, wantStatus: state.RunStatusCompleted},
		{name: "at threshold", rows: 100, threshold: 100, wantRows: 100, wantStatus: state.RunStatusCompleted},
		{name: "declined", rows: 101, threshold: 100, answer: "n\n", wantPrompt: true, wantStatus: state.RunStatusAborted},
		{name: "no answer", rows: 101, threshold: 100, answer: "", wantPrompt: true, wantStatus: state.RunStatusAborted},
		{name: "accepted", rows: 101, threshold: 100, answer: "y\n", wantPrompt: true, wantRows: 101, wantStatus: state.RunStatusCompleted},
		{name: "yes flag", rows: 101, threshold: 100, yes: true, wantRows: 101, wantStatus: state.RunStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newImportHarness(t, tt.rows, output.ModeText)
			h.run.cfg.Import.ConfirmThreshold = tt.threshold
			h.run.opts.Yes = tt.yes
			h.run.in = strings.NewReader(tt.answer)

			require.NoError(t, executeImport(context.Background(), h.run))

			assert.Equal(t, tt.wantPrompt, strings.Contains(h.errOut.String(), "Continue? [y/N]"))
			assert.Equal(t, tt.wantRows, h.store.Len())
			assert.Equal(t, tt.wantStatus, h.lastRun(t).Status)
			if tt.wantStatus == state.RunStatusAborted {
				assert.Contains(t, h.out.String(), "Import cancelled.")
				assert.False(t, h.source.opened)
			}
		})
	}
}

func TestExecuteImport_DryRun(t *testing.T) {
	h := newImportHarness(t, 50000, output.ModeText)
	h.run.opts.DryRun = true
	h.run.writer = nil

	require.NoError(t, executeImport(context.Background(), h.run))

	assert.Contains(t, h.out.String(), "Dry run: 50,000 places match. Nothing was imported.")
	assert.NotContains(t, h.out.String(), "UPDATE")
	assert.False(t, h.source.opened)
	assert.Zero(t, h.store.UpsertCalls)

	run := h.lastRun(t)
	assert.True(t, run.DryRun)
	assert.Equal(t, int64(50000), run.Total)
	assert.Zero(t, run.Pulled)
}

func TestExecuteImport_SourceFault(t *testing.T) {
	h := newImportHarness(t, 5000, output.ModeText)
	h.source.failAfter = 2

	err := executeImport(context.Background(), h.run)
	require.Error(t, err)

	var fault *pipeline.SourceFault
	require.True(t, errors.As(err, &fault))
	assert.Contains(t, err.Error(), "import stopped after 1,000 rows")
	assert.Equal(t, 1000, h.store.Len())

	run := h.lastRun(t)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "connection reset")
	assert.Equal(t, int64(1000), run.Succeeded)
}

func TestExecuteImport_WithoutJournal(t *testing.T) {
	h := newImportHarness(t, 10, output.ModeText)
	h.run.journal = nil

	require.NoError(t, executeImport(context.Background(), h.run))
	assert.Equal(t, 10, h.store.Len())
}

func TestExecuteImport_JSON(t *testing.T) {
	h := newImportHarness(t, 30, output.ModeJSON)
	h.run.query.Category = "cafe"

	require.NoError(t, executeImport(context.Background(), h.run))

	var summary ImportSummary
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &summary))
	assert.Equal(t, int64(30), summary.Imported)
	assert.Equal(t, int64(30), summary.Pulled)
	assert.Equal(t, overture.DefaultRelease, summary.Release)
	assert.Contains(t, summary.Filters, "category=cafe")
	assert.Empty(t, h.errOut.String(), "no progress lines in JSON mode")
}

func TestExecuteImport_Markdown(t *testing.T) {
	h := newImportHarness(t, 3, output.ModeMarkdown)

	require.NoError(t, executeImport(context.Background(), h.run))

	out := h.out.String()
	assert.Contains(t, out, "| Imported | 3 |")
	assert.Contains(t, out, "```sql")
}

func TestImportQuery(t *testing.T) {
	cfg := &config.Config{Overture: config.OvertureConfig{
		Release: "2025-10-22.0",
		Country: "US",
		BBox:    overture.USBBox,
	}}

	q := importQuery(cfg, &ImportOptions{Limit: 100, Category: "coffee_shop", Region: "wa"})

	assert.Equal(t, "2025-10-22.0", q.Release)
	assert.Equal(t, "coffee_shop", q.Category)
	assert.Equal(t, "WA", q.Region)
	assert.Equal(t, int64(100), q.Limit)
}

func TestDescribeQuery(t *testing.T) {
	q := overture.DefaultQuery()
	assert.Equal(t, "country=US lon=[-180,-65] lat=[18,72]", describeQuery(q))

	q.Category = "bakery"
	q.Region = "CA"
	q.Limit = 50
	assert.Equal(t, "country=US lon=[-180,-65] lat=[18,72] category=bakery state=CA limit=50", describeQuery(q))
}
