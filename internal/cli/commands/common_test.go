package commands

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mapierhub/poisync/internal/cli/output"
	"github.com/mapierhub/poisync/internal/state"
	"github.com/mapierhub/poisync/internal/testutil"
	"github.com/mapierhub/poisync/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"  YES  \n", true},
		{"y", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yep\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			errOut := &bytes.Buffer{}
			r := output.NewRendererWithTTY(&bytes.Buffer{}, errOut, false, output.ModeText)

			got, err := confirm(r, strings.NewReader(tt.input), "Proceed?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Proceed? [y/N]: ", errOut.String())
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("bad file descriptor") }

func TestConfirm_ReadError(t *testing.T) {
	r := output.NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, false, output.ModeText)
	_, err := confirm(r, failingReader{}, "Proceed?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read confirmation")
}

func TestOpenJournal(t *testing.T) {
	logger := testutil.NewTestLogger(t)

	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", ".poisync", "state.db")
		j := openJournal(path, logger)
		require.NotNil(t, j)
		defer func() { _ = j.Close() }()

		_, err := j.ListRuns(context.Background(), 5)
		require.NoError(t, err)
	})

	t.Run("disabled when path is empty", func(t *testing.T) {
		assert.Nil(t, openJournal("", logger))
	})
}

// brokenJournal rejects every write.
type brokenJournal struct {
	state.Store
	finished bool
}

func (b *brokenJournal) StartRun(context.Context, *state.Run) error {
	return errors.New("disk I/O error")
}

func (b *brokenJournal) FinishRun(context.Context, *state.Run) error {
	b.finished = true
	return nil
}

func TestJournal_StartFailureDisablesRecording(t *testing.T) {
	b := &brokenJournal{}
	j := startJournal(context.Background(), b, &state.Run{Kind: state.RunKindImport}, testutil.NewTestLogger(t))
	j.finish(context.Background(), nil)
	assert.False(t, b.finished)
}

func TestJournal_FinishMarksFailure(t *testing.T) {
	store := openTestJournal(t)
	ctx, cancel := context.WithCancel(context.Background())

	run := &state.Run{Kind: state.RunKindImport}
	j := startJournal(ctx, store, run, testutil.NewTestLogger(t))
	cancel()
	j.finish(ctx, context.Canceled)

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, got.Status)
	assert.Equal(t, "context canceled", got.Error)
}

func TestOpenAdapter_UnknownType(t *testing.T) {
	_, err := openAdapter(context.Background(), adapter.Config{Type: "oracle"}, nil)
	var unknown *adapter.UnknownAdapterError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "oracle", unknown.Type)
}
