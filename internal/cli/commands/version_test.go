package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mapierhub/poisync/internal/cli/config"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantOut []string
		wantErr bool
	}{
		{
			name:    "default version",
			version: "0.1.0",
			wantOut: []string{"poisync v0.1.0", "commit abc123", "default Overture release 2025-11-19.0"},
		},
		{
			name:    "custom version",
			version: "1.2.3",
			wantOut: []string{"poisync v1.2.3"},
		},
		{
			name:    "dev version",
			version: "dev",
			wantOut: []string{"poisync vdev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version, "abc123", "2026-01-02")
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			output := buf.String()
			for _, want := range tt.wantOut {
				if !strings.Contains(output, want) {
					t.Errorf("output should contain %q, got: %s", want, output)
				}
			}
		})
	}
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand("test", "", "")

	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}

	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}

	if cmd.Long == "" {
		t.Error("Long should not be empty")
	}
}

func TestVersionCommand_JournalSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	seedJournal(t, path)

	tests := []struct {
		name      string
		statePath string
		want      bool
	}{
		{name: "existing journal", statePath: path, want: true},
		{name: "no journal yet", statePath: filepath.Join(t.TempDir(), "missing.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand("1.0.0", "abc123", "2026-01-02")
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)

			ctx := config.WithConfig(context.Background(), &config.Config{StatePath: tt.statePath})
			if err := cmd.ExecuteContext(ctx); err != nil {
				t.Fatalf("ExecuteContext() error = %v", err)
			}

			got := strings.Contains(buf.String(), "run journal schema v2 ("+tt.statePath+")")
			if got != tt.want {
				t.Errorf("journal schema line present = %v, want %v, got: %s", got, tt.want, buf.String())
			}
			if !tt.want {
				if _, err := os.Stat(tt.statePath); err == nil {
					t.Error("version must not create a journal")
				}
			}
		})
	}
}
