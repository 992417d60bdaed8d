// Package duckdb provides the DuckDB adapter used to read remote parquet
// files. Import it to register the "duckdb" adapter type.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mapierhub/poisync/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "duckdb"
}

// Connect opens DuckDB and applies extensions, settings and secrets from
// cfg.Params. Use ":memory:" or an empty path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Settings and loaded extensions are per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	if err := a.applyParams(ctx, params); err != nil {
		_ = db.Close()
		a.DB = nil
		return err
	}

	a.Logger.Debug("connected to duckdb",
		slog.String("path", path),
		slog.Any("extensions", params.Extensions))
	return nil
}

func (a *Adapter) applyParams(ctx context.Context, p *Params) error {
	for _, ext := range p.Extensions {
		if err := a.Exec(ctx, "INSTALL "+ext); err != nil {
			return fmt.Errorf("failed to install extension %s: %w", ext, err)
		}
		if err := a.Exec(ctx, "LOAD "+ext); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	for _, stmt := range settingStatements(p.Settings) {
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting: %w", err)
		}
	}

	for _, s := range p.Secrets {
		if err := a.Exec(ctx, buildCreateSecretSQL(s)); err != nil {
			return fmt.Errorf("failed to create %s secret: %w", s.Type, err)
		}
	}
	return nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
