// Package adapter provides the database adapter contract shared by the
// source and store connections, and a registry of adapter factories.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves from init().
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the connection settings for one adapter.
type Config struct {
	// Type selects the registered adapter (duckdb, postgres).
	Type string `koanf:"type"`

	// Path is the database file for embedded engines. Empty means in-memory.
	Path string `koanf:"path"`

	// DSN is a full connection string. When set it wins over the
	// individual host fields.
	DSN string `koanf:"dsn"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Username string `koanf:"user"`
	Password string `koanf:"password"`

	// Options are extra key=value connection options (e.g. sslmode).
	Options map[string]string `koanf:"options"`

	// Params carries adapter-specific settings decoded by the adapter.
	Params map[string]any `koanf:"params"`
}

// Adapter defines the interface that all database adapters implement.
type Adapter interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a statement that returns rows. The caller closes them.
	Query(ctx context.Context, sql string, args ...any) (*sql.Rows, error)

	// Conn returns the underlying connection pool, nil before Connect.
	Conn() *sql.DB

	// DialectName returns the SQL dialect spoken by the connection.
	DialectName() string
}
