// Package postgres provides the PostgreSQL adapter. Import it to register
// the "postgres" adapter type.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/mapierhub/poisync/pkg/adapter"
)

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
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
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildPostgresDSN(cfg)
	}

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	database := cfg.Database
	if database == "" {
		database = "postgres"
	}

	opts := map[string]string{"sslmode": "require"}
	for k, v := range cfg.Options {
		opts[k] = v
	}

	parts := []string{
		"host=" + dsnValue(host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + dsnValue(database),
	}
	if cfg.Username != "" {
		parts = append(parts, "user="+dsnValue(cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+dsnValue(cfg.Password))
	}

	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+dsnValue(opts[k]))
	}

	return strings.Join(parts, " ")
}

// dsnValue quotes a keyword/value DSN value when it contains spaces,
// quotes or backslashes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
