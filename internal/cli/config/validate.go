package config

import (
	"fmt"
	"strings"

	"github.com/mapierhub/poisync/internal/store"
	"github.com/mapierhub/poisync/pkg/adapter"
)

// ConfigurationError reports required settings that are absent. It is
// raised before any connection is attempted.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s\nHint: set them in %s or via %s* environment variables",
		strings.Join(e.Missing, ", "), DefaultConfigFile, EnvPrefix)
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	for _, cfg := range []struct {
		key string
		typ string
	}{
		{"source.type", c.Source.Type},
		{"store.type", c.Store.Type},
	} {
		if cfg.typ == "" {
			return &ConfigurationError{Missing: []string{cfg.key}}
		}
		if !adapter.IsRegistered(cfg.typ) {
			return &adapter.UnknownAdapterError{Type: cfg.typ, Available: adapter.ListAdapters()}
		}
	}

	if c.Import.PageSize <= 0 {
		return fmt.Errorf("import.page_size must be positive, got %d", c.Import.PageSize)
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be positive, got %d", c.Import.BatchSize)
	}
	if limit := store.MaxBatchSize(); c.Import.BatchSize > limit {
		return fmt.Errorf("import.batch_size must be at most %d, got %d", limit, c.Import.BatchSize)
	}
	if c.Clear.PageSize <= 0 {
		return fmt.Errorf("clear.page_size must be positive, got %d", c.Clear.PageSize)
	}
	if c.Clear.PageSize > store.MaxBindParams {
		return fmt.Errorf("clear.page_size must be at most %d, got %d", store.MaxBindParams, c.Clear.PageSize)
	}
	return nil
}

// ValidateStore checks that the store can be reached: either a full DSN or
// a host with credentials.
func (c *Config) ValidateStore() error {
	if c.Store.DSN != "" {
		return nil
	}

	var missing []string
	if c.Store.Host == "" {
		missing = append(missing, "store.dsn (SUPABASE_DB_URL)")
	} else if c.Store.Password == "" {
		missing = append(missing, "store.password")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}
