// Package config loads the poisync CLI configuration.
//
// Values are layered from built-in defaults, poisync.yaml, environment
// variables and explicitly set command-line flags, in that order of
// increasing precedence.
package config

import (
	"github.com/mapierhub/poisync/internal/overture"
	"github.com/mapierhub/poisync/pkg/adapter"
)

// Config holds all CLI configuration options.
type Config struct {
	StatePath string `koanf:"state_path"`
	Verbose   bool   `koanf:"verbose"`

	// Source is the engine used to read the Overture release.
	Source adapter.Config `koanf:"source"`
	// Store is the database receiving the places.
	Store adapter.Config `koanf:"store"`
	// Table is the destination table, optionally schema qualified.
	Table string `koanf:"table"`

	Overture OvertureConfig `koanf:"overture"`
	Import   ImportConfig   `koanf:"import"`
	Clear    ClearConfig    `koanf:"clear"`
}

// OvertureConfig selects the release and the base filter of an import.
type OvertureConfig struct {
	Release      string        `koanf:"release"`
	PathTemplate string        `koanf:"path_template"`
	Country      string        `koanf:"country"`
	BBox         overture.BBox `koanf:"bbox"`
}

// ImportConfig tunes the import command.
type ImportConfig struct {
	PageSize  int `koanf:"page_size"`
	BatchSize int `koanf:"batch_size"`
	// ConfirmThreshold is the row count above which an import asks first.
	ConfirmThreshold int64 `koanf:"confirm_threshold"`
}

// ClearConfig tunes the clear command.
type ClearConfig struct {
	PageSize int `koanf:"page_size"`
}

// Query builds the Overture query for this configuration. Per-run filters
// are applied by the caller.
func (c *Config) Query() overture.Query {
	return overture.Query{
		Release:      c.Overture.Release,
		PathTemplate: c.Overture.PathTemplate,
		Country:      c.Overture.Country,
		BBox:         c.Overture.BBox,
	}
}

// Default configuration values.
const (
	DefaultConfigFile       = "poisync.yaml"
	DefaultStateFile        = ".poisync/state.db"
	DefaultTable            = "places"
	DefaultImportPageSize   = 500
	DefaultBatchSize        = 500
	DefaultConfirmThreshold = 10000
	DefaultClearPageSize    = 1000
	EnvPrefix               = "POISYNC_"
)
