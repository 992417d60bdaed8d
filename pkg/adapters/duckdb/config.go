package duckdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs", "spatial")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for cloud storage authentication
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., s3_region, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Type: "s3", "gcs", "azure", "r2"
	Type string `mapstructure:"type"`

	// Provider: "config", "credential_chain", etc.
	Provider string `mapstructure:"provider"`

	Region string `mapstructure:"region,omitempty"`

	// Scope limits the secret to specific paths (string or list of strings)
	Scope any `mapstructure:"scope,omitempty"`

	KeyID  string `mapstructure:"key_id,omitempty"`
	Secret string `mapstructure:"secret,omitempty"`

	// Endpoint for S3-compatible services (MinIO, etc.)
	Endpoint string `mapstructure:"endpoint,omitempty"`

	// URLStyle: "vhost" or "path" for S3
	URLStyle string `mapstructure:"url_style,omitempty"`

	UseSSL *bool `mapstructure:"use_ssl,omitempty"`
}

// parseParams decodes raw adapter params. Scalar settings are accepted
// in any YAML type and stored as strings.
func parseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	for i, s := range p.Secrets {
		if s.Type == "" {
			return nil, fmt.Errorf("invalid duckdb params: secrets[%d].type is required", i)
		}
	}
	return p, nil
}

// settingStatements returns SET statements in key order.
func settingStatements(settings map[string]string) []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stmts := make([]string, 0, len(keys))
	for _, k := range keys {
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, quoteLiteral(settings[k])))
	}
	return stmts
}

// buildCreateSecretSQL renders a CREATE SECRET statement for cfg.
func buildCreateSecretSQL(cfg SecretConfig) string {
	parts := []string{"TYPE " + cfg.Type}
	if cfg.Provider != "" {
		parts = append(parts, "PROVIDER "+cfg.Provider)
	}
	if cfg.Region != "" {
		parts = append(parts, "REGION "+quoteLiteral(cfg.Region))
	}
	if scope := formatScope(cfg.Scope); scope != "" {
		parts = append(parts, "SCOPE "+scope)
	}
	if cfg.KeyID != "" {
		parts = append(parts, "KEY_ID "+quoteLiteral(cfg.KeyID))
	}
	if cfg.Secret != "" {
		parts = append(parts, "SECRET "+quoteLiteral(cfg.Secret))
	}
	if cfg.Endpoint != "" {
		parts = append(parts, "ENDPOINT "+quoteLiteral(cfg.Endpoint))
	}
	if cfg.URLStyle != "" {
		parts = append(parts, "URL_STYLE "+quoteLiteral(cfg.URLStyle))
	}
	if cfg.UseSSL != nil {
		parts = append(parts, fmt.Sprintf("USE_SSL %t", *cfg.UseSSL))
	}
	return "CREATE SECRET (\n    " + strings.Join(parts, ",\n    ") + "\n)"
}

func formatScope(scope any) string {
	var items []string
	switch s := scope.(type) {
	case nil:
		return ""
	case string:
		if s == "" {
			return ""
		}
		return quoteLiteral(s)
	case []string:
		items = s
	case []any:
		for _, v := range s {
			items = append(items, fmt.Sprint(v))
		}
	default:
		return quoteLiteral(fmt.Sprint(s))
	}
	if len(items) == 0 {
		return ""
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = quoteLiteral(it)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
