package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/mapierhub/poisync/internal/overture"
	"github.com/mapierhub/poisync/pkg/adapter"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// configKey is used to store the loaded config in context.
type configKey struct{}

// connectionEnvVars map well-known connection variables onto config keys.
// Later entries win.
var connectionEnvVars = []struct {
	name string
	key  string
}{
	{"DATABASE_URL", "store.dsn"},
	{"SUPABASE_DB_URL", "store.dsn"},
}

// flagKeys maps flag names onto config keys. Flags absent from the map are
// per-run options and never reach the config.
var flagKeys = map[string]string{
	"state-db":   "state_path",
	"verbose":    "verbose",
	"table":      "table",
	"release":    "overture.release",
	"batch-size": "import.batch_size",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func defaults() map[string]any {
	return map[string]any{
		"state_path": DefaultStateFile,
		"verbose":    false,
		"table":      DefaultTable,
		"source": map[string]any{
			"type": "duckdb",
			"params": map[string]any{
				"extensions": []any{"spatial", "httpfs"},
				"settings":   map[string]any{"s3_region": "us-west-2"},
			},
		},
		"store": map[string]any{
			"type": "postgres",
		},
		"overture": map[string]any{
			"release":       overture.DefaultRelease,
			"path_template": overture.DefaultPathTemplate,
			"country":       overture.DefaultCountry,
			"bbox": map[string]any{
				"min_lon": overture.USBBox.MinLon,
				"max_lon": overture.USBBox.MaxLon,
				"min_lat": overture.USBBox.MinLat,
				"max_lat": overture.USBBox.MaxLat,
			},
		},
		"import": map[string]any{
			"page_size":         DefaultImportPageSize,
			"batch_size":        DefaultBatchSize,
			"confirm_threshold": DefaultConfirmThreshold,
		},
		"clear": map[string]any{
			"page_size": DefaultClearPageSize,
		},
	}
}

// findConfigFile returns the explicit path, or poisync.yaml/poisync.yml in
// the working directory when present.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{DefaultConfigFile, "poisync.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads configuration from defaults, file, environment variables and
// flags. Precedence (highest to lowest): flags > env vars > config file >
// defaults. section names the running command so that its --page-size flag
// lands on the right key.
func Load(cfgFile string, flags *pflag.FlagSet, section string) (*Config, string, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Well-known connection variables, below the prefixed ones
	conn := make(map[string]any)
	for _, v := range connectionEnvVars {
		if val := os.Getenv(v.name); val != "" {
			conn[v.key] = val
		}
	}
	if len(conn) > 0 {
		if err := k.Load(confmap.Provider(conn, "."), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load connection env vars: %w", err)
		}
	}

	// 4. POISYNC_ variables; POISYNC_STORE__DSN -> store.dsn
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := flagKey(f.Name, section)
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}

	expandAdapterEnvVars(&cfg)

	return &cfg, used, nil
}

func flagKey(name, section string) string {
	if name == "page-size" && section != "" {
		return section + ".page_size"
	}
	return flagKeys[name]
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// expandAdapterEnvVars expands environment variables in connection fields
// and in string params such as secret keys.
func expandAdapterEnvVars(cfg *Config) {
	for _, a := range []*adapter.Config{&cfg.Source, &cfg.Store} {
		a.DSN = expandEnvVars(a.DSN)
		a.Host = expandEnvVars(a.Host)
		a.Username = expandEnvVars(a.Username)
		a.Password = expandEnvVars(a.Password)
		a.Database = expandEnvVars(a.Database)
		a.Path = expandEnvVars(a.Path)
		expandParams(a.Params)
	}
}

func expandParams(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			m[k] = expandEnvVars(val)
		case map[string]any:
			expandParams(val)
		case []any:
			for i, item := range val {
				switch it := item.(type) {
				case string:
					val[i] = expandEnvVars(it)
				case map[string]any:
					expandParams(it)
				}
			}
		}
	}
}

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the config stored by WithConfig, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configKey{}).(*Config)
	return cfg
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
