package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr string
	}{
		{
			name:  "nil params returns empty struct",
			input: nil,
			want:  &Params{},
		},
		{
			name: "overture defaults",
			input: map[string]any{
				"extensions": []any{"spatial", "httpfs"},
				"settings": map[string]any{
					"s3_region": "us-west-2",
				},
			},
			want: &Params{
				Extensions: []string{"spatial", "httpfs"},
				Settings:   map[string]string{"s3_region": "us-west-2"},
			},
		},
		{
			name: "numeric settings become strings",
			input: map[string]any{
				"settings": map[string]any{"threads": 4},
			},
			want: &Params{
				Settings: map[string]string{"threads": "4"},
			},
		},
		{
			name: "secrets with credential_chain",
			input: map[string]any{
				"secrets": []any{
					map[string]any{
						"type":     "s3",
						"provider": "credential_chain",
						"region":   "us-west-2",
					},
				},
			},
			want: &Params{
				Secrets: []SecretConfig{
					{Type: "s3", Provider: "credential_chain", Region: "us-west-2"},
				},
			},
		},
		{
			name:    "unknown key rejected",
			input:   map[string]any{"extension": []any{"httpfs"}},
			wantErr: "invalid duckdb params",
		},
		{
			name: "secret without type rejected",
			input: map[string]any{
				"secrets": []any{map[string]any{"region": "us-west-2"}},
			},
			wantErr: "secrets[0].type is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingStatements(t *testing.T) {
	got := settingStatements(map[string]string{
		"threads":   "2",
		"s3_region": "us-west-2",
		"home":      "/tmp/o'neil",
	})
	assert.Equal(t, []string{
		"SET home = '/tmp/o''neil'",
		"SET s3_region = 'us-west-2'",
		"SET threads = '2'",
	}, got)
}

func TestBuildCreateSecretSQL(t *testing.T) {
	tests := []struct {
		name string
		cfg  SecretConfig
		want string
	}{
		{
			name: "s3 credential chain",
			cfg: SecretConfig{
				Type:     "s3",
				Provider: "credential_chain",
				Region:   "us-west-2",
			},
			want: `CREATE SECRET (
    TYPE s3,
    PROVIDER credential_chain,
    REGION 'us-west-2'
)`,
		},
		{
			name: "s3 with single scope",
			cfg: SecretConfig{
				Type:   "s3",
				Region: "us-west-2",
				Scope:  "s3://overturemaps-us-west-2",
			},
			want: `CREATE SECRET (
    TYPE s3,
    REGION 'us-west-2',
    SCOPE 's3://overturemaps-us-west-2'
)`,
		},
		{
			name: "s3 with multiple scopes",
			cfg: SecretConfig{
				Type:   "s3",
				Region: "eu-central-1",
				Scope:  []any{"s3://bucket1", "s3://bucket2"},
			},
			want: `CREATE SECRET (
    TYPE s3,
    REGION 'eu-central-1',
    SCOPE ('s3://bucket1', 's3://bucket2')
)`,
		},
		{
			name: "s3 compatible with endpoint and path style",
			cfg: SecretConfig{
				Type:     "s3",
				Provider: "config",
				KeyID:    "minioadmin",
				Secret:   "minio'admin",
				Endpoint: "localhost:9000",
				URLStyle: "path",
				UseSSL:   boolPtr(false),
			},
			want: `CREATE SECRET (
    TYPE s3,
    PROVIDER config,
    KEY_ID 'minioadmin',
    SECRET 'minio''admin',
    ENDPOINT 'localhost:9000',
    URL_STYLE 'path',
    USE_SSL false
)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildCreateSecretSQL(tt.cfg))
		})
	}
}

func boolPtr(b bool) *bool {
	return &b
}
