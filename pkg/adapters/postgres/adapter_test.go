package postgres

import (
	"context"
	"testing"

	"github.com/mapierhub/poisync/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name:     "defaults",
			config:   adapter.Config{},
			expected: "host=localhost port=5432 dbname=postgres sslmode=require",
		},
		{
			name: "supabase pooler",
			config: adapter.Config{
				Host:     "aws-0-us-west-1.pooler.supabase.com",
				Port:     6543,
				Database: "postgres",
				Username: "postgres.abcdefgh",
				Password: "s3cret",
			},
			expected: "host=aws-0-us-west-1.pooler.supabase.com port=6543 dbname=postgres user=postgres.abcdefgh password=s3cret sslmode=require",
		},
		{
			name: "options override sslmode and add keys",
			config: adapter.Config{
				Host:    "localhost",
				Options: map[string]string{"sslmode": "disable", "application_name": "poisync"},
			},
			expected: "host=localhost port=5432 dbname=postgres application_name=poisync sslmode=disable",
		},
		{
			name: "password needing quotes",
			config: adapter.Config{
				Password: `it's a pass\word`,
			},
			expected: `host=localhost port=5432 dbname=postgres password='it\'s a pass\\word' sslmode=require`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestNew(t *testing.T) {
	adp := New(nil)
	require.NotNil(t, adp)
	assert.NotNil(t, adp.Logger, "nil logger should fall back to discard")
	assert.Equal(t, "postgres", adp.DialectName())
	assert.Nil(t, adp.Conn())
}

func TestAdapter_NotConnected(t *testing.T) {
	adp := New(nil)
	ctx := context.Background()

	err := adp.Exec(ctx, "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not established")

	_, err = adp.Query(ctx, "SELECT 1")
	require.Error(t, err)
	assert.Nil(t, adp.Conn())
}

func TestAdapter_Registry(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"))

	a, err := adapter.NewAdapter(adapter.Config{Type: "postgres"}, nil)
	require.NoError(t, err)
	_, ok := a.(*Adapter)
	assert.True(t, ok)
}

func TestAdapter_Close(t *testing.T) {
	assert.NoError(t, New(nil).Close())
}
