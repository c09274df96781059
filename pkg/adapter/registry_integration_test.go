package adapter_test

import (
	"testing"

	"github.com/querylens/querylens/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages so their init() registration runs.
	_ "github.com/querylens/querylens/pkg/adapters/duckdb"
	_ "github.com/querylens/querylens/pkg/adapters/postgres"
	_ "github.com/querylens/querylens/pkg/adapters/sqlite"
)

func TestAdapterSelfRegistration(t *testing.T) {
	tests := []struct {
		name        string
		adapterName string
		expected    bool
	}{
		{"duckdb registered", "duckdb", true},
		{"postgres registered", "postgres", true},
		{"sqlite registered", "sqlite", true},
		{"unknown not registered", "unknown_db", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.IsRegistered(tt.adapterName), "IsRegistered(%q)", tt.adapterName)
		})
	}
}

func TestListAdaptersIncludesBuiltins(t *testing.T) {
	adapters := adapter.ListAdapters()
	assert.Contains(t, adapters, "duckdb")
	assert.Contains(t, adapters, "postgres")
	assert.Contains(t, adapters, "sqlite")
}

func TestGetFactory(t *testing.T) {
	factory, ok := adapter.Get("duckdb")
	require.True(t, ok)
	require.NotNil(t, factory)

	_, ok = adapter.Get("nonexistent")
	assert.False(t, ok)
}

func TestNewAdapter_Registered(t *testing.T) {
	adp, err := adapter.NewAdapter(adapter.Config{Type: "duckdb", Path: ":memory:"}, nil)
	require.NoError(t, err)
	require.NotNil(t, adp)
	assert.Equal(t, "duckdb", adp.DialectName())
}

func TestNewAdapter_UnknownListsAvailable(t *testing.T) {
	_, err := adapter.NewAdapter(adapter.Config{Type: "unknown_adapter"}, nil)
	require.Error(t, err)

	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, unknown.Available, "duckdb")
}
