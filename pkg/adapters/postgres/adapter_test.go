package postgres

import (
	"testing"

	"github.com/querylens/querylens/pkg/adapter"
	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  adapter.Config
		want string
	}{
		{
			name: "full config defaults to read-only",
			cfg: adapter.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "analytics",
				Username: "reader",
				Password: "secret",
			},
			want: "host=db.example.com port=5433 dbname=analytics user=reader password=secret default_transaction_read_only=on",
		},
		{
			name: "schema maps to search_path",
			cfg: adapter.Config{
				Host:     "localhost",
				Database: "app",
				Schema:   "reporting",
			},
			want: "host=localhost dbname=app search_path=reporting default_transaction_read_only=on",
		},
		{
			name: "read_only opt-out",
			cfg: adapter.Config{
				Host:     "localhost",
				Database: "app",
				Options:  map[string]string{"read_only": "false"},
			},
			want: "host=localhost dbname=app",
		},
		{
			name: "extra options sorted",
			cfg: adapter.Config{
				Host:     "localhost",
				Database: "app",
				Options:  map[string]string{"sslmode": "require", "connect_timeout": "5"},
			},
			want: "host=localhost dbname=app connect_timeout=5 sslmode=require default_transaction_read_only=on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.cfg))
		})
	}
}

func TestDialectName(t *testing.T) {
	assert.Equal(t, "postgres", New(nil).DialectName())
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"movies"`, quoteIdent("movies"))
	assert.Equal(t, `"odd""name"`, quoteIdent(`odd"name`))
}
