package sqlite

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
		{name: "empty path is in-memory", cfg: adapter.Config{}, want: ":memory:"},
		{name: "explicit memory path", cfg: adapter.Config{Path: ":memory:"}, want: ":memory:"},
		{name: "file path defaults to read-only", cfg: adapter.Config{Path: "data.db"}, want: "data.db?mode=ro"},
		{
			name: "mode option overrides",
			cfg:  adapter.Config{Path: "data.db", Options: map[string]string{"mode": "rw"}},
			want: "data.db?mode=rw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.cfg))
		})
	}
}

func TestDialectName(t *testing.T) {
	assert.Equal(t, "sqlite", New(nil).DialectName())
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"movies"`, quoteIdent("movies"))
	assert.Equal(t, `"odd""name"`, quoteIdent(`odd"name`))
}
