package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDBName(t *testing.T) {
	cases := []struct {
		name string
		dsn  string
		db   string
		want string
	}{
		{"replace path", "postgres://u@h:5432/postgres?sslmode=disable", "muni", "postgres://u@h:5432/muni?sslmode=disable"},
		{"postgresql scheme", "postgresql://u@h/old", "new", "postgresql://u@h/new"},
		{"bare host", "u@h:5432/old", "new", "postgres://u@h:5432/new"},
		{"leading slash", "postgres://u@h/old", "/new", "postgres://u@h/new"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := WithDBName(tc.dsn, tc.db)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWithDBNameEmptyDSN(t *testing.T) {
	_, err := WithDBName("", "muni")
	assert.Error(t, err)
}
