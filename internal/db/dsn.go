package db

import (
	"fmt"
	"net/url"
	"strings"
)

// WithDBName returns the DSN with its database path replaced. Accepts
// postgres:// and postgresql:// DSNs, or a bare host form without a scheme.
func WithDBName(dsn, database string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("empty DSN")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	u.Path = "/" + strings.TrimPrefix(database, "/")
	return u.String(), nil
}
