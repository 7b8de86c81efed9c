package database

import (
	"fmt"
	"net/url"

	"github.com/bracketworks/livecast/internal/config"
)

// BuildConnString renders a postgres:// URL from the database config.
// The password is query-escaped so credentials with reserved
// characters survive the round trip through pgxpool's URL parser.
func BuildConnString(cfg config.DBConfig) string {
	ssl := cfg.SSLMode
	if ssl == "" {
		ssl = "prefer"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, url.QueryEscape(cfg.Password),
		cfg.Host, cfg.Port, cfg.Name, ssl)
}
