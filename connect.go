package objectkit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnConfig holds the externally supplied connection parameters. It is a
// convenience for hosts that configure host/port/credentials separately;
// hosts that already have a DSN can call Connect directly.
type ConnConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// URL renders the config as a pgx-compatible connection URL. Credentials are
// escaped so passwords with special characters survive.
func (c ConnConfig) URL() string {
	var b strings.Builder
	b.WriteString("postgresql://")
	if c.User != "" {
		b.WriteString(url.QueryEscape(c.User))
		if c.Password != "" {
			b.WriteString(":")
			b.WriteString(url.QueryEscape(c.Password))
		}
		b.WriteString("@")
	}
	b.WriteString(c.Host)
	port := c.Port
	if port == 0 {
		port = 5432
	}
	fmt.Fprintf(&b, ":%d/%s", port, c.Database)
	if c.SSLMode != "" {
		b.WriteString("?sslmode=")
		b.WriteString(url.QueryEscape(c.SSLMode))
	}
	return b.String()
}

// Connect opens a pool and pings it so misconfiguration fails fast instead
// of on the first query.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
