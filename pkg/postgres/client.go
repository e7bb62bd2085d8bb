// Package postgres opens the connection pool used by the analytics snapshot
// store. The driver is lib/pq; the pool is verified with a ping at startup
// so a misconfigured database fails fast instead of on the first snapshot.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/searchlab/prodsearch/pkg/config"
)

// Client wraps the sql.DB pool.
type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

// New opens and pings a PostgreSQL connection pool.
func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

// Close closes the underlying pool.
func (c *Client) Close() error {
	return c.DB.Close()
}
