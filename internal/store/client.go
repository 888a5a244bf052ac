// Package store provides the Postgres-backed Checkpoint Store and
// Transfer Sink capabilities the engine persists through.
package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed schema.sql
var schemaSQL string

// Client owns the shared connection pool both CheckpointStore and
// TransferSink persist through.
type Client struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewClient connects to Postgres and applies the engine's schema.
func NewClient(ctx context.Context, dbURL string, logger zerolog.Logger) (*Client, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info().Msg("connected to database, schema applied")

	return &Client{pool: pool, logger: logger.With().Str("component", "store").Logger()}, nil
}

// Pool exposes the underlying pool for package-local store types.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Close releases the connection pool.
func (c *Client) Close() {
	c.pool.Close()
}
