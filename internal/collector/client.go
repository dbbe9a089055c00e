package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultQueryTimeout   = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	DSN            string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	MaxOpenConns   int
}

// Client runs diagnostic queries against one Postgres database.
// Each fact method issues one query, retrying transient failures.
type Client struct {
	db           *sql.DB
	queryTimeout time.Duration
	retry        retryConfig
}

// Open connects to the database in opts.DSN and verifies the connection.
func Open(ctx context.Context, opts Options) (*Client, error) {
	if opts.DSN == "" {
		return nil, errors.New("dsn is required")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 4
	}

	db, err := sql.Open("pgx", NormalizeDSN(opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxOpenConns / 2)
	db.SetConnMaxLifetime(time.Hour)

	c := NewClient(db, opts.QueryTimeout)

	pingCtx, cancel := withTotalTimeoutContext(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := executeWithRetry(pingCtx, c.retry, func() error {
		return db.PingContext(pingCtx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", MaskDSN(opts.DSN), err)
	}

	slog.Debug("connected to postgres", slog.String("dsn", MaskDSN(opts.DSN)))
	return c, nil
}

// NewClient wraps an existing handle.
func NewClient(db *sql.DB, queryTimeout time.Duration) *Client {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &Client{
		db:           db,
		queryTimeout: queryTimeout,
		retry:        defaultRetryConfig(),
	}
}

// DB exposes the underlying handle for statement execution.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close releases the connection pool.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// queryRow scans a single row produced by query.
func (c *Client) queryRow(ctx context.Context, name, query string, dest ...any) error {
	err := executeWithRetry(ctx, c.retry, func() error {
		qctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
		return c.db.QueryRowContext(qctx, query).Scan(dest...)
	})
	return wrapQueryError(name, err)
}

// queryAll scans every row of query with scan.
func queryAll[T any](ctx context.Context, c *Client, name, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	var out []T
	err := executeWithRetry(ctx, c.retry, func() error {
		out = nil
		qctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()

		rows, err := c.db.QueryContext(qctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				return err
			}
			out = append(out, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapQueryError(name, err)
	}
	return out, nil
}
