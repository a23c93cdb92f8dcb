// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

// Package store opens the PostgreSQL connection pool and manages the
// identity schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	defaultConnectRetries = 10
	defaultConnectBackoff = 250 * time.Millisecond
	maxConnectBackoff     = 5 * time.Second
)

type openConfig struct {
	retries uint64
	backoff time.Duration
	logger  *slog.Logger
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

// WithConnectRetry sets how many times Open re-pings an unreachable database
// and the initial exponential backoff between attempts.
func WithConnectRetry(retries uint64, backoff time.Duration) OpenOption {
	return func(c *openConfig) {
		c.retries = retries
		c.backoff = backoff
	}
}

// WithLogger sets the logger used to report connection attempts.
func WithLogger(logger *slog.Logger) OpenOption {
	return func(c *openConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open creates a connection pool for databaseURL and waits until the
// database answers a ping. The pool is closed if the database never becomes
// reachable.
func Open(ctx context.Context, databaseURL string, opts ...OpenOption) (*pgxpool.Pool, error) {
	cfg := openConfig{
		retries: defaultConnectRetries,
		backoff: defaultConnectBackoff,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, oops.Code("DB_POOL_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitReady(ctx, pool.Ping, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// waitReady calls ping until it succeeds, the retries run out, or ctx ends.
func waitReady(ctx context.Context, ping func(context.Context) error, cfg openConfig) error {
	backoff := retry.NewExponential(cfg.backoff)
	backoff = retry.WithCappedDuration(maxConnectBackoff, backoff)
	backoff = retry.WithMaxRetries(cfg.retries, backoff)

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := ping(ctx); err != nil {
			cfg.logger.WarnContext(ctx, "database not ready",
				"attempt", attempts,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_UNAVAILABLE").
			With("attempts", attempts).
			Wrap(err)
	}
	if attempts > 1 {
		cfg.logger.InfoContext(ctx, "database ready", "attempts", attempts)
	}
	return nil
}
