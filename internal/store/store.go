// Package store implements the import pipeline's collaborator interfaces
// on PostgreSQL via pgx: the inventory record sink, the category/location
// reference lookup, and the audit log.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-app/stockroom/internal/importer"
)

// Connect opens a pgx pool and verifies connectivity before returning.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// classify maps driver errors onto the pipeline's failure model. Server
// responses (constraint violations and the like) stay row-local; anything
// that means the database itself is unreachable becomes ErrSinkUnavailable
// so the committer aborts instead of failing every remaining row.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception, class 57 operator intervention
		// (shutdown). Both mean the server is going away.
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57") {
			return fmt.Errorf("%w: %v", importer.ErrSinkUnavailable, err)
		}
		return err
	}

	// No PgError means the request never got a server response.
	return fmt.Errorf("%w: %v", importer.ErrSinkUnavailable, err)
}
