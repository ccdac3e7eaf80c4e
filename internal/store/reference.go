package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReferenceStore resolves category and location names to their ids. Names
// are matched case-insensitively. Resolved names are cached in memory so a
// preview pass over thousands of rows does not repeat identical lookups;
// Preload warms the cache from the full tables at startup.
type ReferenceStore struct {
	pool *pgxpool.Pool

	mu         sync.RWMutex
	categories map[string]int64
	locations  map[string]int64
}

// NewReferenceStore creates an empty, lazily-filled reference cache.
func NewReferenceStore(pool *pgxpool.Pool) *ReferenceStore {
	return &ReferenceStore{
		pool:       pool,
		categories: make(map[string]int64),
		locations:  make(map[string]int64),
	}
}

// Preload warms both caches from the database. Called once at startup;
// later misses still fall through to a query, so new references created
// while the server runs are picked up.
func (r *ReferenceStore) Preload(ctx context.Context) error {
	if err := r.preloadTable(ctx, "categories", r.categories); err != nil {
		return fmt.Errorf("preload categories: %w", err)
	}
	if err := r.preloadTable(ctx, "locations", r.locations); err != nil {
		return fmt.Errorf("preload locations: %w", err)
	}
	return nil
}

func (r *ReferenceStore) preloadTable(ctx context.Context, table string, cache map[string]int64) error {
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT id, name FROM %s", table))
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		cache[strings.ToLower(strings.TrimSpace(name))] = id
	}
	return rows.Err()
}

// ResolveCategory returns the id for a category name, or found=false when
// no such category exists. Infrastructure failures return err.
func (r *ReferenceStore) ResolveCategory(ctx context.Context, name string) (int64, bool, error) {
	return r.resolve(ctx, "categories", r.categories, name)
}

// ResolveLocation returns the id for a location name, or found=false when
// no such location exists.
func (r *ReferenceStore) ResolveLocation(ctx context.Context, name string) (int64, bool, error) {
	return r.resolve(ctx, "locations", r.locations, name)
}

func (r *ReferenceStore) resolve(ctx context.Context, table string, cache map[string]int64, name string) (int64, bool, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return 0, false, nil
	}

	r.mu.RLock()
	id, ok := cache[key]
	r.mu.RUnlock()
	if ok {
		return id, true, nil
	}

	err := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE lower(name) = $1", table), key,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify(err)
	}

	r.mu.Lock()
	cache[key] = id
	r.mu.Unlock()
	return id, true, nil
}
