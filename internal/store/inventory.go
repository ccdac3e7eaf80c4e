package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-app/stockroom/internal/importer"
	"github.com/stockroom-app/stockroom/internal/schema"
)

// InventoryStore is the pgx-backed record sink. Records are upserted by
// SKU, the natural key of the inventory table, so re-importing a corrected
// file updates rows instead of duplicating them.
type InventoryStore struct {
	pool   *pgxpool.Pool
	lookup *ReferenceStore
}

// NewInventoryStore wires the sink to the pool. The reference store is used
// to resolve category and location names to foreign keys at write time.
func NewInventoryStore(pool *pgxpool.Pool, lookup *ReferenceStore) *InventoryStore {
	return &InventoryStore{pool: pool, lookup: lookup}
}

const upsertItemSQL = `
INSERT INTO inventory_items (
	name, sku, description, category_id, location_id, quantity, unit,
	unit_price, cost_price, reorder_level, max_stock, supplier, barcode,
	expiry_date, notes, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
	now(), now()
)
ON CONFLICT (sku) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	category_id = EXCLUDED.category_id,
	location_id = EXCLUDED.location_id,
	quantity = EXCLUDED.quantity,
	unit = EXCLUDED.unit,
	unit_price = EXCLUDED.unit_price,
	cost_price = EXCLUDED.cost_price,
	reorder_level = EXCLUDED.reorder_level,
	max_stock = EXCLUDED.max_stock,
	supplier = EXCLUDED.supplier,
	barcode = EXCLUDED.barcode,
	expiry_date = EXCLUDED.expiry_date,
	notes = EXCLUDED.notes,
	updated_at = now()
RETURNING id, (xmax = 0) AS inserted`

// CreateOrUpdate upserts one mapped row by SKU. Category and location names
// arrive already validated (or substituted with the default buckets) by the
// transformer; unresolvable names at write time fall back to NULL rather
// than failing the row.
func (s *InventoryStore) CreateOrUpdate(ctx context.Context, row importer.MappedRow) (importer.ImportedRecord, error) {
	name := row.String(schema.FieldName)
	sku := row.String(schema.FieldSKU)

	categoryID := s.resolveRef(ctx, row.String(schema.FieldCategory), s.lookup.ResolveCategory)
	locationID := s.resolveRef(ctx, row.String(schema.FieldLocation), s.lookup.ResolveLocation)

	var id string
	var created bool
	err := s.pool.QueryRow(ctx, upsertItemSQL,
		name,
		sku,
		pgText(row.String(schema.FieldDescription)),
		categoryID,
		locationID,
		pgFloat(row.Number(schema.FieldQuantity)),
		pgText(row.String(schema.FieldUnit)),
		pgFloat(row.Number(schema.FieldUnitPrice)),
		pgFloat(row.Number(schema.FieldCostPrice)),
		pgFloat(row.Number(schema.FieldReorderLevel)),
		pgFloat(row.Number(schema.FieldMaxStock)),
		pgText(row.String(schema.FieldSupplier)),
		pgText(row.String(schema.FieldBarcode)),
		pgDate(row.Date(schema.FieldExpiryDate)),
		pgText(row.String(schema.FieldNotes)),
	).Scan(&id, &created)
	if err != nil {
		return importer.ImportedRecord{}, fmt.Errorf("upsert item %q: %w", sku, classify(err))
	}

	return importer.ImportedRecord{
		ID:      id,
		SKU:     sku,
		Name:    name,
		Created: created,
	}, nil
}

func (s *InventoryStore) resolveRef(ctx context.Context, name string, resolve func(context.Context, string) (int64, bool, error)) pgtype.Int8 {
	if name == "" || s.lookup == nil {
		return pgtype.Int8{}
	}
	id, found, err := resolve(ctx, name)
	if err != nil || !found {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: id, Valid: true}
}

// pgtype coercion helpers. Empty and unset values become SQL NULL.

func pgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func pgFloat(v float64, ok bool) pgtype.Float8 {
	if !ok {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: v, Valid: true}
}

func pgDate(t time.Time, ok bool) pgtype.Date {
	if !ok {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}
