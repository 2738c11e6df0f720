package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
)

const itemColumns = `id, code, name, description, category, unit, quantity, is_active, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	err := row.Scan(&item.ID, &item.Code, &item.Name, &item.Description, &item.Category,
		&item.Unit, &item.Quantity, &item.IsActive, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

// CreateItem creates a new catalog item. Quantity seeds the unallocated
// stock; later stock arrives through purchases.
func CreateItem(ctx context.Context, db *sql.DB, item model.Item) (*model.Item, error) {
	if strings.TrimSpace(item.Code) == "" || strings.TrimSpace(item.Name) == "" {
		return nil, fmt.Errorf("%w: item code and name required", model.ErrValidation)
	}
	if item.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity cannot be negative", model.ErrValidation)
	}

	ts := now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (code, name, description, category, unit, quantity, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		item.Code, item.Name, item.Description, item.Category, item.Unit, item.Quantity, ts, ts,
	)
	if err != nil {
		return nil, uniqueViolation(err, "item code "+item.Code)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or nil.
func GetItem(ctx context.Context, q Querier, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetItemByCode returns an item by its unique code, or nil.
func GetItemByCode(ctx context.Context, q Querier, code string) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE code = ?`, code,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item by code: %w", err)
	}
	return item, nil
}

func requireItem(ctx context.Context, q Querier, id int64) (*model.Item, error) {
	item, err := GetItem(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %d", model.ErrNotFound, id)
	}
	return item, nil
}

// ListItems returns active items, optionally filtered by category.
func ListItems(ctx context.Context, q Querier, category string) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE is_active = 1`
	var args []any
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY name, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem updates an item's descriptive fields. Quantity only changes
// through purchases and distributions.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, item model.Item) (*model.Item, error) {
	if strings.TrimSpace(item.Code) == "" || strings.TrimSpace(item.Name) == "" {
		return nil, fmt.Errorf("%w: item code and name required", model.ErrValidation)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE items SET code = ?, name = ?, description = ?, category = ?, unit = ?, updated_at = ?
		 WHERE id = ?`,
		item.Code, item.Name, item.Description, item.Category, item.Unit, now(), id,
	)
	if err != nil {
		return nil, uniqueViolation(err, "item code "+item.Code)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: item %d", model.ErrNotFound, id)
	}

	return GetItem(ctx, db, id)
}

// DeleteItem deactivates an item. History referencing it stays intact.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`, now(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %d", model.ErrNotFound, id)
	}
	return nil
}

// adjustItemQuantity changes the unallocated stock of an item by delta.
// It is the only writer of items.quantity.
func adjustItemQuantity(ctx context.Context, q Querier, itemID int64, delta int) error {
	item, err := requireItem(ctx, q, itemID)
	if err != nil {
		return err
	}

	next := item.Quantity + delta
	if next < 0 {
		metrics.StockRejections.WithLabelValues("item").Inc()
		return fmt.Errorf("%w: item %s has %d unallocated, need %d",
			model.ErrInsufficientStock, item.Name, item.Quantity, -delta)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE items SET quantity = ?, updated_at = ? WHERE id = ?`, next, now(), itemID,
	)
	if err != nil {
		return fmt.Errorf("updating item quantity: %w", err)
	}
	return nil
}
