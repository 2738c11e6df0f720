package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/evidenca/internal/hierarchy"
	"github.com/erazemk/evidenca/internal/model"
)

const officeColumns = `id, name, type, code, parent_id, description, order_index, is_active, created_at, updated_at`

func scanOffice(row interface{ Scan(...any) error }) (*model.Office, error) {
	o := &model.Office{}
	err := row.Scan(&o.ID, &o.Name, &o.Type, &o.Code, &o.ParentID, &o.Description,
		&o.OrderIndex, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func validateOffice(o model.Office) error {
	if strings.TrimSpace(o.Name) == "" || strings.TrimSpace(o.Code) == "" {
		return fmt.Errorf("%w: office name and code required", model.ErrValidation)
	}
	if !model.ValidOfficeType(o.Type) {
		return fmt.Errorf("%w: unknown office type %q", model.ErrValidation, o.Type)
	}
	return nil
}

// CreateOffice creates a new office under an optional parent.
func CreateOffice(ctx context.Context, db *sql.DB, o model.Office) (*model.Office, error) {
	if err := validateOffice(o); err != nil {
		return nil, err
	}

	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if o.ParentID != nil {
			if _, err := requireOffice(ctx, tx, *o.ParentID); err != nil {
				return err
			}
		}

		ts := now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO offices (name, type, code, parent_id, description, order_index, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			o.Name, o.Type, o.Code, o.ParentID, o.Description, o.OrderIndex, ts, ts,
		)
		if err != nil {
			return uniqueViolation(err, "office code "+o.Code)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting office id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetOffice(ctx, db, id)
}

// GetOffice returns an office by ID, or nil if it does not exist.
func GetOffice(ctx context.Context, q Querier, id int64) (*model.Office, error) {
	o, err := scanOffice(q.QueryRowContext(ctx,
		`SELECT `+officeColumns+` FROM offices WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting office: %w", err)
	}
	return o, nil
}

// GetOfficeByCode returns an office by its unique code, or nil.
func GetOfficeByCode(ctx context.Context, q Querier, code string) (*model.Office, error) {
	o, err := scanOffice(q.QueryRowContext(ctx,
		`SELECT `+officeColumns+` FROM offices WHERE code = ?`, code,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting office by code: %w", err)
	}
	return o, nil
}

// requireOffice is GetOffice that turns absence into ErrNotFound.
func requireOffice(ctx context.Context, q Querier, id int64) (*model.Office, error) {
	o, err := GetOffice(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: office %d", model.ErrNotFound, id)
	}
	return o, nil
}

// ListOffices returns all offices, active or not, in display order.
func ListOffices(ctx context.Context, q Querier) ([]model.Office, error) {
	return queryOffices(ctx, q, `SELECT `+officeColumns+` FROM offices ORDER BY order_index, name, id`)
}

// ListChildOffices returns the active direct children of an office.
func ListChildOffices(ctx context.Context, q Querier, parentID int64) ([]model.Office, error) {
	if _, err := requireOffice(ctx, q, parentID); err != nil {
		return nil, err
	}
	return queryOffices(ctx, q,
		`SELECT `+officeColumns+` FROM offices
		 WHERE parent_id = ? AND is_active = 1 ORDER BY order_index, name, id`, parentID)
}

func queryOffices(ctx context.Context, q Querier, query string, args ...any) ([]model.Office, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing offices: %w", err)
	}
	defer rows.Close()

	var offices []model.Office
	for rows.Next() {
		o, err := scanOffice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning office: %w", err)
		}
		offices = append(offices, *o)
	}
	return offices, rows.Err()
}

// GetParentOffice returns the parent of an office. An office without a
// parent has nowhere to return stock to.
func GetParentOffice(ctx context.Context, q Querier, id int64) (*model.Office, error) {
	o, err := requireOffice(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if o.ParentID == nil {
		return nil, fmt.Errorf("%w: office %s has no parent office", model.ErrValidation, o.Name)
	}
	return requireOffice(ctx, q, *o.ParentID)
}

// UpdateOffice updates an office. Moving an office below itself or one of its
// descendants is rejected.
func UpdateOffice(ctx context.Context, db *sql.DB, id int64, o model.Office) (*model.Office, error) {
	if err := validateOffice(o); err != nil {
		return nil, err
	}

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := requireOffice(ctx, tx, id); err != nil {
			return err
		}

		if o.ParentID != nil {
			tree, err := LoadHierarchy(ctx, tx)
			if err != nil {
				return err
			}
			if !tree.Contains(*o.ParentID) {
				return fmt.Errorf("%w: office %d", model.ErrNotFound, *o.ParentID)
			}
			if tree.WouldCycle(id, *o.ParentID) {
				return fmt.Errorf("%w: office %d cannot be placed under its own descendant", model.ErrValidation, id)
			}
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE offices SET name = ?, type = ?, code = ?, parent_id = ?, description = ?,
			        order_index = ?, is_active = ?, updated_at = ?
			 WHERE id = ?`,
			o.Name, o.Type, o.Code, o.ParentID, o.Description, o.OrderIndex, o.IsActive, now(), id,
		)
		if err != nil {
			return uniqueViolation(err, "office code "+o.Code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetOffice(ctx, db, id)
}

// DeactivateOffice hides an office from child listings. Its stock and
// history stay in place.
func DeactivateOffice(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE offices SET is_active = 0, updated_at = ? WHERE id = ?`, now(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivating office: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: office %d", model.ErrNotFound, id)
	}
	return nil
}

// LoadHierarchy builds an adjacency index of every office.
func LoadHierarchy(ctx context.Context, q Querier) (*hierarchy.Tree, error) {
	offices, err := ListOffices(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("loading office hierarchy: %w", err)
	}
	return hierarchy.New(offices), nil
}

// IsDirectParent reports whether parent is the immediate parent of child.
func IsDirectParent(ctx context.Context, q Querier, parent, child int64) (bool, error) {
	if _, err := requireOffice(ctx, q, parent); err != nil {
		return false, err
	}
	c, err := requireOffice(ctx, q, child)
	if err != nil {
		return false, err
	}
	return c.ParentID != nil && *c.ParentID == parent, nil
}
