package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/evidenca/internal/model"
)

// CreateEmployee registers a staff member, optionally attached to an office.
func CreateEmployee(ctx context.Context, db *sql.DB, name string, officeID *int64) (*model.Employee, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: employee name required", model.ErrValidation)
	}
	if officeID != nil {
		if _, err := requireOffice(ctx, db, *officeID); err != nil {
			return nil, err
		}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO employees (name, office_id, is_active, created_at) VALUES (?, ?, 1, ?)`,
		name, officeID, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating employee: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting employee id: %w", err)
	}

	return GetEmployee(ctx, db, id)
}

// GetEmployee returns an employee by ID, or nil.
func GetEmployee(ctx context.Context, q Querier, id int64) (*model.Employee, error) {
	e := &model.Employee{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, office_id, is_active, created_at FROM employees WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.OfficeID, &e.IsActive, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting employee: %w", err)
	}
	return e, nil
}

func requireEmployee(ctx context.Context, q Querier, id int64) (*model.Employee, error) {
	e, err := GetEmployee(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: employee %d", model.ErrNotFound, id)
	}
	return e, nil
}

// ListEmployees returns active employees, optionally only those of one office.
func ListEmployees(ctx context.Context, q Querier, officeID int64) ([]model.Employee, error) {
	query := `SELECT id, name, office_id, is_active, created_at FROM employees WHERE is_active = 1`
	var args []any
	if officeID > 0 {
		query += ` AND office_id = ?`
		args = append(args, officeID)
	}
	query += ` ORDER BY name, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.OfficeID, &e.IsActive, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// DeactivateEmployee hides an employee from listings.
func DeactivateEmployee(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE employees SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivating employee: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: employee %d", model.ErrNotFound, id)
	}
	return nil
}
