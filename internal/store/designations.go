package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/evidenca/internal/model"
)

// CreateDesignation assigns a user to an office. A new primary designation
// replaces the user's previous one.
func CreateDesignation(ctx context.Context, db *sql.DB, d model.Designation) (*model.Designation, error) {
	if strings.TrimSpace(d.Title) == "" {
		return nil, fmt.Errorf("%w: designation title required", model.ErrValidation)
	}

	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := requireUser(ctx, tx, d.UserID); err != nil {
			return err
		}
		if _, err := requireOffice(ctx, tx, d.OfficeID); err != nil {
			return err
		}

		if d.IsPrimary {
			_, err := tx.ExecContext(ctx,
				`UPDATE designations SET is_primary = 0 WHERE user_id = ? AND is_primary = 1`, d.UserID,
			)
			if err != nil {
				return fmt.Errorf("clearing primary designation: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO designations (user_id, office_id, title, purchasing_power, is_primary, is_active, assigned_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?)`,
			d.UserID, d.OfficeID, d.Title, d.PurchasingPower, d.IsPrimary, now(),
		)
		if err != nil {
			return fmt.Errorf("creating designation: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting designation id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetDesignation(ctx, db, id)
}

// GetDesignation returns a designation by ID, or nil.
func GetDesignation(ctx context.Context, q Querier, id int64) (*model.Designation, error) {
	designations, err := queryDesignations(ctx, q, `WHERE d.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(designations) == 0 {
		return nil, nil
	}
	return &designations[0], nil
}

// ListDesignations returns the active designations of a user.
func ListDesignations(ctx context.Context, q Querier, userID int64) ([]model.Designation, error) {
	return queryDesignations(ctx, q, `WHERE d.user_id = ? AND d.is_active = 1`, userID)
}

func queryDesignations(ctx context.Context, q Querier, where string, args ...any) ([]model.Designation, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT d.id, d.user_id, d.office_id, d.title, d.purchasing_power, d.is_primary,
		        d.is_active, d.assigned_at, o.name
		 FROM designations d
		 JOIN offices o ON o.id = d.office_id `+where+`
		 ORDER BY d.is_primary DESC, d.id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing designations: %w", err)
	}
	defer rows.Close()

	var out []model.Designation
	for rows.Next() {
		var d model.Designation
		if err := rows.Scan(&d.ID, &d.UserID, &d.OfficeID, &d.Title, &d.PurchasingPower,
			&d.IsPrimary, &d.IsActive, &d.AssignedAt, &d.OfficeName); err != nil {
			return nil, fmt.Errorf("scanning designation: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeactivateDesignation ends a designation.
func DeactivateDesignation(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE designations SET is_active = 0, is_primary = 0 WHERE id = ? AND is_active = 1`, id,
	)
	if err != nil {
		return fmt.Errorf("deactivating designation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: designation %d", model.ErrNotFound, id)
	}
	return nil
}

// PrimaryOffice returns the office of the user's active primary designation,
// or nil when the user has none.
func PrimaryOffice(ctx context.Context, q Querier, userID int64) (*int64, error) {
	var officeID int64
	err := q.QueryRowContext(ctx,
		`SELECT office_id FROM designations
		 WHERE user_id = ? AND is_primary = 1 AND is_active = 1`, userID,
	).Scan(&officeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting primary office: %w", err)
	}
	return &officeID, nil
}

// HasPurchasingPower reports whether any active designation of the user
// carries purchasing power.
func HasPurchasingPower(ctx context.Context, q Querier, userID int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM designations
		 WHERE user_id = ? AND is_active = 1 AND purchasing_power = 1`, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking purchasing power: %w", err)
	}
	return count > 0, nil
}
