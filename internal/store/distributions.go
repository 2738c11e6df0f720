package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
)

// DistributionInput is a request to move stock to an office through the
// approval workflow.
type DistributionInput struct {
	ItemID        int64
	ToOfficeID    int64
	Movement      Movement
	UserID        *int64
	Quantity      int
	DistributedAt string
	Remarks       string
}

// DistributionPatch lists the fields of a distribution to change. Nil
// fields keep their current value.
type DistributionPatch struct {
	ItemID        *int64
	ToOfficeID    *int64
	Movement      Movement
	UserID        *int64
	Quantity      *int
	DistributedAt *string
	Remarks       *string
	Status        *string
}

// parseDistributedAt accepts a date or a local date-time without zone.
func parseDistributedAt(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot parse distribution date %q", model.ErrValidation, s)
}

func isWorkflowMovement(m Movement) bool {
	switch m.(type) {
	case Allocation, Transfer, EmployeeMovement, Return:
		return true
	}
	return false
}

// CreateDistribution records a PENDING distribution and applies its creation
// effects in one transaction: allocations and transfers credit the receiving
// office immediately, movements and returns only reserve pool stock until
// they are accepted.
func CreateDistribution(ctx context.Context, db *sql.DB, in DistributionInput) (*model.Distribution, error) {
	if in.Movement == nil || !isWorkflowMovement(in.Movement) {
		return nil, fmt.Errorf("%w: transfer type required", model.ErrValidation)
	}
	distributedAt, err := parseDistributedAt(in.DistributedAt)
	if err != nil {
		return nil, err
	}

	var id int64
	err = withTx(ctx, db, func(tx *sql.Tx) error {
		if err := validateMovement(ctx, tx, in.Movement, in.ItemID, in.ToOfficeID, in.Quantity); err != nil {
			return err
		}
		if in.UserID != nil {
			if _, err := requireUser(ctx, tx, *in.UserID); err != nil {
				return err
			}
		}

		ts := now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO item_distributions
			   (item_id, office_id, from_office_id, to_office_id, employee_id, user_id, quantity,
			    status, transfer_type, distributed_at, remarks, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.ItemID, in.ToOfficeID, in.Movement.Source(), in.ToOfficeID, employeeOf(in.Movement),
			in.UserID, in.Quantity, model.DistributionPending, in.Movement.Kind(), distributedAt,
			in.Remarks, ts, ts,
		)
		if err != nil {
			return fmt.Errorf("creating distribution: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting distribution id: %w", err)
		}

		return commitMovement(ctx, tx, in.Movement, in.ItemID, in.ToOfficeID, in.Quantity, &id)
	})
	if err != nil {
		return nil, err
	}

	return GetDistribution(ctx, db, id)
}

// applyDistribution gives a distribution row the ledger effects its status
// calls for. Rejected distributions hold no stock.
func applyDistribution(ctx context.Context, q Querier, d *model.Distribution, m Movement) error {
	if d.Status == model.DistributionRejected {
		return nil
	}
	if err := commitMovement(ctx, q, m, d.ItemID, d.ToOfficeID, d.Quantity, &d.ID); err != nil {
		return err
	}
	if d.Status == model.DistributionApproved && !m.creditsOnCreate() {
		return credit(ctx, q, m, d.ItemID, d.ToOfficeID, d.Quantity, &d.ID)
	}
	return nil
}

// undoDistribution removes every ledger effect of a distribution row.
func undoDistribution(ctx context.Context, q Querier, d *model.Distribution, m Movement) error {
	if d.Status == model.DistributionRejected {
		return nil
	}
	credited := m.creditsOnCreate() || d.Status == model.DistributionApproved
	return revertMovement(ctx, q, m, d.ItemID, d.ToOfficeID, d.Quantity, credited, d.ID)
}

// AcceptDistribution approves a pending distribution. canAccess is asked
// about the receiving office inside the transaction; nil allows everything.
// The receiving office is credited only if creation did not already do so.
func AcceptDistribution(ctx context.Context, db *sql.DB, id int64, canAccess func(officeID int64) bool) (*model.Distribution, error) {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		d, err := requireDistribution(ctx, tx, id)
		if err != nil {
			return err
		}
		if canAccess != nil && !canAccess(d.ToOfficeID) {
			return fmt.Errorf("%w: office %d", model.ErrForbidden, d.ToOfficeID)
		}

		switch d.Status {
		case model.DistributionPending:
		case model.DistributionApproved:
			return fmt.Errorf("%w: distribution %d is already accepted", model.ErrConflict, id)
		default:
			return fmt.Errorf("%w: only pending distributions can be accepted", model.ErrConflict)
		}

		m, err := MovementFor(d)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE item_distributions SET status = ?, updated_at = ? WHERE id = ?`,
			model.DistributionApproved, now(), id,
		)
		if err != nil {
			return fmt.Errorf("accepting distribution: %w", err)
		}

		if !m.creditsOnCreate() {
			return credit(ctx, tx, m, d.ItemID, d.ToOfficeID, d.Quantity, &d.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StockMovements.WithLabelValues("accept").Inc()
	return GetDistribution(ctx, db, id)
}

// UpdateDistribution changes a distribution. The current effects are
// reverted and the effects of the updated row re-applied in the same
// transaction, so every combination of changed quantity, offices, type and
// status leaves the ledger as if the new row had been recorded directly.
// Rejected distributions are final.
func UpdateDistribution(ctx context.Context, db *sql.DB, id int64, patch DistributionPatch) (*model.Distribution, error) {
	var distributedAt *time.Time
	if patch.DistributedAt != nil {
		t, err := parseDistributedAt(*patch.DistributedAt)
		if err != nil {
			return nil, err
		}
		distributedAt = t
	}
	if patch.Movement != nil && !isWorkflowMovement(patch.Movement) {
		return nil, fmt.Errorf("%w: unsupported transfer type %s", model.ErrValidation, patch.Movement.Kind())
	}
	if patch.Status != nil && !model.ValidDistributionStatus(*patch.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, *patch.Status)
	}

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		d, err := requireDistribution(ctx, tx, id)
		if err != nil {
			return err
		}
		if d.Status == model.DistributionRejected {
			return fmt.Errorf("%w: distribution %d is rejected", model.ErrConflict, id)
		}

		old, err := MovementFor(d)
		if err != nil {
			return err
		}
		if err := undoDistribution(ctx, tx, d, old); err != nil {
			return err
		}

		next := *d
		m := old
		if patch.Movement != nil {
			m = patch.Movement
		}
		if patch.ItemID != nil {
			next.ItemID = *patch.ItemID
		}
		if patch.ToOfficeID != nil {
			next.ToOfficeID = *patch.ToOfficeID
		}
		if patch.UserID != nil {
			next.UserID = patch.UserID
		}
		if patch.Quantity != nil {
			next.Quantity = *patch.Quantity
		}
		if patch.DistributedAt != nil {
			next.DistributedAt = distributedAt
		}
		if patch.Remarks != nil {
			next.Remarks = *patch.Remarks
		}
		if patch.Status != nil {
			next.Status = *patch.Status
		}
		next.OfficeID = next.ToOfficeID
		next.FromOfficeID = m.Source()
		next.EmployeeID = employeeOf(m)
		next.TransferType = m.Kind()

		if err := validateMovement(ctx, tx, m, next.ItemID, next.ToOfficeID, next.Quantity); err != nil {
			return err
		}
		if next.UserID != nil {
			if _, err := requireUser(ctx, tx, *next.UserID); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE item_distributions
			 SET item_id = ?, office_id = ?, from_office_id = ?, to_office_id = ?, employee_id = ?,
			     user_id = ?, quantity = ?, status = ?, transfer_type = ?, distributed_at = ?,
			     remarks = ?, updated_at = ?
			 WHERE id = ?`,
			next.ItemID, next.OfficeID, next.FromOfficeID, next.ToOfficeID, next.EmployeeID,
			next.UserID, next.Quantity, next.Status, next.TransferType, next.DistributedAt,
			next.Remarks, now(), id,
		)
		if err != nil {
			return fmt.Errorf("updating distribution: %w", err)
		}

		return applyDistribution(ctx, tx, &next, m)
	})
	if err != nil {
		return nil, err
	}

	return GetDistribution(ctx, db, id)
}

// DeleteDistribution reverts a distribution's effects and removes it.
func DeleteDistribution(ctx context.Context, db *sql.DB, id int64) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		d, err := requireDistribution(ctx, tx, id)
		if err != nil {
			return err
		}
		m, err := MovementFor(d)
		if err != nil {
			return err
		}
		if err := undoDistribution(ctx, tx, d, m); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM item_distributions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting distribution: %w", err)
		}
		return nil
	})
}

const distributionSelect = `SELECT d.id, d.item_id, d.office_id, d.from_office_id, d.to_office_id,
        d.employee_id, d.user_id, d.quantity, d.status, d.transfer_type, d.distributed_at,
        d.remarks, d.created_at, d.updated_at, i.name, COALESCE(f.name, ''), t.name
 FROM item_distributions d
 JOIN items i ON i.id = d.item_id
 JOIN offices t ON t.id = d.to_office_id
 LEFT JOIN offices f ON f.id = d.from_office_id `

func scanDistribution(row interface{ Scan(...any) error }) (*model.Distribution, error) {
	d := &model.Distribution{}
	err := row.Scan(&d.ID, &d.ItemID, &d.OfficeID, &d.FromOfficeID, &d.ToOfficeID,
		&d.EmployeeID, &d.UserID, &d.Quantity, &d.Status, &d.TransferType, &d.DistributedAt,
		&d.Remarks, &d.CreatedAt, &d.UpdatedAt, &d.ItemName, &d.FromOfficeName, &d.ToOfficeName)
	return d, err
}

// GetDistribution returns a distribution by ID, or nil.
func GetDistribution(ctx context.Context, q Querier, id int64) (*model.Distribution, error) {
	d, err := scanDistribution(q.QueryRowContext(ctx, distributionSelect+`WHERE d.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting distribution: %w", err)
	}
	return d, nil
}

func requireDistribution(ctx context.Context, q Querier, id int64) (*model.Distribution, error) {
	d, err := GetDistribution(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: distribution %d", model.ErrNotFound, id)
	}
	return d, nil
}

func queryDistributions(ctx context.Context, q Querier, where, tail string, args ...any) ([]model.Distribution, error) {
	rows, err := q.QueryContext(ctx,
		distributionSelect+where+` ORDER BY d.created_at DESC, d.id DESC`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("listing distributions: %w", err)
	}
	defer rows.Close()

	var out []model.Distribution
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning distribution: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListDistributions returns all distributions, newest first, optionally
// only those in one status.
func ListDistributions(ctx context.Context, q Querier, status string) ([]model.Distribution, error) {
	if status != "" {
		return queryDistributions(ctx, q, `WHERE d.status = ?`, ``, status)
	}
	return queryDistributions(ctx, q, ``, ``)
}

// ListDistributionsByDateRange returns distributions created within [from, to].
func ListDistributionsByDateRange(ctx context.Context, q Querier, from, to time.Time) ([]model.Distribution, error) {
	return queryDistributions(ctx, q, `WHERE d.created_at BETWEEN ? AND ?`, ``, from.UTC(), to.UTC())
}

// RecentDistributions returns the latest limit distributions.
func RecentDistributions(ctx context.Context, q Querier, limit int) ([]model.Distribution, error) {
	return queryDistributions(ctx, q, ``, ` LIMIT ?`, limit)
}

// ListDistributionInstances returns the instances held by the receiving
// office of a distribution. Instances are matched by item and office, not
// by the distribution that moved them.
func ListDistributionInstances(ctx context.Context, q Querier, id int64) ([]model.ItemInstance, error) {
	d, err := requireDistribution(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return queryInstances(ctx, q,
		`WHERE ii.item_id = ? AND ii.distributed_to_office_id = ? AND ii.status = ?`,
		d.ItemID, d.ToOfficeID, model.InstanceDistributed)
}

// CountDistributionsByStatus returns how many distributions are in each status.
func CountDistributionsByStatus(ctx context.Context, q Querier) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT status, COUNT(*) FROM item_distributions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting distributions: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{
		model.DistributionPending:  0,
		model.DistributionApproved: 0,
		model.DistributionRejected: 0,
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning distribution count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
