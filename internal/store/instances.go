package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/evidenca/internal/model"
)

const instanceSelect = `SELECT ii.id, ii.item_id, ii.purchase_id, ii.barcode, ii.unit_price, ii.status,
        ii.distributed_to_office_id, ii.distributed_at, ii.owner_id, ii.distribution_id,
        ii.remarks, ii.created_at, i.name
 FROM item_instances ii
 JOIN items i ON i.id = ii.item_id `

func scanInstance(row interface{ Scan(...any) error }) (*model.ItemInstance, error) {
	in := &model.ItemInstance{}
	err := row.Scan(&in.ID, &in.ItemID, &in.PurchaseID, &in.Barcode, &in.UnitPrice, &in.Status,
		&in.DistributedToOfficeID, &in.DistributedAt, &in.OwnerID, &in.DistributionID,
		&in.Remarks, &in.CreatedAt, &in.ItemName)
	return in, err
}

func queryInstances(ctx context.Context, q Querier, where string, args ...any) ([]model.ItemInstance, error) {
	rows, err := q.QueryContext(ctx, instanceSelect+where+` ORDER BY ii.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing item instances: %w", err)
	}
	defer rows.Close()

	var out []model.ItemInstance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item instance: %w", err)
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

// GetInstance returns an instance by ID, or nil.
func GetInstance(ctx context.Context, q Querier, id int64) (*model.ItemInstance, error) {
	in, err := scanInstance(q.QueryRowContext(ctx, instanceSelect+`WHERE ii.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item instance: %w", err)
	}
	return in, nil
}

// GetInstanceByBarcode returns the instance carrying a barcode, or nil.
func GetInstanceByBarcode(ctx context.Context, q Querier, barcode string) (*model.ItemInstance, error) {
	in, err := scanInstance(q.QueryRowContext(ctx, instanceSelect+`WHERE ii.barcode = ?`, barcode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item instance by barcode: %w", err)
	}
	return in, nil
}

// ListPurchaseInstances returns the instances minted by a purchase,
// including those of lines that were later replaced.
func ListPurchaseInstances(ctx context.Context, q Querier, purchaseID int64) ([]model.ItemInstance, error) {
	return queryInstances(ctx, q, `WHERE ii.purchase_id = ?`, purchaseID)
}

// ListOfficeInstances returns the instances currently distributed to an office.
func ListOfficeInstances(ctx context.Context, q Querier, officeID int64) ([]model.ItemInstance, error) {
	return queryInstances(ctx, q,
		`WHERE ii.distributed_to_office_id = ? AND ii.status = ?`, officeID, model.InstanceDistributed)
}

// ListItemInstances returns all instances of an item, optionally filtered by status.
func ListItemInstances(ctx context.Context, q Querier, itemID int64, status string) ([]model.ItemInstance, error) {
	if status != "" {
		return queryInstances(ctx, q, `WHERE ii.item_id = ? AND ii.status = ?`, itemID, status)
	}
	return queryInstances(ctx, q, `WHERE ii.item_id = ?`, itemID)
}

// MarkInstance records that an instance was damaged or lost. Only the
// barcode record changes; quantities are corrected with AdjustInventory.
func MarkInstance(ctx context.Context, db *sql.DB, id int64, status, remarks string) (*model.ItemInstance, error) {
	if status != model.InstanceDamaged && status != model.InstanceLost {
		return nil, fmt.Errorf("%w: instances can only be marked %s or %s",
			model.ErrValidation, model.InstanceDamaged, model.InstanceLost)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE item_instances SET status = ?, remarks = ? WHERE id = ?`, status, remarks, id,
	)
	if err != nil {
		return nil, fmt.Errorf("marking item instance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: item instance %d", model.ErrNotFound, id)
	}
	return GetInstance(ctx, db, id)
}

// reassignInstances hands up to quantity instances, oldest first, to the
// office that was just credited. Pool movements take IN_STOCK instances;
// office movements take those distributed to the source office. Fewer
// instances than quantity is not an error: stock seeded without a purchase
// has no barcodes.
func reassignInstances(ctx context.Context, q Querier, src stockSource, itemID, toOfficeID int64, quantity int, distributionID *int64) error {
	var (
		where string
		args  []any
	)
	if src.pool {
		where = `item_id = ? AND status = ?`
		args = []any{itemID, model.InstanceInStock}
	} else {
		where = `item_id = ? AND status = ? AND distributed_to_office_id = ?`
		args = []any{itemID, model.InstanceDistributed, src.officeID}
	}

	_, err := q.ExecContext(ctx,
		`UPDATE item_instances
		 SET status = ?, distributed_to_office_id = ?, distributed_at = ?, distribution_id = ?
		 WHERE id IN (SELECT id FROM item_instances WHERE `+where+` ORDER BY id LIMIT ?)`,
		append([]any{model.InstanceDistributed, toOfficeID, now(), distributionID}, append(args, quantity)...)...,
	)
	if err != nil {
		return fmt.Errorf("reassigning item instances: %w", err)
	}
	return nil
}

// releaseInstances undoes reassignInstances for a distribution. Up to
// quantity instances leave the receiving office, those still tagged with the
// distribution first, so the instances at the office keep matching its
// ledger row after the debit.
func releaseInstances(ctx context.Context, q Querier, src stockSource, itemID, toOfficeID int64, quantity int, distributionID int64) error {
	pick := `id IN (SELECT id FROM item_instances
	          WHERE item_id = ? AND status = ? AND distributed_to_office_id = ?
	          ORDER BY CASE WHEN distribution_id = ? THEN 0 ELSE 1 END, id LIMIT ?)`
	pickArgs := []any{itemID, model.InstanceDistributed, toOfficeID, distributionID, quantity}

	var err error
	if src.pool {
		_, err = q.ExecContext(ctx,
			`UPDATE item_instances
			 SET status = ?, distributed_to_office_id = NULL, distributed_at = NULL, distribution_id = NULL
			 WHERE `+pick,
			append([]any{model.InstanceInStock}, pickArgs...)...,
		)
	} else {
		_, err = q.ExecContext(ctx,
			`UPDATE item_instances SET distributed_to_office_id = ?, distribution_id = NULL
			 WHERE `+pick,
			append([]any{src.officeID}, pickArgs...)...,
		)
	}
	if err != nil {
		return fmt.Errorf("releasing item instances: %w", err)
	}
	return nil
}
