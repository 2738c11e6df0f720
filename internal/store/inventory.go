package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
)

// QuantityAt returns how many units of an item an office holds; zero when
// the office never held any.
func QuantityAt(ctx context.Context, q Querier, officeID, itemID int64) (int, error) {
	var quantity int
	err := q.QueryRowContext(ctx,
		`SELECT quantity FROM office_inventory WHERE office_id = ? AND item_id = ?`,
		officeID, itemID,
	).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("checking office quantity: %w", err)
	}
	return quantity, nil
}

// HasSufficientStock reports whether an office holds at least required units.
func HasSufficientStock(ctx context.Context, q Querier, officeID, itemID int64, required int) (bool, error) {
	quantity, err := QuantityAt(ctx, q, officeID, itemID)
	if err != nil {
		return false, err
	}
	return quantity >= required, nil
}

// adjustStock changes an office's quantity of an item by delta, creating the
// row on first use. Rows that reach zero are kept. It is the only writer of
// office_inventory and must run inside the caller's transaction.
func adjustStock(ctx context.Context, q Querier, officeID, itemID int64, delta int) error {
	current, err := QuantityAt(ctx, q, officeID, itemID)
	if err != nil {
		return err
	}

	next := current + delta
	if next < 0 {
		metrics.StockRejections.WithLabelValues("office").Inc()
		return fmt.Errorf("%w: office %d holds %d of item %d, need %d",
			model.ErrInsufficientStock, officeID, current, itemID, -delta)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO office_inventory (office_id, item_id, quantity, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (office_id, item_id) DO UPDATE SET quantity = excluded.quantity, updated_at = excluded.updated_at`,
		officeID, itemID, next, now(),
	)
	if err != nil {
		return fmt.Errorf("updating office inventory: %w", err)
	}
	return nil
}

// transferStock moves quantity from one office to another. The decrement
// runs first, so a shortfall aborts before anything is credited.
func transferStock(ctx context.Context, q Querier, fromOfficeID, toOfficeID, itemID int64, quantity int) error {
	if err := adjustStock(ctx, q, fromOfficeID, itemID, -quantity); err != nil {
		return err
	}
	return adjustStock(ctx, q, toOfficeID, itemID, quantity)
}

// TransferStock moves stock between two offices in its own transaction.
func TransferStock(ctx context.Context, db *sql.DB, fromOfficeID, toOfficeID, itemID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", model.ErrValidation)
	}
	if fromOfficeID == toOfficeID {
		return fmt.Errorf("%w: cannot transfer to the same office", model.ErrValidation)
	}

	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := requireItem(ctx, tx, itemID); err != nil {
			return err
		}
		if _, err := requireOffice(ctx, tx, fromOfficeID); err != nil {
			return err
		}
		if _, err := requireOffice(ctx, tx, toOfficeID); err != nil {
			return err
		}
		return transferStock(ctx, tx, fromOfficeID, toOfficeID, itemID, quantity)
	})
}

// AdjustInventory corrects an office's stock by a signed delta, for
// stocktaking and write-offs. The correction is recorded as an ADJUSTMENT
// transaction.
func AdjustInventory(ctx context.Context, db *sql.DB, officeID, itemID int64, delta int, remarks string, userID int64) (*model.OfficeTransaction, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must be non-zero", model.ErrValidation)
	}

	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := requireItem(ctx, tx, itemID); err != nil {
			return err
		}
		if _, err := requireOffice(ctx, tx, officeID); err != nil {
			return err
		}
		if _, err := requireUser(ctx, tx, userID); err != nil {
			return err
		}

		if err := adjustStock(ctx, tx, officeID, itemID, delta); err != nil {
			return err
		}

		var err error
		id, err = insertTransaction(ctx, tx, model.OfficeTransaction{
			ItemID:       itemID,
			FromOfficeID: officeID,
			ToOfficeID:   officeID,
			Type:         model.TransactionAdjustment,
			Quantity:     delta,
			InitiatedBy:  userID,
			Remarks:      remarks,
		}, "ADJ")
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.StockMovements.WithLabelValues("adjustment").Inc()
	return GetTransaction(ctx, db, id)
}

const inventorySelect = `SELECT inv.office_id, inv.item_id, inv.quantity, inv.updated_at,
        i.name, i.code, o.name
 FROM office_inventory inv
 JOIN items i ON i.id = inv.item_id
 JOIN offices o ON o.id = inv.office_id `

func queryInventory(ctx context.Context, q Querier, where string, args ...any) ([]model.OfficeInventory, error) {
	rows, err := q.QueryContext(ctx, inventorySelect+where+` ORDER BY o.name, i.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing inventory: %w", err)
	}
	defer rows.Close()

	var out []model.OfficeInventory
	for rows.Next() {
		var inv model.OfficeInventory
		if err := rows.Scan(&inv.OfficeID, &inv.ItemID, &inv.Quantity, &inv.UpdatedAt,
			&inv.ItemName, &inv.ItemCode, &inv.OfficeName); err != nil {
			return nil, fmt.Errorf("scanning inventory: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ListInventory returns every ledger row.
func ListInventory(ctx context.Context, q Querier) ([]model.OfficeInventory, error) {
	return queryInventory(ctx, q, ``)
}

// ListOfficeInventory returns the ledger rows of one office, zeros included.
func ListOfficeInventory(ctx context.Context, q Querier, officeID int64) ([]model.OfficeInventory, error) {
	return queryInventory(ctx, q, `WHERE inv.office_id = ?`, officeID)
}

// ListAvailableInventory returns the items an office actually has on hand.
func ListAvailableInventory(ctx context.Context, q Querier, officeID int64) ([]model.OfficeInventory, error) {
	return queryInventory(ctx, q, `WHERE inv.office_id = ? AND inv.quantity > 0`, officeID)
}

// ListItemInventory returns where an item is held.
func ListItemInventory(ctx context.Context, q Querier, itemID int64) ([]model.OfficeInventory, error) {
	return queryInventory(ctx, q, `WHERE inv.item_id = ? AND inv.quantity > 0`, itemID)
}

// TotalOfficeQuantity returns how many units of an item all offices hold
// together.
func TotalOfficeQuantity(ctx context.Context, q Querier, itemID int64) (int, error) {
	var total int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM office_inventory WHERE item_id = ?`, itemID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing office inventory: %w", err)
	}
	return total, nil
}
