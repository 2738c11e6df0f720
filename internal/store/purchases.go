package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
)

// PurchaseLine is one requested line of a purchase.
type PurchaseLine struct {
	ItemID    int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// PurchaseInput describes a purchase to record or the replacement contents
// of an existing one.
type PurchaseInput struct {
	VendorName    string
	VendorContact string
	PurchaseDate  time.Time
	InvoiceNumber string
	Remarks       string
	OfficeID      int64
	PurchasedBy   int64
	Lines         []PurchaseLine
}

// validatePurchase checks the input and everything it references. It
// returns the referenced items by ID.
func validatePurchase(ctx context.Context, q Querier, in PurchaseInput) (map[int64]*model.Item, error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: purchase needs at least one line", model.ErrValidation)
	}
	if _, err := requireOffice(ctx, q, in.OfficeID); err != nil {
		return nil, err
	}
	if _, err := requireUser(ctx, q, in.PurchasedBy); err != nil {
		return nil, err
	}

	items := make(map[int64]*model.Item, len(in.Lines))
	for i, line := range in.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d: quantity must be positive", model.ErrValidation, i+1)
		}
		if line.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: line %d: unit price cannot be negative", model.ErrValidation, i+1)
		}
		if _, ok := items[line.ItemID]; ok {
			continue
		}
		item, err := requireItem(ctx, q, line.ItemID)
		if err != nil {
			return nil, err
		}
		items[line.ItemID] = item
	}
	return items, nil
}

// lineQuantities sums line quantities per item.
func lineQuantities(lines []PurchaseLine) map[int64]int {
	out := make(map[int64]int, len(lines))
	for _, l := range lines {
		out[l.ItemID] += l.Quantity
	}
	return out
}

// RecordPurchase stores a purchase, mints one barcoded IN_STOCK instance
// per purchased unit and credits the unallocated stock of each item.
func RecordPurchase(ctx context.Context, db *sql.DB, alloc *BarcodeAllocator, in PurchaseInput) (*model.Purchase, error) {
	if in.PurchaseDate.IsZero() {
		in.PurchaseDate = now()
	}

	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		items, err := validatePurchase(ctx, tx, in)
		if err != nil {
			return err
		}

		ts := now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO purchases (vendor_name, vendor_contact, purchase_date, invoice_number,
			   total_price, remarks, office_id, purchased_by, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, '0', ?, ?, ?, 1, ?, ?)`,
			strings.TrimSpace(in.VendorName), in.VendorContact, in.PurchaseDate.UTC(), in.InvoiceNumber,
			in.Remarks, in.OfficeID, in.PurchasedBy, ts, ts,
		)
		if err != nil {
			return fmt.Errorf("creating purchase: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting purchase id: %w", err)
		}

		if err := insertPurchaseLines(ctx, tx, alloc, id, in, items); err != nil {
			return err
		}

		for itemID, qty := range lineQuantities(in.Lines) {
			if err := adjustItemQuantity(ctx, tx, itemID, qty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StockMovements.WithLabelValues(model.TransactionPurchase).Inc()
	return GetPurchase(ctx, db, id)
}

// insertPurchaseLines writes the lines and their instances and stores the
// recomputed total on the purchase header.
func insertPurchaseLines(ctx context.Context, tx *sql.Tx, alloc *BarcodeAllocator, purchaseID int64, in PurchaseInput, items map[int64]*model.Item) error {
	var owner *int64
	power, err := HasPurchasingPower(ctx, tx, in.PurchasedBy)
	if err != nil {
		return err
	}
	if power {
		owner = &in.PurchasedBy
	}

	total := decimal.Zero
	ts := now()
	for _, line := range in.Lines {
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(lineTotal)

		_, err := tx.ExecContext(ctx,
			`INSERT INTO purchase_items (purchase_id, item_id, quantity, unit_price, total_price)
			 VALUES (?, ?, ?, ?, ?)`,
			purchaseID, line.ItemID, line.Quantity, line.UnitPrice.String(), lineTotal.String(),
		)
		if err != nil {
			return fmt.Errorf("creating purchase line: %w", err)
		}

		barcodes, err := alloc.AllocateBatch(ctx, tx, items[line.ItemID].Code, line.Quantity)
		if err != nil {
			return err
		}
		for _, barcode := range barcodes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO item_instances (item_id, purchase_id, barcode, unit_price, status, owner_id, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				line.ItemID, purchaseID, barcode, line.UnitPrice.String(), model.InstanceInStock, owner, ts,
			)
			if err != nil {
				return uniqueViolation(err, "barcode "+barcode)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE purchases SET total_price = ? WHERE id = ?`, total.String(), purchaseID,
	)
	if err != nil {
		return fmt.Errorf("updating purchase total: %w", err)
	}
	return nil
}

// UpdatePurchase replaces the header and lines of an active purchase. The
// old lines are discarded and new ones minted with fresh instances;
// instances from earlier lines stay on record. Unallocated stock changes by
// the net difference per item, which must not take any item below zero.
func UpdatePurchase(ctx context.Context, db *sql.DB, alloc *BarcodeAllocator, id int64, in PurchaseInput) (*model.Purchase, error) {
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		old, err := requirePurchase(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.PurchaseDate.IsZero() {
			in.PurchaseDate = old.PurchaseDate
		}

		items, err := validatePurchase(ctx, tx, in)
		if err != nil {
			return err
		}

		delta := lineQuantities(in.Lines)
		for _, line := range old.Items {
			delta[line.ItemID] -= line.Quantity
		}
		// Apply decreases first so an item moving between lines is never
		// checked against a half-applied balance.
		for _, pass := range []func(int) bool{
			func(d int) bool { return d < 0 },
			func(d int) bool { return d > 0 },
		} {
			for itemID, d := range delta {
				if !pass(d) {
					continue
				}
				if err := adjustItemQuantity(ctx, tx, itemID, d); err != nil {
					return err
				}
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_items WHERE purchase_id = ?`, id); err != nil {
			return fmt.Errorf("removing purchase lines: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE purchases SET vendor_name = ?, vendor_contact = ?, purchase_date = ?, invoice_number = ?,
			   remarks = ?, office_id = ?, purchased_by = ?, updated_at = ?
			 WHERE id = ?`,
			strings.TrimSpace(in.VendorName), in.VendorContact, in.PurchaseDate.UTC(), in.InvoiceNumber,
			in.Remarks, in.OfficeID, in.PurchasedBy, now(), id,
		)
		if err != nil {
			return fmt.Errorf("updating purchase: %w", err)
		}

		return insertPurchaseLines(ctx, tx, alloc, id, in, items)
	})
	if err != nil {
		return nil, err
	}

	return GetPurchase(ctx, db, id)
}

// DeletePurchase soft-deletes a purchase and takes its quantities back out
// of the unallocated stock. It fails with ErrInsufficientStock once the
// stock has been allocated elsewhere. Lines and instances are kept.
func DeletePurchase(ctx context.Context, db *sql.DB, id int64) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		p, err := requirePurchase(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, line := range p.Items {
			if err := adjustItemQuantity(ctx, tx, line.ItemID, -line.Quantity); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE purchases SET is_active = 0, updated_at = ? WHERE id = ?`, now(), id,
		)
		if err != nil {
			return fmt.Errorf("deleting purchase: %w", err)
		}
		return nil
	})
}

const purchaseColumns = `id, vendor_name, vendor_contact, purchase_date, invoice_number, total_price,
        remarks, office_id, purchased_by, is_active, created_at, updated_at`

func scanPurchase(row interface{ Scan(...any) error }) (*model.Purchase, error) {
	p := &model.Purchase{}
	err := row.Scan(&p.ID, &p.VendorName, &p.VendorContact, &p.PurchaseDate, &p.InvoiceNumber,
		&p.TotalPrice, &p.Remarks, &p.OfficeID, &p.PurchasedBy, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetPurchase returns an active purchase with its lines, or nil.
func GetPurchase(ctx context.Context, q Querier, id int64) (*model.Purchase, error) {
	p, err := scanPurchase(q.QueryRowContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE id = ? AND is_active = 1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting purchase: %w", err)
	}

	p.Items, err = listPurchaseItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func requirePurchase(ctx context.Context, q Querier, id int64) (*model.Purchase, error) {
	p, err := GetPurchase(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: purchase %d", model.ErrNotFound, id)
	}
	return p, nil
}

func listPurchaseItems(ctx context.Context, q Querier, purchaseID int64) ([]model.PurchaseItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT pi.id, pi.purchase_id, pi.item_id, pi.quantity, pi.unit_price, pi.total_price, i.name, i.code
		 FROM purchase_items pi
		 JOIN items i ON i.id = pi.item_id
		 WHERE pi.purchase_id = ?
		 ORDER BY pi.id`, purchaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing purchase lines: %w", err)
	}
	defer rows.Close()

	var out []model.PurchaseItem
	for rows.Next() {
		var pi model.PurchaseItem
		if err := rows.Scan(&pi.ID, &pi.PurchaseID, &pi.ItemID, &pi.Quantity, &pi.UnitPrice,
			&pi.TotalPrice, &pi.ItemName, &pi.ItemCode); err != nil {
			return nil, fmt.Errorf("scanning purchase line: %w", err)
		}
		out = append(out, pi)
	}
	return out, rows.Err()
}

// queryPurchases lists purchase headers; lines are only loaded by GetPurchase.
func queryPurchases(ctx context.Context, q Querier, where, tail string, args ...any) ([]model.Purchase, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE is_active = 1`+where+
			` ORDER BY purchase_date DESC, id DESC`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("listing purchases: %w", err)
	}
	defer rows.Close()

	var out []model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning purchase: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListPurchases returns all active purchases, newest first. With a non-zero
// officeID only that office's purchases are returned.
func ListPurchases(ctx context.Context, q Querier, officeID int64) ([]model.Purchase, error) {
	if officeID != 0 {
		return queryPurchases(ctx, q, ` AND office_id = ?`, ``, officeID)
	}
	return queryPurchases(ctx, q, ``, ``)
}

// ListPurchasesByDateRange returns active purchases dated within [from, to].
func ListPurchasesByDateRange(ctx context.Context, q Querier, from, to time.Time) ([]model.Purchase, error) {
	return queryPurchases(ctx, q, ` AND purchase_date BETWEEN ? AND ?`, ``, from.UTC(), to.UTC())
}

// RecentPurchases returns the latest limit active purchases.
func RecentPurchases(ctx context.Context, q Querier, limit int) ([]model.Purchase, error) {
	return queryPurchases(ctx, q, ``, ` LIMIT ?`, limit)
}
