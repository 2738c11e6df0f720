package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/evidenca/internal/model"
)

// DirectTransferInput is a request to move stock between a parent office
// and one of its direct children without an approval step.
type DirectTransferInput struct {
	ItemID       int64
	FromOfficeID int64
	ToOfficeID   int64
	Quantity     int
	InitiatedBy  int64
	Remarks      string
}

// DistributeToChild moves stock from a parent office to one of its direct
// children and records a completed DISTRIBUTION transaction.
func DistributeToChild(ctx context.Context, db *sql.DB, in DirectTransferInput) (*model.OfficeTransaction, error) {
	return recordDirectTransfer(ctx, db, DirectDistribution{From: in.FromOfficeID}, in, in.Remarks, "DIST")
}

// ReturnToParent moves stock from a child office back to its direct parent
// and records a completed RETURN transaction. The reason is appended to the
// remarks.
func ReturnToParent(ctx context.Context, db *sql.DB, in DirectTransferInput, reason string) (*model.OfficeTransaction, error) {
	remarks := in.Remarks
	if reason != "" {
		remarks += " | Reason: " + reason
	}
	return recordDirectTransfer(ctx, db, DirectReturn{From: in.FromOfficeID}, in, remarks, "RET")
}

func recordDirectTransfer(ctx context.Context, db *sql.DB, m Movement, in DirectTransferInput, remarks, prefix string) (*model.OfficeTransaction, error) {
	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if err := validateMovement(ctx, tx, m, in.ItemID, in.ToOfficeID, in.Quantity); err != nil {
			return err
		}
		if _, err := requireUser(ctx, tx, in.InitiatedBy); err != nil {
			return err
		}
		if err := checkDirectParentage(ctx, tx, m, in.FromOfficeID, in.ToOfficeID); err != nil {
			return err
		}

		ok, err := HasSufficientStock(ctx, tx, in.FromOfficeID, in.ItemID, in.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			held, err := QuantityAt(ctx, tx, in.FromOfficeID, in.ItemID)
			if err != nil {
				return err
			}
			return fmt.Errorf("%w: office %d holds %d of item %d, need %d",
				model.ErrInsufficientStock, in.FromOfficeID, held, in.ItemID, in.Quantity)
		}

		if err := commitMovement(ctx, tx, m, in.ItemID, in.ToOfficeID, in.Quantity, nil); err != nil {
			return err
		}

		id, err = insertTransaction(ctx, tx, model.OfficeTransaction{
			ItemID:       in.ItemID,
			FromOfficeID: in.FromOfficeID,
			ToOfficeID:   in.ToOfficeID,
			Type:         m.Kind(),
			Quantity:     in.Quantity,
			InitiatedBy:  in.InitiatedBy,
			Remarks:      remarks,
		}, prefix)
		return err
	})
	if err != nil {
		return nil, err
	}

	return GetTransaction(ctx, db, id)
}

// checkDirectParentage enforces that distributions go one level down and
// returns one level up.
func checkDirectParentage(ctx context.Context, q Querier, m Movement, fromOfficeID, toOfficeID int64) error {
	from, err := requireOffice(ctx, q, fromOfficeID)
	if err != nil {
		return err
	}
	to, err := requireOffice(ctx, q, toOfficeID)
	if err != nil {
		return err
	}

	switch m.(type) {
	case DirectDistribution:
		ok, err := IsDirectParent(ctx, q, from.ID, to.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: Can only distribute to direct child offices. Office %s is not the parent of %s",
				model.ErrValidation, from.Name, to.Name)
		}
	case DirectReturn:
		ok, err := IsDirectParent(ctx, q, to.ID, from.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: Can only return to direct parent office. Office %s is not the parent of %s",
				model.ErrValidation, to.Name, from.Name)
		}
	}
	return nil
}

// insertTransaction records a completed, self-approved transaction under a
// fresh reference number.
func insertTransaction(ctx context.Context, q Querier, t model.OfficeTransaction, prefix string) (int64, error) {
	ref, err := nextReference(ctx, q, prefix)
	if err != nil {
		return 0, err
	}

	ts := now()
	result, err := q.ExecContext(ctx,
		`INSERT INTO office_item_transactions
		   (item_id, from_office_id, to_office_id, transaction_type, quantity, initiated_by,
		    approved_by, status, transaction_date, approved_date, remarks, reference_number, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ItemID, t.FromOfficeID, t.ToOfficeID, t.Type, t.Quantity, t.InitiatedBy,
		t.InitiatedBy, model.TransactionCompleted, ts, ts, t.Remarks, ref, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("recording transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting transaction id: %w", err)
	}
	return id, nil
}

// nextReference returns prefix-<unix millis>, bumped until it is unused.
// Callers hold the write lock, so the result stays unique until commit.
func nextReference(ctx context.Context, q Querier, prefix string) (string, error) {
	n := time.Now().UnixMilli()
	for {
		ref := fmt.Sprintf("%s-%d", prefix, n)
		var count int
		err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM office_item_transactions WHERE reference_number = ?`, ref,
		).Scan(&count)
		if err != nil {
			return "", fmt.Errorf("checking reference number: %w", err)
		}
		if count == 0 {
			return ref, nil
		}
		n++
	}
}

const transactionSelect = `SELECT t.id, t.item_id, t.from_office_id, t.to_office_id, t.transaction_type,
        t.quantity, t.initiated_by, t.approved_by, t.status, t.transaction_date, t.approved_date,
        t.remarks, t.rejection_reason, t.reference_number, t.created_at, i.name, f.name, o.name
 FROM office_item_transactions t
 JOIN items i ON i.id = t.item_id
 JOIN offices f ON f.id = t.from_office_id
 JOIN offices o ON o.id = t.to_office_id `

func scanTransaction(row interface{ Scan(...any) error }) (*model.OfficeTransaction, error) {
	t := &model.OfficeTransaction{}
	err := row.Scan(&t.ID, &t.ItemID, &t.FromOfficeID, &t.ToOfficeID, &t.Type,
		&t.Quantity, &t.InitiatedBy, &t.ApprovedBy, &t.Status, &t.TransactionDate, &t.ApprovedDate,
		&t.Remarks, &t.RejectionReason, &t.ReferenceNumber, &t.CreatedAt,
		&t.ItemName, &t.FromOfficeName, &t.ToOfficeName)
	return t, err
}

// GetTransaction returns a transaction by ID, or nil.
func GetTransaction(ctx context.Context, q Querier, id int64) (*model.OfficeTransaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, transactionSelect+`WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return t, nil
}

// GetTransactionByReference returns the transaction with a reference number, or nil.
func GetTransactionByReference(ctx context.Context, q Querier, ref string) (*model.OfficeTransaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, transactionSelect+`WHERE t.reference_number = ?`, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction by reference: %w", err)
	}
	return t, nil
}

func queryTransactions(ctx context.Context, q Querier, where string, args ...any) ([]model.OfficeTransaction, error) {
	rows, err := q.QueryContext(ctx,
		transactionSelect+where+` ORDER BY t.transaction_date DESC, t.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []model.OfficeTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ListTransactions returns every transaction, newest first.
func ListTransactions(ctx context.Context, q Querier) ([]model.OfficeTransaction, error) {
	return queryTransactions(ctx, q, ``)
}

// ListOfficeTransactions returns transactions where the office sent or received.
func ListOfficeTransactions(ctx context.Context, q Querier, officeID int64) ([]model.OfficeTransaction, error) {
	return queryTransactions(ctx, q, `WHERE t.from_office_id = ? OR t.to_office_id = ?`, officeID, officeID)
}

// ListItemTransactions returns all transactions of an item.
func ListItemTransactions(ctx context.Context, q Querier, itemID int64) ([]model.OfficeTransaction, error) {
	return queryTransactions(ctx, q, `WHERE t.item_id = ?`, itemID)
}

// ListItemHistoryAtOffice returns the transactions of one item that touched an office.
func ListItemHistoryAtOffice(ctx context.Context, q Querier, itemID, officeID int64) ([]model.OfficeTransaction, error) {
	return queryTransactions(ctx, q,
		`WHERE t.item_id = ? AND (t.from_office_id = ? OR t.to_office_id = ?)`, itemID, officeID, officeID)
}

// ListPendingTransactions returns the pending transactions involving an office.
func ListPendingTransactions(ctx context.Context, q Querier, officeID int64) ([]model.OfficeTransaction, error) {
	return queryTransactions(ctx, q,
		`WHERE t.status = ? AND (t.from_office_id = ? OR t.to_office_id = ?)`,
		model.TransactionPending, officeID, officeID)
}

// ListTransactionsBetween returns transactions from one office to another.
func ListTransactionsBetween(ctx context.Context, q Querier, fromOfficeID, toOfficeID int64) ([]model.OfficeTransaction, error) {
	return queryTransactions(ctx, q,
		`WHERE t.from_office_id = ? AND t.to_office_id = ?`, fromOfficeID, toOfficeID)
}

// ListTransactionsByDateRange returns transactions dated within [from, to].
func ListTransactionsByDateRange(ctx context.Context, q Querier, from, to time.Time) ([]model.OfficeTransaction, error) {
	return queryTransactions(ctx, q, `WHERE t.transaction_date BETWEEN ? AND ?`, from.UTC(), to.UTC())
}

// ListCompletedDistributions returns completed distributions sent by an office.
func ListCompletedDistributions(ctx context.Context, q Querier, officeID int64) ([]model.OfficeTransaction, error) {
	return queryTransactions(ctx, q,
		`WHERE t.from_office_id = ? AND t.transaction_type = ? AND t.status = ?`,
		officeID, model.TransactionDistribution, model.TransactionCompleted)
}

// ListCompletedReturns returns completed returns received by an office.
func ListCompletedReturns(ctx context.Context, q Querier, officeID int64) ([]model.OfficeTransaction, error) {
	return queryTransactions(ctx, q,
		`WHERE t.to_office_id = ? AND t.transaction_type = ? AND t.status = ?`,
		officeID, model.TransactionReturn, model.TransactionCompleted)
}
