package store

import (
	"context"
	"fmt"

	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
)

// A Movement says where moved stock comes from and when the receiving office
// is credited. Both the approval workflow (Allocation, Transfer,
// EmployeeMovement, Return) and the direct office ledger (DirectDistribution,
// DirectReturn) describe their requests with one of these variants, so the
// ledger effects of a movement are defined in one place.
type Movement interface {
	// Kind is the transfer or transaction type recorded for the movement.
	Kind() string
	// Source returns the sending office, if the variant names one.
	Source() *int64

	source() stockSource
	// creditsOnCreate reports whether the receiving office is credited when
	// the movement is recorded rather than when it is accepted.
	creditsOnCreate() bool
}

// stockSource is the balance a movement draws from: the unallocated item
// pool or an office's ledger row.
type stockSource struct {
	pool     bool
	officeID int64
}

// Allocation hands unallocated stock to an office.
type Allocation struct{}

// Transfer moves stock that an office already holds.
type Transfer struct {
	From int64
}

// EmployeeMovement moves stock for an employee. It draws on the unallocated
// pool even though a sending office is recorded.
type EmployeeMovement struct {
	From     int64
	Employee *int64
}

// Return sends stock back towards an office. Like EmployeeMovement it draws
// on the unallocated pool.
type Return struct {
	From int64
}

// DirectDistribution moves stock from a parent office to a direct child.
type DirectDistribution struct {
	From int64
}

// DirectReturn moves stock from a child office to its direct parent.
type DirectReturn struct {
	From int64
}

func (Allocation) Kind() string         { return model.TransferAllocation }
func (Transfer) Kind() string           { return model.TransferTransfer }
func (EmployeeMovement) Kind() string   { return model.TransferMovement }
func (Return) Kind() string             { return model.TransferReturn }
func (DirectDistribution) Kind() string { return model.TransactionDistribution }
func (DirectReturn) Kind() string       { return model.TransactionReturn }

func (Allocation) Source() *int64           { return nil }
func (m Transfer) Source() *int64           { return &m.From }
func (m EmployeeMovement) Source() *int64   { return &m.From }
func (m Return) Source() *int64             { return &m.From }
func (m DirectDistribution) Source() *int64 { return &m.From }
func (m DirectReturn) Source() *int64       { return &m.From }

func (Allocation) source() stockSource           { return stockSource{pool: true} }
func (m Transfer) source() stockSource           { return stockSource{officeID: m.From} }
func (EmployeeMovement) source() stockSource     { return stockSource{pool: true} }
func (Return) source() stockSource               { return stockSource{pool: true} }
func (m DirectDistribution) source() stockSource { return stockSource{officeID: m.From} }
func (m DirectReturn) source() stockSource       { return stockSource{officeID: m.From} }

func (Allocation) creditsOnCreate() bool         { return true }
func (Transfer) creditsOnCreate() bool           { return true }
func (EmployeeMovement) creditsOnCreate() bool   { return false }
func (Return) creditsOnCreate() bool             { return false }
func (DirectDistribution) creditsOnCreate() bool { return true }
func (DirectReturn) creditsOnCreate() bool       { return true }

// employeeOf returns the employee a movement is made for.
func employeeOf(m Movement) *int64 {
	if em, ok := m.(EmployeeMovement); ok {
		return em.Employee
	}
	return nil
}

// MovementFor rebuilds the movement variant stored on a distribution row.
func MovementFor(d *model.Distribution) (Movement, error) {
	from := func() (int64, error) {
		if d.FromOfficeID == nil {
			return 0, fmt.Errorf("%w: %s distribution %d has no source office",
				model.ErrValidation, d.TransferType, d.ID)
		}
		return *d.FromOfficeID, nil
	}

	switch d.TransferType {
	case model.TransferAllocation:
		return Allocation{}, nil
	case model.TransferTransfer:
		f, err := from()
		if err != nil {
			return nil, err
		}
		return Transfer{From: f}, nil
	case model.TransferMovement:
		f, err := from()
		if err != nil {
			return nil, err
		}
		return EmployeeMovement{From: f, Employee: d.EmployeeID}, nil
	case model.TransferReturn:
		f, err := from()
		if err != nil {
			return nil, err
		}
		return Return{From: f}, nil
	}
	return nil, fmt.Errorf("%w: unknown transfer type %q", model.ErrValidation, d.TransferType)
}

// NewMovement builds a workflow movement from request fields.
func NewMovement(transferType string, fromOfficeID, employeeID *int64) (Movement, error) {
	return MovementFor(&model.Distribution{
		TransferType: transferType,
		FromOfficeID: fromOfficeID,
		EmployeeID:   employeeID,
	})
}

// validateMovement checks everything a movement references before any
// balance is touched.
func validateMovement(ctx context.Context, q Querier, m Movement, itemID, toOfficeID int64, quantity int) error {
	if m == nil {
		return fmt.Errorf("%w: movement type required", model.ErrValidation)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", model.ErrValidation)
	}
	if _, err := requireItem(ctx, q, itemID); err != nil {
		return err
	}
	if _, err := requireOffice(ctx, q, toOfficeID); err != nil {
		return err
	}
	if from := m.Source(); from != nil {
		if _, err := requireOffice(ctx, q, *from); err != nil {
			return err
		}
		if src := m.source(); !src.pool && src.officeID == toOfficeID {
			return fmt.Errorf("%w: source and destination office are the same", model.ErrValidation)
		}
	}
	if emp := employeeOf(m); emp != nil {
		if _, err := requireEmployee(ctx, q, *emp); err != nil {
			return err
		}
	}
	return nil
}

// debit takes quantity from the movement's source balance.
func debit(ctx context.Context, q Querier, src stockSource, itemID int64, quantity int) error {
	if src.pool {
		return adjustItemQuantity(ctx, q, itemID, -quantity)
	}
	return adjustStock(ctx, q, src.officeID, itemID, -quantity)
}

// refund gives quantity back to the movement's source balance.
func refund(ctx context.Context, q Querier, src stockSource, itemID int64, quantity int) error {
	if src.pool {
		return adjustItemQuantity(ctx, q, itemID, quantity)
	}
	return adjustStock(ctx, q, src.officeID, itemID, quantity)
}

// credit adds quantity to the receiving office and moves matching barcoded
// instances along with it.
func credit(ctx context.Context, q Querier, m Movement, itemID, toOfficeID int64, quantity int, distributionID *int64) error {
	if err := adjustStock(ctx, q, toOfficeID, itemID, quantity); err != nil {
		return err
	}
	return reassignInstances(ctx, q, m.source(), itemID, toOfficeID, quantity, distributionID)
}

// commitMovement applies the effects of recording a movement: the source is
// debited and, for variants that credit on creation, the receiver credited.
func commitMovement(ctx context.Context, q Querier, m Movement, itemID, toOfficeID int64, quantity int, distributionID *int64) error {
	if err := debit(ctx, q, m.source(), itemID, quantity); err != nil {
		return err
	}
	if m.creditsOnCreate() {
		if err := credit(ctx, q, m, itemID, toOfficeID, quantity, distributionID); err != nil {
			return err
		}
	}
	metrics.StockMovements.WithLabelValues(m.Kind()).Inc()
	return nil
}

// revertMovement undoes every effect a movement has had. credited says
// whether the receiving office holds the stock, either from creation or
// from acceptance. Reverting fails with ErrInsufficientStock if the receiver
// has already passed the stock on.
func revertMovement(ctx context.Context, q Querier, m Movement, itemID, toOfficeID int64, quantity int, credited bool, distributionID int64) error {
	if credited {
		if err := adjustStock(ctx, q, toOfficeID, itemID, -quantity); err != nil {
			return err
		}
		if err := releaseInstances(ctx, q, m.source(), itemID, toOfficeID, quantity, distributionID); err != nil {
			return err
		}
	}
	return refund(ctx, q, m.source(), itemID, quantity)
}
