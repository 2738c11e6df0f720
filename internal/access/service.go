package access

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// Service runs ledger and workflow operations on behalf of a caller. Lists
// are narrowed to the caller's offices; single rows and changes are checked
// before the store is touched.
type Service struct {
	DB       *sql.DB
	Barcodes *store.BarcodeAllocator
}

// NewService returns a Service over db minting barcodes with alloc.
func NewService(db *sql.DB, alloc *store.BarcodeAllocator) *Service {
	return &Service{DB: db, Barcodes: alloc}
}

// Scope resolves the offices the caller may act on.
func (s *Service) Scope(ctx context.Context, c Caller) (Scope, error) {
	return Resolve(ctx, s.DB, c)
}

func distributionOffices(d model.Distribution) []int64 {
	if d.FromOfficeID != nil {
		return []int64{d.ToOfficeID, *d.FromOfficeID}
	}
	return []int64{d.ToOfficeID}
}

func transactionOffices(t model.OfficeTransaction) []int64 {
	return []int64{t.FromOfficeID, t.ToOfficeID}
}

func inventoryOffice(inv model.OfficeInventory) []int64 { return []int64{inv.OfficeID} }

func purchaseOffice(p model.Purchase) []int64 { return []int64{p.OfficeID} }

// latest keeps the first limit rows of a newest-first list.
func latest[T any](rows []T, limit int) []T {
	if limit >= 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

// Offices returns the offices in the caller's scope.
func (s *Service) Offices(ctx context.Context, c Caller) ([]model.Office, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	offices, err := store.ListOffices(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return filter(scope, offices, func(o model.Office) []int64 { return []int64{o.ID} }), nil
}

// Office returns one office in scope.
func (s *Service) Office(ctx context.Context, c Caller, id int64) (*model.Office, error) {
	if err := s.require(ctx, c, id); err != nil {
		return nil, err
	}
	o, err := store.GetOffice(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: office %d", model.ErrNotFound, id)
	}
	return o, nil
}

// OfficeByCode returns the office with a code, or nil when no office in
// scope carries it.
func (s *Service) OfficeByCode(ctx context.Context, c Caller, code string) (*model.Office, error) {
	o, err := store.GetOfficeByCode(ctx, s.DB, code)
	if err != nil || o == nil {
		return nil, err
	}
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	if !scope.Contains(o.ID) {
		return nil, nil
	}
	return o, nil
}

func (s *Service) require(ctx context.Context, c Caller, officeIDs ...int64) error {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return err
	}
	return scope.Require(officeIDs...)
}

// Inventory returns every ledger row in scope.
func (s *Service) Inventory(ctx context.Context, c Caller) ([]model.OfficeInventory, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	if scope.Empty() {
		return nil, nil
	}
	rows, err := store.ListInventory(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return filter(scope, rows, inventoryOffice), nil
}

// OfficeInventory returns one office's ledger rows. With availableOnly set,
// rows at zero are left out.
func (s *Service) OfficeInventory(ctx context.Context, c Caller, officeID int64, availableOnly bool) ([]model.OfficeInventory, error) {
	if err := s.require(ctx, c, officeID); err != nil {
		return nil, err
	}
	if availableOnly {
		return store.ListAvailableInventory(ctx, s.DB, officeID)
	}
	return store.ListOfficeInventory(ctx, s.DB, officeID)
}

// ItemInventory returns where an item is held, within scope.
func (s *Service) ItemInventory(ctx context.Context, c Caller, itemID int64) ([]model.OfficeInventory, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	rows, err := store.ListItemInventory(ctx, s.DB, itemID)
	if err != nil {
		return nil, err
	}
	return filter(scope, rows, inventoryOffice), nil
}

// AdjustInventory corrects the stock of an office in scope.
func (s *Service) AdjustInventory(ctx context.Context, c Caller, officeID, itemID int64, delta int, remarks string) (*model.OfficeTransaction, error) {
	if err := s.require(ctx, c, officeID); err != nil {
		return nil, err
	}
	return store.AdjustInventory(ctx, s.DB, officeID, itemID, delta, remarks, c.UserID)
}

// OfficeInstances returns the barcoded units held by an office in scope.
func (s *Service) OfficeInstances(ctx context.Context, c Caller, officeID int64) ([]model.ItemInstance, error) {
	if err := s.require(ctx, c, officeID); err != nil {
		return nil, err
	}
	return store.ListOfficeInstances(ctx, s.DB, officeID)
}

// ItemInstances lists the barcoded units of an item. Units that are not at
// any office are always listed; the rest only when their office is in scope.
func (s *Service) ItemInstances(ctx context.Context, c Caller, itemID int64, status string) ([]model.ItemInstance, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	list, err := store.ListItemInstances(ctx, s.DB, itemID, status)
	if err != nil {
		return nil, err
	}
	if scope.All() {
		return list, nil
	}
	out := make([]model.ItemInstance, 0, len(list))
	for _, in := range list {
		if in.DistributedToOfficeID == nil || scope.Contains(*in.DistributedToOfficeID) {
			out = append(out, in)
		}
	}
	return out, nil
}

// Purchases lists the purchases of offices in scope.
func (s *Service) Purchases(ctx context.Context, c Caller) ([]model.Purchase, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	list, err := store.ListPurchases(ctx, s.DB, 0)
	if err != nil {
		return nil, err
	}
	return filter(scope, list, purchaseOffice), nil
}

// PurchasesByDateRange lists purchases dated within [from, to] for offices
// in scope.
func (s *Service) PurchasesByDateRange(ctx context.Context, c Caller, from, to time.Time) ([]model.Purchase, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	list, err := store.ListPurchasesByDateRange(ctx, s.DB, from, to)
	if err != nil {
		return nil, err
	}
	return filter(scope, list, purchaseOffice), nil
}

// RecentPurchases returns the latest limit purchases in scope.
func (s *Service) RecentPurchases(ctx context.Context, c Caller, limit int) ([]model.Purchase, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	if scope.All() {
		return store.RecentPurchases(ctx, s.DB, limit)
	}
	list, err := s.Purchases(ctx, c)
	if err != nil {
		return nil, err
	}
	return latest(list, limit), nil
}

// Purchase returns one purchase of an office in scope.
func (s *Service) Purchase(ctx context.Context, c Caller, id int64) (*model.Purchase, error) {
	p, err := store.GetPurchase(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: purchase %d", model.ErrNotFound, id)
	}
	if err := s.require(ctx, c, p.OfficeID); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordPurchase records a purchase made by the caller for an office in scope.
func (s *Service) RecordPurchase(ctx context.Context, c Caller, in store.PurchaseInput) (*model.Purchase, error) {
	if err := s.require(ctx, c, in.OfficeID); err != nil {
		return nil, err
	}
	in.PurchasedBy = c.UserID
	return store.RecordPurchase(ctx, s.DB, s.Barcodes, in)
}

// UpdatePurchase replaces a purchase. Both the current and the new office
// must be in scope.
func (s *Service) UpdatePurchase(ctx context.Context, c Caller, id int64, in store.PurchaseInput) (*model.Purchase, error) {
	p, err := s.Purchase(ctx, c, id)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, c, in.OfficeID); err != nil {
		return nil, err
	}
	in.PurchasedBy = p.PurchasedBy
	return store.UpdatePurchase(ctx, s.DB, s.Barcodes, id, in)
}

// DeletePurchase soft-deletes a purchase of an office in scope.
func (s *Service) DeletePurchase(ctx context.Context, c Caller, id int64) error {
	if _, err := s.Purchase(ctx, c, id); err != nil {
		return err
	}
	return store.DeletePurchase(ctx, s.DB, id)
}

// Distributions lists distributions where either office is in scope.
func (s *Service) Distributions(ctx context.Context, c Caller, status string) ([]model.Distribution, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	if scope.Empty() {
		return nil, nil
	}
	list, err := store.ListDistributions(ctx, s.DB, status)
	if err != nil {
		return nil, err
	}
	return filter(scope, list, distributionOffices), nil
}

// DistributionsByDateRange lists distributions created within [from, to]
// where either office is in scope.
func (s *Service) DistributionsByDateRange(ctx context.Context, c Caller, from, to time.Time) ([]model.Distribution, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	list, err := store.ListDistributionsByDateRange(ctx, s.DB, from, to)
	if err != nil {
		return nil, err
	}
	return filter(scope, list, distributionOffices), nil
}

// RecentDistributions returns the latest limit distributions where either
// office is in scope.
func (s *Service) RecentDistributions(ctx context.Context, c Caller, limit int) ([]model.Distribution, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	if scope.All() {
		return store.RecentDistributions(ctx, s.DB, limit)
	}
	list, err := s.Distributions(ctx, c, "")
	if err != nil {
		return nil, err
	}
	return latest(list, limit), nil
}

// DistributionCounts counts the distributions in scope by status.
func (s *Service) DistributionCounts(ctx context.Context, c Caller) (map[string]int, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	if scope.All() {
		return store.CountDistributionsByStatus(ctx, s.DB)
	}

	list, err := s.Distributions(ctx, c, "")
	if err != nil {
		return nil, err
	}
	counts := map[string]int{
		model.DistributionPending:  0,
		model.DistributionApproved: 0,
		model.DistributionRejected: 0,
	}
	for _, d := range list {
		counts[d.Status]++
	}
	return counts, nil
}

// Distribution returns one distribution where either office is in scope.
func (s *Service) Distribution(ctx context.Context, c Caller, id int64) (*model.Distribution, error) {
	d, err := store.GetDistribution(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: distribution %d", model.ErrNotFound, id)
	}
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	if !scope.ContainsAny(distributionOffices(*d)...) {
		return nil, fmt.Errorf("%w: distribution %d", model.ErrForbidden, id)
	}
	return d, nil
}

// DistributionInstances returns the units held by a distribution's
// receiving office.
func (s *Service) DistributionInstances(ctx context.Context, c Caller, id int64) ([]model.ItemInstance, error) {
	if _, err := s.Distribution(ctx, c, id); err != nil {
		return nil, err
	}
	return store.ListDistributionInstances(ctx, s.DB, id)
}

// CreateDistribution records a distribution requested by the caller. The
// receiving office and any sending office must be in scope.
func (s *Service) CreateDistribution(ctx context.Context, c Caller, in store.DistributionInput) (*model.Distribution, error) {
	offices := []int64{in.ToOfficeID}
	if in.Movement != nil {
		if from := in.Movement.Source(); from != nil {
			offices = append(offices, *from)
		}
	}
	if err := s.require(ctx, c, offices...); err != nil {
		return nil, err
	}
	if in.UserID == nil {
		in.UserID = &c.UserID
	}
	return store.CreateDistribution(ctx, s.DB, in)
}

// UpdateDistribution changes a distribution. Every office it touches before
// and after the change must be in scope.
func (s *Service) UpdateDistribution(ctx context.Context, c Caller, id int64, patch store.DistributionPatch) (*model.Distribution, error) {
	d, err := s.Distribution(ctx, c, id)
	if err != nil {
		return nil, err
	}
	offices := distributionOffices(*d)
	if patch.ToOfficeID != nil {
		offices = append(offices, *patch.ToOfficeID)
	}
	if patch.Movement != nil {
		if from := patch.Movement.Source(); from != nil {
			offices = append(offices, *from)
		}
	}
	if err := s.require(ctx, c, offices...); err != nil {
		return nil, err
	}
	return store.UpdateDistribution(ctx, s.DB, id, patch)
}

// DeleteDistribution removes a distribution whose offices are all in scope.
func (s *Service) DeleteDistribution(ctx context.Context, c Caller, id int64) error {
	d, err := s.Distribution(ctx, c, id)
	if err != nil {
		return err
	}
	if err := s.require(ctx, c, distributionOffices(*d)...); err != nil {
		return err
	}
	return store.DeleteDistribution(ctx, s.DB, id)
}

// AcceptDistribution accepts a distribution on behalf of its receiving
// office. The office is checked inside the store transaction.
func (s *Service) AcceptDistribution(ctx context.Context, c Caller, id int64) (*model.Distribution, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	return store.AcceptDistribution(ctx, s.DB, id, scope.Contains)
}

// Transactions lists office transactions where either office is in scope.
func (s *Service) Transactions(ctx context.Context, c Caller) ([]model.OfficeTransaction, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	if scope.Empty() {
		return nil, nil
	}
	list, err := store.ListTransactions(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return filter(scope, list, transactionOffices), nil
}

// TransactionsByDateRange lists transactions dated within [from, to] where
// either office is in scope.
func (s *Service) TransactionsByDateRange(ctx context.Context, c Caller, from, to time.Time) ([]model.OfficeTransaction, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	list, err := store.ListTransactionsByDateRange(ctx, s.DB, from, to)
	if err != nil {
		return nil, err
	}
	return filter(scope, list, transactionOffices), nil
}

// OfficeTransactions lists the transactions of an office in scope.
func (s *Service) OfficeTransactions(ctx context.Context, c Caller, officeID int64) ([]model.OfficeTransaction, error) {
	if err := s.require(ctx, c, officeID); err != nil {
		return nil, err
	}
	return store.ListOfficeTransactions(ctx, s.DB, officeID)
}

// PendingTransactions lists the pending transactions of an office in scope.
func (s *Service) PendingTransactions(ctx context.Context, c Caller, officeID int64) ([]model.OfficeTransaction, error) {
	if err := s.require(ctx, c, officeID); err != nil {
		return nil, err
	}
	return store.ListPendingTransactions(ctx, s.DB, officeID)
}

// ItemHistory lists an item's transactions at an office in scope.
func (s *Service) ItemHistory(ctx context.Context, c Caller, itemID, officeID int64) ([]model.OfficeTransaction, error) {
	if err := s.require(ctx, c, officeID); err != nil {
		return nil, err
	}
	return store.ListItemHistoryAtOffice(ctx, s.DB, itemID, officeID)
}

// ItemTransactions lists an item's transactions where either office is in
// scope.
func (s *Service) ItemTransactions(ctx context.Context, c Caller, itemID int64) ([]model.OfficeTransaction, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	list, err := store.ListItemTransactions(ctx, s.DB, itemID)
	if err != nil {
		return nil, err
	}
	return filter(scope, list, transactionOffices), nil
}

// TransactionsBetween lists transactions from one office to another. It is
// empty unless one of the two offices is in scope.
func (s *Service) TransactionsBetween(ctx context.Context, c Caller, fromOfficeID, toOfficeID int64) ([]model.OfficeTransaction, error) {
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	if !scope.ContainsAny(fromOfficeID, toOfficeID) {
		return nil, nil
	}
	return store.ListTransactionsBetween(ctx, s.DB, fromOfficeID, toOfficeID)
}

// CompletedDistributions lists the completed distributions an office in
// scope sent to its children.
func (s *Service) CompletedDistributions(ctx context.Context, c Caller, officeID int64) ([]model.OfficeTransaction, error) {
	if err := s.require(ctx, c, officeID); err != nil {
		return nil, err
	}
	return store.ListCompletedDistributions(ctx, s.DB, officeID)
}

// CompletedReturns lists the completed returns an office in scope received.
func (s *Service) CompletedReturns(ctx context.Context, c Caller, officeID int64) ([]model.OfficeTransaction, error) {
	if err := s.require(ctx, c, officeID); err != nil {
		return nil, err
	}
	return store.ListCompletedReturns(ctx, s.DB, officeID)
}

// Transaction returns one transaction where either office is in scope.
func (s *Service) Transaction(ctx context.Context, c Caller, id int64) (*model.OfficeTransaction, error) {
	t, err := store.GetTransaction(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: transaction %d", model.ErrNotFound, id)
	}
	scope, err := s.Scope(ctx, c)
	if err != nil {
		return nil, err
	}
	if !scope.ContainsAny(transactionOffices(*t)...) {
		return nil, fmt.Errorf("%w: transaction %d", model.ErrForbidden, id)
	}
	return t, nil
}

// DistributeToChild sends stock from an office in scope to one of its
// direct children.
func (s *Service) DistributeToChild(ctx context.Context, c Caller, in store.DirectTransferInput) (*model.OfficeTransaction, error) {
	if err := s.require(ctx, c, in.FromOfficeID); err != nil {
		return nil, err
	}
	in.InitiatedBy = c.UserID
	return store.DistributeToChild(ctx, s.DB, in)
}

// ReturnToParent sends stock from an office in scope back to its parent.
func (s *Service) ReturnToParent(ctx context.Context, c Caller, in store.DirectTransferInput, reason string) (*model.OfficeTransaction, error) {
	if err := s.require(ctx, c, in.FromOfficeID); err != nil {
		return nil, err
	}
	in.InitiatedBy = c.UserID
	return store.ReturnToParent(ctx, s.DB, in, reason)
}
