package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/evidenca/internal/db"
	"github.com/erazemk/evidenca/internal/model"
)

func TestAdjustStockUpserts(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	item := mustItem(t, database, "CH", "Chair", 0)

	if n := quantityAt(t, database, office.ID, item.ID); n != 0 {
		t.Fatalf("expected 0 before any stock, got %d", n)
	}

	mustStock(t, database, office.ID, item.ID, 5)
	mustStock(t, database, office.ID, item.ID, 3)

	if n := quantityAt(t, database, office.ID, item.ID); n != 8 {
		t.Errorf("expected 8, got %d", n)
	}

	inv, _ := ListOfficeInventory(ctx, database, office.ID)
	if len(inv) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(inv))
	}
	if inv[0].ItemName != "Chair" || inv[0].OfficeName != "Root" {
		t.Errorf("expected joined names, got %+v", inv[0])
	}
}

func TestAdjustStockNeverNegative(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	item := mustItem(t, database, "CH", "Chair", 0)
	mustStock(t, database, office.ID, item.ID, 2)

	err := adjustStock(ctx, database, office.ID, item.ID, -3)
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if n := quantityAt(t, database, office.ID, item.ID); n != 2 {
		t.Errorf("expected quantity to stay 2, got %d", n)
	}

	// A missing row cannot be debited either.
	other := mustOffice(t, database, "Other", "OTHER", nil)
	if err := adjustStock(ctx, database, other.ID, item.ID, -1); !errors.Is(err, model.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock on empty office, got %v", err)
	}
}

func TestZeroedRowsAreKept(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	item := mustItem(t, database, "CH", "Chair", 0)
	mustStock(t, database, office.ID, item.ID, 2)
	mustStock(t, database, office.ID, item.ID, -2)

	all, _ := ListOfficeInventory(ctx, database, office.ID)
	if len(all) != 1 || all[0].Quantity != 0 {
		t.Errorf("expected one zero row, got %+v", all)
	}
	available, _ := ListAvailableInventory(ctx, database, office.ID)
	if len(available) != 0 {
		t.Errorf("expected nothing available, got %+v", available)
	}
}

func TestTransferStockIsAtomic(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustOffice(t, database, "A", "A", nil)
	b := mustOffice(t, database, "B", "B", nil)
	item := mustItem(t, database, "CH", "Chair", 0)
	mustStock(t, database, a.ID, item.ID, 5)

	if err := TransferStock(ctx, database, a.ID, b.ID, item.ID, 3); err != nil {
		t.Fatalf("TransferStock: %v", err)
	}
	if n := quantityAt(t, database, a.ID, item.ID); n != 2 {
		t.Errorf("expected A to hold 2, got %d", n)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 3 {
		t.Errorf("expected B to hold 3, got %d", n)
	}

	err := TransferStock(ctx, database, a.ID, b.ID, item.ID, 10)
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if n := quantityAt(t, database, a.ID, item.ID); n != 2 {
		t.Errorf("expected A unchanged at 2, got %d", n)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 3 {
		t.Errorf("expected B unchanged at 3, got %d", n)
	}

	total, _ := TotalOfficeQuantity(ctx, database, item.ID)
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
}

func TestHasSufficientStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	item := mustItem(t, database, "CH", "Chair", 0)
	mustStock(t, database, office.ID, item.ID, 4)

	for _, tc := range []struct {
		required int
		want     bool
	}{{3, true}, {4, true}, {5, false}} {
		got, err := HasSufficientStock(ctx, database, office.ID, item.ID, tc.required)
		if err != nil {
			t.Fatalf("HasSufficientStock: %v", err)
		}
		if got != tc.want {
			t.Errorf("required %d: expected %v, got %v", tc.required, tc.want, got)
		}
	}
}

func TestAdjustInventoryRecordsTransaction(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	item := mustItem(t, database, "CH", "Chair", 0)
	user := mustUser(t, database, "admin", model.RoleAdmin)
	mustStock(t, database, office.ID, item.ID, 5)

	tr, err := AdjustInventory(ctx, database, office.ID, item.ID, -2, "broken", user.ID)
	if err != nil {
		t.Fatalf("AdjustInventory: %v", err)
	}
	if tr.Type != model.TransactionAdjustment || tr.Quantity != -2 {
		t.Errorf("expected ADJUSTMENT of -2, got %s %d", tr.Type, tr.Quantity)
	}
	if n := quantityAt(t, database, office.ID, item.ID); n != 3 {
		t.Errorf("expected 3 after adjustment, got %d", n)
	}

	if _, err := AdjustInventory(ctx, database, office.ID, item.ID, -10, "", user.ID); !errors.Is(err, model.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if _, err := AdjustInventory(ctx, database, office.ID, item.ID, 0, "", user.ID); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation for zero delta, got %v", err)
	}
}
