package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/evidenca/internal/db"
	"github.com/erazemk/evidenca/internal/model"
)

func TestRecordPurchaseConservesUnits(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	user := mustUser(t, database, "buyer", model.RoleUser)
	item := mustItem(t, database, "LAP", "Laptop", 0)

	p := mustPurchase(t, database, office.ID, user.ID, item.ID, 5, "10.00")

	if !p.TotalPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected total 50, got %s", p.TotalPrice)
	}
	if len(p.Items) != 1 || !p.Items[0].TotalPrice.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected one line totalling 50, got %+v", p.Items)
	}
	if n := poolQuantity(t, database, item.ID); n != 5 {
		t.Errorf("expected pool of 5, got %d", n)
	}

	instances, err := ListPurchaseInstances(ctx, database, p.ID)
	if err != nil {
		t.Fatalf("ListPurchaseInstances: %v", err)
	}
	if len(instances) != 5 {
		t.Fatalf("expected 5 instances, got %d", len(instances))
	}
	for _, in := range instances {
		if in.Status != model.InstanceInStock {
			t.Errorf("expected IN_STOCK, got %s", in.Status)
		}
		if !in.UnitPrice.Equal(decimal.RequireFromString("10")) {
			t.Errorf("expected unit price 10, got %s", in.UnitPrice)
		}
		if in.OwnerID != nil {
			t.Errorf("expected no owner without purchasing power, got %d", *in.OwnerID)
		}
	}
}

func TestRecordPurchaseOwnerNeedsPurchasingPower(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	user := mustUser(t, database, "buyer", model.RoleUser)
	item := mustItem(t, database, "LAP", "Laptop", 0)
	CreateDesignation(ctx, database, model.Designation{
		UserID: user.ID, OfficeID: office.ID, Title: "Procurement", PurchasingPower: true, IsPrimary: true,
	})

	p := mustPurchase(t, database, office.ID, user.ID, item.ID, 2, "499.99")

	instances, _ := ListPurchaseInstances(ctx, database, p.ID)
	for _, in := range instances {
		if in.OwnerID == nil || *in.OwnerID != user.ID {
			t.Errorf("expected owner %d, got %v", user.ID, in.OwnerID)
		}
	}
	if !p.TotalPrice.Equal(decimal.RequireFromString("999.98")) {
		t.Errorf("expected total 999.98, got %s", p.TotalPrice)
	}
}

func TestRecordPurchaseValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	user := mustUser(t, database, "buyer", model.RoleUser)
	item := mustItem(t, database, "LAP", "Laptop", 0)
	alloc := NewBarcodeAllocator(nil)

	tests := []struct {
		name  string
		lines []PurchaseLine
		want  error
	}{
		{"no lines", nil, model.ErrValidation},
		{"zero quantity", []PurchaseLine{{ItemID: item.ID, Quantity: 0}}, model.ErrValidation},
		{"negative price", []PurchaseLine{{ItemID: item.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}}, model.ErrValidation},
		{"unknown item", []PurchaseLine{{ItemID: 999, Quantity: 1}}, model.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := RecordPurchase(ctx, database, alloc, PurchaseInput{
				OfficeID: office.ID, PurchasedBy: user.ID, Lines: tc.lines,
			})
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if n := poolQuantity(t, database, item.ID); n != 0 {
		t.Errorf("expected pool untouched, got %d", n)
	}
	list, _ := ListPurchases(ctx, database, 0)
	if len(list) != 0 {
		t.Errorf("expected no purchases, got %d", len(list))
	}
}

func TestUpdatePurchaseNetsQuantities(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	user := mustUser(t, database, "buyer", model.RoleUser)
	laptop := mustItem(t, database, "LAP", "Laptop", 0)
	mouse := mustItem(t, database, "MOU", "Mouse", 0)

	p := mustPurchase(t, database, office.ID, user.ID, laptop.ID, 5, "10")

	updated, err := UpdatePurchase(ctx, database, NewBarcodeAllocator(nil), p.ID, PurchaseInput{
		VendorName:  "Other vendor",
		OfficeID:    office.ID,
		PurchasedBy: user.ID,
		Lines: []PurchaseLine{
			{ItemID: laptop.ID, Quantity: 3, UnitPrice: decimal.NewFromInt(10)},
			{ItemID: mouse.ID, Quantity: 2, UnitPrice: decimal.RequireFromString("2.5")},
		},
	})
	if err != nil {
		t.Fatalf("UpdatePurchase: %v", err)
	}

	if n := poolQuantity(t, database, laptop.ID); n != 3 {
		t.Errorf("expected 3 laptops in pool, got %d", n)
	}
	if n := poolQuantity(t, database, mouse.ID); n != 2 {
		t.Errorf("expected 2 mice in pool, got %d", n)
	}
	if !updated.TotalPrice.Equal(decimal.NewFromInt(35)) {
		t.Errorf("expected total 35, got %s", updated.TotalPrice)
	}
	if len(updated.Items) != 2 {
		t.Errorf("expected 2 lines, got %d", len(updated.Items))
	}
	if updated.VendorName != "Other vendor" {
		t.Errorf("expected vendor to change, got %q", updated.VendorName)
	}

	// Old instances stay on record next to the new ones.
	instances, _ := ListPurchaseInstances(ctx, database, p.ID)
	if len(instances) != 10 {
		t.Errorf("expected 10 instances, got %d", len(instances))
	}
}

func TestUpdatePurchaseCannotUndoAllocatedStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	user := mustUser(t, database, "buyer", model.RoleUser)
	item := mustItem(t, database, "LAP", "Laptop", 0)
	p := mustPurchase(t, database, office.ID, user.ID, item.ID, 5, "10")

	_, err := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: office.ID, Movement: Allocation{}, Quantity: 4,
	})
	if err != nil {
		t.Fatalf("CreateDistribution: %v", err)
	}

	_, err = UpdatePurchase(ctx, database, NewBarcodeAllocator(nil), p.ID, PurchaseInput{
		OfficeID: office.ID, PurchasedBy: user.ID,
		Lines: []PurchaseLine{{ItemID: item.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(10)}},
	})
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	got, _ := GetPurchase(ctx, database, p.ID)
	if len(got.Items) != 1 || got.Items[0].Quantity != 5 {
		t.Errorf("expected purchase unchanged, got %+v", got.Items)
	}
}

func TestDeletePurchase(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	user := mustUser(t, database, "buyer", model.RoleUser)
	item := mustItem(t, database, "LAP", "Laptop", 2)
	p := mustPurchase(t, database, office.ID, user.ID, item.ID, 5, "10")

	if err := DeletePurchase(ctx, database, p.ID); err != nil {
		t.Fatalf("DeletePurchase: %v", err)
	}
	if n := poolQuantity(t, database, item.ID); n != 2 {
		t.Errorf("expected pool back at 2, got %d", n)
	}
	if got, _ := GetPurchase(ctx, database, p.ID); got != nil {
		t.Error("expected deleted purchase to be hidden")
	}
	instances, _ := ListPurchaseInstances(ctx, database, p.ID)
	if len(instances) != 5 {
		t.Errorf("expected instances to remain, got %d", len(instances))
	}

	if err := DeletePurchase(ctx, database, p.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeletePurchaseAfterAllocationFails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	office := mustOffice(t, database, "Root", "ROOT", nil)
	user := mustUser(t, database, "buyer", model.RoleUser)
	item := mustItem(t, database, "LAP", "Laptop", 0)
	p := mustPurchase(t, database, office.ID, user.ID, item.ID, 5, "10")

	CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: office.ID, Movement: Allocation{}, Quantity: 1,
	})

	if err := DeletePurchase(ctx, database, p.ID); !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got, _ := GetPurchase(ctx, database, p.ID); got == nil {
		t.Error("expected purchase to stay active")
	}
}
