package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/evidenca/internal/db"
	"github.com/erazemk/evidenca/internal/model"
)

func TestAllocationAcceptDoesNotDoubleCredit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	root := mustOffice(t, database, "Root", "ROOT", nil)
	b := mustOffice(t, database, "B", "B", &root.ID)
	user := mustUser(t, database, "buyer", model.RoleUser)
	chair := mustItem(t, database, "CHAIR", "Chair", 0)
	mustPurchase(t, database, root.ID, user.ID, chair.ID, 100, "25")

	d, err := CreateDistribution(ctx, database, DistributionInput{
		ItemID: chair.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 20,
	})
	if err != nil {
		t.Fatalf("CreateDistribution: %v", err)
	}
	if d.Status != model.DistributionPending {
		t.Errorf("expected PENDING, got %s", d.Status)
	}
	if n := poolQuantity(t, database, chair.ID); n != 80 {
		t.Errorf("expected pool 80, got %d", n)
	}
	if n := quantityAt(t, database, b.ID, chair.ID); n != 20 {
		t.Errorf("expected B to hold 20, got %d", n)
	}

	accepted, err := AcceptDistribution(ctx, database, d.ID, nil)
	if err != nil {
		t.Fatalf("AcceptDistribution: %v", err)
	}
	if accepted.Status != model.DistributionApproved {
		t.Errorf("expected APPROVED, got %s", accepted.Status)
	}
	if n := quantityAt(t, database, b.ID, chair.ID); n != 20 {
		t.Errorf("expected B to still hold 20 after accept, got %d", n)
	}

	_, err = AcceptDistribution(ctx, database, d.ID, nil)
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict on second accept, got %v", err)
	}
	if n := quantityAt(t, database, b.ID, chair.ID); n != 20 {
		t.Errorf("expected B to hold 20 after rejected accept, got %d", n)
	}
}

func TestAllocationMovesInstances(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	root := mustOffice(t, database, "Root", "ROOT", nil)
	b := mustOffice(t, database, "B", "B", &root.ID)
	user := mustUser(t, database, "buyer", model.RoleUser)
	item := mustItem(t, database, "LAP", "Laptop", 0)
	mustPurchase(t, database, root.ID, user.ID, item.ID, 5, "10")

	d, _ := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 3,
	})

	held, err := ListDistributionInstances(ctx, database, d.ID)
	if err != nil {
		t.Fatalf("ListDistributionInstances: %v", err)
	}
	if len(held) != 3 {
		t.Fatalf("expected 3 instances at B, got %d", len(held))
	}
	for _, in := range held {
		if in.DistributionID == nil || *in.DistributionID != d.ID {
			t.Errorf("expected instance tagged with distribution %d, got %v", d.ID, in.DistributionID)
		}
	}

	if err := DeleteDistribution(ctx, database, d.ID); err != nil {
		t.Fatalf("DeleteDistribution: %v", err)
	}
	inStock, _ := ListItemInstances(ctx, database, item.ID, model.InstanceInStock)
	if len(inStock) != 5 {
		t.Errorf("expected all 5 instances back in stock, got %d", len(inStock))
	}
	if n := poolQuantity(t, database, item.ID); n != 5 {
		t.Errorf("expected pool 5, got %d", n)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 0 {
		t.Errorf("expected B empty, got %d", n)
	}
}

func TestTransferDistribution(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustOffice(t, database, "A", "A", nil)
	b := mustOffice(t, database, "B", "B", nil)
	item := mustItem(t, database, "CH", "Chair", 0)
	mustStock(t, database, a.ID, item.ID, 10)

	d, err := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Transfer{From: a.ID}, Quantity: 4,
	})
	if err != nil {
		t.Fatalf("CreateDistribution: %v", err)
	}
	if d.FromOfficeID == nil || *d.FromOfficeID != a.ID {
		t.Errorf("expected source office %d, got %v", a.ID, d.FromOfficeID)
	}
	if n := quantityAt(t, database, a.ID, item.ID); n != 6 {
		t.Errorf("expected A 6, got %d", n)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 4 {
		t.Errorf("expected B 4, got %d", n)
	}

	_, err = CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Transfer{From: a.ID}, Quantity: 7,
	})
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	list, _ := ListDistributions(ctx, database, "")
	if len(list) != 1 {
		t.Errorf("expected failed transfer to leave no row, got %d rows", len(list))
	}
	if n := quantityAt(t, database, a.ID, item.ID); n != 6 {
		t.Errorf("expected A unchanged at 6, got %d", n)
	}

	_, err = CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: a.ID, Movement: Transfer{From: a.ID}, Quantity: 1,
	})
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation for same office, got %v", err)
	}
}

func TestMovementCreditsOnAccept(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustOffice(t, database, "A", "A", nil)
	b := mustOffice(t, database, "B", "B", nil)
	item := mustItem(t, database, "CH", "Chair", 10)
	emp, _ := CreateEmployee(ctx, database, "Ana", &b.ID)

	d, err := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID,
		Movement: EmployeeMovement{From: a.ID, Employee: &emp.ID}, Quantity: 3,
	})
	if err != nil {
		t.Fatalf("CreateDistribution: %v", err)
	}
	if d.EmployeeID == nil || *d.EmployeeID != emp.ID {
		t.Errorf("expected employee %d, got %v", emp.ID, d.EmployeeID)
	}
	if n := poolQuantity(t, database, item.ID); n != 7 {
		t.Errorf("expected pool 7, got %d", n)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 0 {
		t.Errorf("expected B empty before accept, got %d", n)
	}

	if _, err := AcceptDistribution(ctx, database, d.ID, nil); err != nil {
		t.Fatalf("AcceptDistribution: %v", err)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 3 {
		t.Errorf("expected B 3 after accept, got %d", n)
	}
	if n := quantityAt(t, database, a.ID, item.ID); n != 0 {
		t.Errorf("expected A untouched, got %d", n)
	}
}

func TestAcceptChecksAccess(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b := mustOffice(t, database, "B", "B", nil)
	item := mustItem(t, database, "CH", "Chair", 10)
	d, _ := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Return{From: b.ID + 100}, Quantity: 1,
	})
	if d != nil {
		t.Fatal("expected unknown source office to be rejected")
	}

	d, err := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 1,
	})
	if err != nil {
		t.Fatalf("CreateDistribution: %v", err)
	}

	deny := func(int64) bool { return false }
	if _, err := AcceptDistribution(ctx, database, d.ID, deny); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	got, _ := GetDistribution(ctx, database, d.ID)
	if got.Status != model.DistributionPending {
		t.Errorf("expected PENDING after forbidden accept, got %s", got.Status)
	}

	if _, err := AcceptDistribution(ctx, database, 999, nil); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDistributionReappliesEffects(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b := mustOffice(t, database, "B", "B", nil)
	item := mustItem(t, database, "CH", "Chair", 100)

	d, _ := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 20,
	})

	qty := 30
	if _, err := UpdateDistribution(ctx, database, d.ID, DistributionPatch{Quantity: &qty}); err != nil {
		t.Fatalf("UpdateDistribution: %v", err)
	}
	if n := poolQuantity(t, database, item.ID); n != 70 {
		t.Errorf("expected pool 70, got %d", n)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 30 {
		t.Errorf("expected B 30, got %d", n)
	}

	tooMany := 200
	_, err := UpdateDistribution(ctx, database, d.ID, DistributionPatch{Quantity: &tooMany})
	if !errors.Is(err, model.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 30 {
		t.Errorf("expected failed update to leave B at 30, got %d", n)
	}

	rejected := model.DistributionRejected
	if _, err := UpdateDistribution(ctx, database, d.ID, DistributionPatch{Status: &rejected}); err != nil {
		t.Fatalf("rejecting: %v", err)
	}
	if n := poolQuantity(t, database, item.ID); n != 100 {
		t.Errorf("expected pool restored to 100, got %d", n)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 0 {
		t.Errorf("expected B 0 after reject, got %d", n)
	}

	_, err = UpdateDistribution(ctx, database, d.ID, DistributionPatch{Quantity: &qty})
	if !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict on rejected distribution, got %v", err)
	}
	if _, err := AcceptDistribution(ctx, database, d.ID, nil); !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict accepting rejected distribution, got %v", err)
	}
}

func TestUpdateDistributionChangesType(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustOffice(t, database, "A", "A", nil)
	b := mustOffice(t, database, "B", "B", nil)
	item := mustItem(t, database, "CH", "Chair", 10)
	mustStock(t, database, a.ID, item.ID, 5)

	d, _ := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 2,
	})

	updated, err := UpdateDistribution(ctx, database, d.ID, DistributionPatch{Movement: Transfer{From: a.ID}})
	if err != nil {
		t.Fatalf("UpdateDistribution: %v", err)
	}
	if updated.TransferType != model.TransferTransfer {
		t.Errorf("expected TRANSFER, got %s", updated.TransferType)
	}
	if n := poolQuantity(t, database, item.ID); n != 10 {
		t.Errorf("expected pool back at 10, got %d", n)
	}
	if n := quantityAt(t, database, a.ID, item.ID); n != 3 {
		t.Errorf("expected A 3, got %d", n)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 2 {
		t.Errorf("expected B 2, got %d", n)
	}
}

func TestDeleteApprovedMovement(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := mustOffice(t, database, "A", "A", nil)
	b := mustOffice(t, database, "B", "B", nil)
	item := mustItem(t, database, "CH", "Chair", 10)

	d, _ := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Return{From: a.ID}, Quantity: 4,
	})
	AcceptDistribution(ctx, database, d.ID, nil)

	if err := DeleteDistribution(ctx, database, d.ID); err != nil {
		t.Fatalf("DeleteDistribution: %v", err)
	}
	if n := poolQuantity(t, database, item.ID); n != 10 {
		t.Errorf("expected pool 10, got %d", n)
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 0 {
		t.Errorf("expected B 0, got %d", n)
	}
	if got, _ := GetDistribution(ctx, database, d.ID); got != nil {
		t.Error("expected distribution to be gone")
	}
}

func TestDeleteReleasesInstancesMatchingLedger(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	root := mustOffice(t, database, "Root", "ROOT", nil)
	b := mustOffice(t, database, "B", "B", &root.ID)
	c := mustOffice(t, database, "C", "C", &b.ID)
	user := mustUser(t, database, "clerk", model.RoleAdmin)
	item := mustItem(t, database, "LAP", "Laptop", 0)
	mustPurchase(t, database, root.ID, user.ID, item.ID, 10, "100")

	first, err := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 5,
	})
	if err != nil {
		t.Fatalf("CreateDistribution: %v", err)
	}
	if _, err := DistributeToChild(ctx, database, DirectTransferInput{
		ItemID: item.ID, FromOfficeID: b.ID, ToOfficeID: c.ID, Quantity: 5, InitiatedBy: user.ID,
	}); err != nil {
		t.Fatalf("DistributeToChild: %v", err)
	}
	if _, err := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 5,
	}); err != nil {
		t.Fatalf("CreateDistribution: %v", err)
	}

	// The instances first sent to B now sit at C; B holds the second batch.
	if err := DeleteDistribution(ctx, database, first.ID); err != nil {
		t.Fatalf("DeleteDistribution: %v", err)
	}

	if n := poolQuantity(t, database, item.ID); n != 5 {
		t.Errorf("expected pool 5, got %d", n)
	}
	inStock, _ := ListItemInstances(ctx, database, item.ID, model.InstanceInStock)
	if len(inStock) != 5 {
		t.Errorf("expected 5 IN_STOCK instances, got %d", len(inStock))
	}
	if n := quantityAt(t, database, b.ID, item.ID); n != 0 {
		t.Errorf("expected B 0, got %d", n)
	}
	atB, _ := ListOfficeInstances(ctx, database, b.ID)
	if len(atB) != 0 {
		t.Errorf("expected no instances at B, got %d", len(atB))
	}
	atC, _ := ListOfficeInstances(ctx, database, c.ID)
	if len(atC) != 5 {
		t.Errorf("expected 5 instances at C, got %d", len(atC))
	}
}

func TestDeleteReleasesTaggedInstancesFirst(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	root := mustOffice(t, database, "Root", "ROOT", nil)
	b := mustOffice(t, database, "B", "B", &root.ID)
	user := mustUser(t, database, "buyer", model.RoleUser)
	item := mustItem(t, database, "LAP", "Laptop", 0)
	mustPurchase(t, database, root.ID, user.ID, item.ID, 6, "10")

	first, _ := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 2,
	})
	second, _ := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 2,
	})

	if err := DeleteDistribution(ctx, database, second.ID); err != nil {
		t.Fatalf("DeleteDistribution: %v", err)
	}

	atB, _ := ListOfficeInstances(ctx, database, b.ID)
	if len(atB) != 2 {
		t.Fatalf("expected 2 instances at B, got %d", len(atB))
	}
	for _, in := range atB {
		if in.DistributionID == nil || *in.DistributionID != first.ID {
			t.Errorf("expected instance %s to stay with distribution %d, got %v", in.Barcode, first.ID, in.DistributionID)
		}
	}
}

func TestDistributionValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b := mustOffice(t, database, "B", "B", nil)
	item := mustItem(t, database, "CH", "Chair", 10)

	tests := []struct {
		name string
		in   DistributionInput
		want error
	}{
		{"missing type", DistributionInput{ItemID: item.ID, ToOfficeID: b.ID, Quantity: 1}, model.ErrValidation},
		{"zero quantity", DistributionInput{ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}}, model.ErrValidation},
		{"bad date", DistributionInput{ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 1, DistributedAt: "05.03.2026"}, model.ErrValidation},
		{"unknown item", DistributionInput{ItemID: 999, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 1}, model.ErrNotFound},
		{"unknown office", DistributionInput{ItemID: item.ID, ToOfficeID: 999, Movement: Allocation{}, Quantity: 1}, model.ErrNotFound},
		{"too many", DistributionInput{ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 11}, model.ErrInsufficientStock},
		{"direct movement", DistributionInput{ItemID: item.ID, ToOfficeID: b.ID, Movement: DirectDistribution{From: b.ID}, Quantity: 1}, model.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := CreateDistribution(ctx, database, tc.in); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	d, err := CreateDistribution(ctx, database, DistributionInput{
		ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 1, DistributedAt: "2026-03-05",
	})
	if err != nil {
		t.Fatalf("CreateDistribution with date: %v", err)
	}
	if d.DistributedAt == nil || d.DistributedAt.Day() != 5 {
		t.Errorf("expected distributed-at on the 5th, got %v", d.DistributedAt)
	}
}

func TestCountDistributionsByStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	b := mustOffice(t, database, "B", "B", nil)
	item := mustItem(t, database, "CH", "Chair", 10)
	d1, _ := CreateDistribution(ctx, database, DistributionInput{ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 1})
	CreateDistribution(ctx, database, DistributionInput{ItemID: item.ID, ToOfficeID: b.ID, Movement: Allocation{}, Quantity: 1})
	AcceptDistribution(ctx, database, d1.ID, nil)

	counts, err := CountDistributionsByStatus(ctx, database)
	if err != nil {
		t.Fatalf("CountDistributionsByStatus: %v", err)
	}
	if counts[model.DistributionPending] != 1 || counts[model.DistributionApproved] != 1 || counts[model.DistributionRejected] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}

	recent, _ := RecentDistributions(ctx, database, 1)
	if len(recent) != 1 {
		t.Errorf("expected 1 recent distribution, got %d", len(recent))
	}
}
