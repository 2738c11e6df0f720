package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/evidenca/internal/model"
)

func mustOffice(t *testing.T, db *sql.DB, name, code string, parentID *int64) *model.Office {
	t.Helper()
	typ := model.OfficeTypeOffice
	if parentID == nil {
		typ = model.OfficeTypeTopLevel
	}
	o, err := CreateOffice(context.Background(), db, model.Office{
		Name: name, Code: code, Type: typ, ParentID: parentID,
	})
	if err != nil {
		t.Fatalf("CreateOffice %s: %v", code, err)
	}
	return o
}

func mustItem(t *testing.T, db *sql.DB, code, name string, quantity int) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), db, model.Item{Code: code, Name: name, Quantity: quantity})
	if err != nil {
		t.Fatalf("CreateItem %s: %v", code, err)
	}
	return item
}

func mustUser(t *testing.T, db *sql.DB, username, role string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), db, username, "", "hash", role)
	if err != nil {
		t.Fatalf("CreateUser %s: %v", username, err)
	}
	return u
}

// mustStock seeds office stock directly through the ledger.
func mustStock(t *testing.T, db *sql.DB, officeID, itemID int64, quantity int) {
	t.Helper()
	if err := adjustStock(context.Background(), db, officeID, itemID, quantity); err != nil {
		t.Fatalf("adjustStock: %v", err)
	}
}

func mustPurchase(t *testing.T, db *sql.DB, officeID, userID, itemID int64, quantity int, price string) *model.Purchase {
	t.Helper()
	p, err := RecordPurchase(context.Background(), db, NewBarcodeAllocator(nil), PurchaseInput{
		VendorName:  "Vendor",
		OfficeID:    officeID,
		PurchasedBy: userID,
		Lines:       []PurchaseLine{{ItemID: itemID, Quantity: quantity, UnitPrice: decimal.RequireFromString(price)}},
	})
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	return p
}

func quantityAt(t *testing.T, db *sql.DB, officeID, itemID int64) int {
	t.Helper()
	n, err := QuantityAt(context.Background(), db, officeID, itemID)
	if err != nil {
		t.Fatalf("QuantityAt: %v", err)
	}
	return n
}

func poolQuantity(t *testing.T, db *sql.DB, itemID int64) int {
	t.Helper()
	item, err := GetItem(context.Background(), db, itemID)
	if err != nil || item == nil {
		t.Fatalf("GetItem %d: %v", itemID, err)
	}
	return item.Quantity
}
