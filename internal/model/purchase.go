package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is a bulk acquisition from a vendor. TotalPrice is always the sum
// of its line totals.
type Purchase struct {
	ID            int64           `json:"id"`
	VendorName    string          `json:"vendor_name"`
	VendorContact string          `json:"vendor_contact,omitempty"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Remarks       string          `json:"remarks,omitempty"`
	OfficeID      int64           `json:"office_id"`
	PurchasedBy   int64           `json:"purchased_by"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Items []PurchaseItem `json:"items"`
}

// PurchaseItem is one line of a purchase.
type PurchaseItem struct {
	ID         int64           `json:"id"`
	PurchaseID int64           `json:"purchase_id"`
	ItemID     int64           `json:"item_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`

	// Joined fields (not always populated).
	ItemName string `json:"item_name,omitempty"`
	ItemCode string `json:"item_code,omitempty"`
}
