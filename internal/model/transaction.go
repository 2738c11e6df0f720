package model

import "time"

// OfficeTransaction records an auto-approved movement between two offices.
type OfficeTransaction struct {
	ID              int64      `json:"id"`
	ItemID          int64      `json:"item_id"`
	FromOfficeID    int64      `json:"from_office_id"`
	ToOfficeID      int64      `json:"to_office_id"`
	Type            string     `json:"transaction_type"`
	Quantity        int        `json:"quantity"`
	InitiatedBy     int64      `json:"initiated_by"`
	ApprovedBy      *int64     `json:"approved_by,omitempty"`
	Status          string     `json:"status"`
	TransactionDate time.Time  `json:"transaction_date"`
	ApprovedDate    *time.Time `json:"approved_date,omitempty"`
	Remarks         string     `json:"remarks,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ReferenceNumber string     `json:"reference_number"`
	CreatedAt       time.Time  `json:"created_at"`

	// Joined fields (not always populated).
	ItemName       string `json:"item_name,omitempty"`
	FromOfficeName string `json:"from_office_name,omitempty"`
	ToOfficeName   string `json:"to_office_name,omitempty"`
}

// Transaction types.
const (
	TransactionDistribution = "DISTRIBUTION"
	TransactionReturn       = "RETURN"
	TransactionPurchase     = "PURCHASE"
	TransactionAdjustment   = "ADJUSTMENT"
)

// Transaction statuses.
const (
	TransactionPending   = "PENDING"
	TransactionApproved  = "APPROVED"
	TransactionRejected  = "REJECTED"
	TransactionCompleted = "COMPLETED"
	TransactionCancelled = "CANCELLED"
)
