package model

import "time"

// Distribution is an approval-gated request moving stock to an office.
// OfficeID is kept for older clients and always equals ToOfficeID.
type Distribution struct {
	ID            int64      `json:"id"`
	ItemID        int64      `json:"item_id"`
	OfficeID      int64      `json:"office_id"`
	FromOfficeID  *int64     `json:"from_office_id,omitempty"`
	ToOfficeID    int64      `json:"to_office_id"`
	EmployeeID    *int64     `json:"employee_id,omitempty"`
	UserID        *int64     `json:"user_id,omitempty"`
	Quantity      int        `json:"quantity"`
	Status        string     `json:"status"`
	TransferType  string     `json:"transfer_type"`
	DistributedAt *time.Time `json:"distributed_at,omitempty"`
	Remarks       string     `json:"remarks,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Joined fields (not always populated).
	ItemName       string `json:"item_name,omitempty"`
	FromOfficeName string `json:"from_office_name,omitempty"`
	ToOfficeName   string `json:"to_office_name,omitempty"`
}

// Distribution statuses.
const (
	DistributionPending  = "PENDING"
	DistributionApproved = "APPROVED"
	DistributionRejected = "REJECTED"
)

// Transfer types.
const (
	TransferAllocation = "ALLOCATION"
	TransferTransfer   = "TRANSFER"
	TransferMovement   = "MOVEMENT"
	TransferReturn     = "RETURN"
)

// ValidDistributionStatus reports whether s is a known distribution status.
func ValidDistributionStatus(s string) bool {
	return s == DistributionPending || s == DistributionApproved || s == DistributionRejected
}
