package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemInstance is one physical unit of an item, identified by its barcode.
type ItemInstance struct {
	ID                    int64           `json:"id"`
	ItemID                int64           `json:"item_id"`
	PurchaseID            *int64          `json:"purchase_id,omitempty"`
	Barcode               string          `json:"barcode"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	Status                string          `json:"status"`
	DistributedToOfficeID *int64          `json:"distributed_to_office_id,omitempty"`
	DistributedAt         *time.Time      `json:"distributed_at,omitempty"`
	OwnerID               *int64          `json:"owner_id,omitempty"`
	DistributionID        *int64          `json:"distribution_id,omitempty"`
	Remarks               string          `json:"remarks,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`

	// Joined fields (not always populated).
	ItemName string `json:"item_name,omitempty"`
}

// Instance statuses.
const (
	InstanceInStock     = "IN_STOCK"
	InstanceDistributed = "DISTRIBUTED"
	InstanceDamaged     = "DAMAGED"
	InstanceLost        = "LOST"
)

// ValidInstanceStatus reports whether s is a known instance status.
func ValidInstanceStatus(s string) bool {
	switch s {
	case InstanceInStock, InstanceDistributed, InstanceDamaged, InstanceLost:
		return true
	}
	return false
}
