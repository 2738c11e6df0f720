package model

import "time"

// OfficeInventory is the quantity of an item held by an office.
type OfficeInventory struct {
	OfficeID  int64     `json:"office_id"`
	ItemID    int64     `json:"item_id"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	ItemName   string `json:"item_name,omitempty"`
	ItemCode   string `json:"item_code,omitempty"`
	OfficeName string `json:"office_name,omitempty"`
}
