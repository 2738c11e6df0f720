package model

import "time"

// Office is a node in the organizational hierarchy.
type Office struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Code        string    `json:"code"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	Description string    `json:"description,omitempty"`
	OrderIndex  int       `json:"order_index"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Office types.
const (
	OfficeTypeTopLevel   = "top_level"
	OfficeTypeFaculty    = "faculty"
	OfficeTypeDepartment = "department"
	OfficeTypeInstitute  = "institute"
	OfficeTypeSection    = "section"
	OfficeTypeOffice     = "office"
)

// ValidOfficeType reports whether t is a known office type.
func ValidOfficeType(t string) bool {
	switch t {
	case OfficeTypeTopLevel, OfficeTypeFaculty, OfficeTypeDepartment,
		OfficeTypeInstitute, OfficeTypeSection, OfficeTypeOffice:
		return true
	}
	return false
}
