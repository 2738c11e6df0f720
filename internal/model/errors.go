package model

import "errors"

// Error kinds shared by the store, the access layer and the API. Detection
// sites wrap them with context; callers match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid request")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrForbidden           = errors.New("access denied")
	ErrConflict            = errors.New("conflict")
	ErrAllocationExhausted = errors.New("barcode allocation exhausted")
)
