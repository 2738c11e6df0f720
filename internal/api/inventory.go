package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/evidenca/internal/access"
)

// InventoryHandler handles office ledger endpoints.
type InventoryHandler struct {
	Svc *access.Service
}

type adjustRequest struct {
	ItemID   int64  `json:"item_id"`
	OfficeID int64  `json:"office_id"`
	Delta    int    `json:"delta"`
	Remarks  string `json:"remarks"`
}

// List handles GET /api/inventory: every ledger row in the caller's scope.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Svc.Inventory(r.Context(), callerOf(r))
	if err != nil {
		storeError(w, "list inventory", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(rows))
}

// Adjust handles POST /api/inventory/adjust.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ItemID <= 0 || req.OfficeID <= 0 || req.Delta == 0 {
		jsonError(w, http.StatusBadRequest, "item_id, office_id, and non-zero delta required")
		return
	}

	t, err := h.Svc.AdjustInventory(r.Context(), callerOf(r), req.OfficeID, req.ItemID, req.Delta, req.Remarks)
	if err != nil {
		storeError(w, "adjust inventory", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("inventory adjusted", "user", claims.Username, "office_id", req.OfficeID,
		"item_id", req.ItemID, "delta", req.Delta, "reference", t.ReferenceNumber)
	jsonResponse(w, http.StatusOK, t)
}
