package api

import (
	"bytes"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/evidenca/internal/access"
	"github.com/erazemk/evidenca/internal/labels"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// InstancesHandler handles barcoded item instances and their labels.
type InstancesHandler struct {
	DB  *sql.DB
	Svc *access.Service
}

type markInstanceRequest struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks"`
}

// visible checks that a distributed instance sits in an office the caller
// may act on. Instances still in stock are visible to everyone.
func (h *InstancesHandler) visible(r *http.Request, in *model.ItemInstance) error {
	if in.DistributedToOfficeID == nil {
		return nil
	}
	scope, err := h.Svc.Scope(r.Context(), callerOf(r))
	if err != nil {
		return err
	}
	return scope.Require(*in.DistributedToOfficeID)
}

func (h *InstancesHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.ItemInstance, bool) {
	barcode := r.PathValue("barcode")
	in, err := store.GetInstanceByBarcode(r.Context(), h.DB, barcode)
	if err != nil {
		storeError(w, "get instance", err)
		return nil, false
	}
	if in == nil {
		jsonError(w, http.StatusNotFound, "instance not found")
		return nil, false
	}
	if err := h.visible(r, in); err != nil {
		storeError(w, "get instance", err)
		return nil, false
	}
	return in, true
}

// Get handles GET /api/instances/{barcode}.
func (h *InstancesHandler) Get(w http.ResponseWriter, r *http.Request) {
	in, ok := h.lookup(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, in)
}

// Label handles GET /api/instances/{barcode}/label: a PNG Code 128 label.
func (h *InstancesHandler) Label(w http.ResponseWriter, r *http.Request) {
	in, ok := h.lookup(w, r)
	if !ok {
		return
	}

	data, err := labels.PNG(in.Barcode)
	if err != nil {
		slog.Error("failed to render label", "barcode", in.Barcode, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to render label")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Write(data)
}

// Mark handles PUT /api/instances/{barcode}/status.
func (h *InstancesHandler) Mark(w http.ResponseWriter, r *http.Request) {
	in, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req markInstanceRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := store.MarkInstance(r.Context(), h.DB, in.ID, req.Status, req.Remarks)
	if err != nil {
		storeError(w, "mark instance", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("instance marked", "user", claims.Username, "barcode", in.Barcode, "status", req.Status)
	jsonResponse(w, http.StatusOK, updated)
}

// PurchaseLabels handles GET /api/purchases/{id}/labels: a PDF sheet with a
// label for every instance minted by the purchase.
func (h *InstancesHandler) PurchaseLabels(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid purchase id")
		return
	}

	p, err := h.Svc.Purchase(r.Context(), callerOf(r), id)
	if err != nil {
		storeError(w, "get purchase", err)
		return
	}

	instances, err := store.ListPurchaseInstances(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, "list purchase instances", err)
		return
	}
	if len(instances) == 0 {
		jsonError(w, http.StatusNotFound, "purchase has no instances")
		return
	}

	sheet := make([]labels.Label, 0, len(instances))
	for _, in := range instances {
		sheet = append(sheet, labels.Label{Barcode: in.Barcode, Caption: in.ItemName})
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Purchase %d - %s", p.ID, p.VendorName)
	if err := labels.WriteSheet(&buf, title, sheet); err != nil {
		slog.Error("failed to render label sheet", "purchase_id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to render label sheet")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="purchase-%d-labels.pdf"`, id))
	w.Write(buf.Bytes())
}
