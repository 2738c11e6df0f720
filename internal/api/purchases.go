package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/evidenca/internal/access"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// PurchasesHandler handles purchase intake endpoints.
type PurchasesHandler struct {
	Svc *access.Service
}

type purchaseLineRequest struct {
	ItemID    int64           `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type purchaseRequest struct {
	VendorName    string                `json:"vendor_name"`
	VendorContact string                `json:"vendor_contact"`
	PurchaseDate  string                `json:"purchase_date"`
	InvoiceNumber string                `json:"invoice_number"`
	Remarks       string                `json:"remarks"`
	OfficeID      int64                 `json:"office_id"`
	Items         []purchaseLineRequest `json:"items"`
}

// input converts the request. An empty purchase date means today.
func (req purchaseRequest) input() (store.PurchaseInput, error) {
	in := store.PurchaseInput{
		VendorName:    req.VendorName,
		VendorContact: req.VendorContact,
		InvoiceNumber: req.InvoiceNumber,
		Remarks:       req.Remarks,
		OfficeID:      req.OfficeID,
	}
	if req.PurchaseDate != "" {
		d, err := time.Parse(time.DateOnly, req.PurchaseDate)
		if err != nil {
			return in, err
		}
		in.PurchaseDate = d
	}
	for _, line := range req.Items {
		in.Lines = append(in.Lines, store.PurchaseLine{
			ItemID:    line.ItemID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return in, nil
}

// List handles GET /api/purchases. Filters: ?from=&to= on the purchase date
// or ?recent=N for the latest N.
func (h *PurchasesHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to, ranged, err := dateRange(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	recent, err := queryID(r, "recent")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	c := callerOf(r)
	var list []model.Purchase
	switch {
	case ranged:
		list, err = h.Svc.PurchasesByDateRange(r.Context(), c, from, to)
	case recent != 0:
		list, err = h.Svc.RecentPurchases(r.Context(), c, int(recent))
	default:
		list, err = h.Svc.Purchases(r.Context(), c)
	}
	if err != nil {
		storeError(w, "list purchases", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(list))
}

// Get handles GET /api/purchases/{id}.
func (h *PurchasesHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	jsonResponse(w, http.StatusOK, p)
}

// Create handles POST /api/purchases.
func (h *PurchasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.input()
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid purchase_date")
		return
	}

	p, err := h.Svc.RecordPurchase(r.Context(), callerOf(r), in)
	if err != nil {
		storeError(w, "record purchase", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("purchase recorded", "user", claims.Username, "purchase_id", p.ID,
		"office_id", p.OfficeID, "lines", len(p.Items), "total", p.TotalPrice.StringFixed(2))
	jsonResponse(w, http.StatusCreated, p)
}

// Update handles PUT /api/purchases/{id}.
func (h *PurchasesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid purchase id")
		return
	}

	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.input()
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid purchase_date")
		return
	}

	p, err := h.Svc.UpdatePurchase(r.Context(), callerOf(r), id, in)
	if err != nil {
		storeError(w, "update purchase", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("purchase updated", "user", claims.Username, "purchase_id", p.ID,
		"total", p.TotalPrice.StringFixed(2))
	jsonResponse(w, http.StatusOK, p)
}

// Delete handles DELETE /api/purchases/{id}.
func (h *PurchasesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid purchase id")
		return
	}

	if err := h.Svc.DeletePurchase(r.Context(), callerOf(r), id); err != nil {
		storeError(w, "delete purchase", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("purchase deleted", "user", claims.Username, "purchase_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "purchase deleted"})
}

