package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/evidenca/internal/access"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// TransactionsHandler handles direct office-to-office transfers and their
// ledger.
type TransactionsHandler struct {
	DB  *sql.DB
	Svc *access.Service
}

type directTransferRequest struct {
	ItemID       int64  `json:"item_id"`
	FromOfficeID int64  `json:"from_office_id"`
	ToOfficeID   int64  `json:"to_office_id"`
	Quantity     int    `json:"quantity"`
	Remarks      string `json:"remarks"`
	Reason       string `json:"reason"`
}

func (req directTransferRequest) input() store.DirectTransferInput {
	return store.DirectTransferInput{
		ItemID:       req.ItemID,
		FromOfficeID: req.FromOfficeID,
		ToOfficeID:   req.ToOfficeID,
		Quantity:     req.Quantity,
		Remarks:      req.Remarks,
	}
}

// List handles GET /api/transactions. Filters, checked in this order:
// ?office_id= (with ?pending=true for pending only, or ?completed=sent or
// ?completed=received), ?item_id=, ?from_office_id=&to_office_id=, and
// ?from=&to= on the transaction date.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	var ids [4]int64
	for i, name := range []string{"office_id", "item_id", "from_office_id", "to_office_id"} {
		id, err := queryID(r, name)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		ids[i] = id
	}
	officeID, itemID, fromOfficeID, toOfficeID := ids[0], ids[1], ids[2], ids[3]

	from, to, ranged, err := dateRange(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	completed := r.URL.Query().Get("completed")
	if completed != "" && completed != "sent" && completed != "received" {
		jsonError(w, http.StatusBadRequest, "completed must be sent or received")
		return
	}
	if (fromOfficeID == 0) != (toOfficeID == 0) {
		jsonError(w, http.StatusBadRequest, "from_office_id and to_office_id go together")
		return
	}

	c := callerOf(r)
	var list []model.OfficeTransaction
	switch {
	case officeID != 0 && r.URL.Query().Get("pending") == "true":
		list, err = h.Svc.PendingTransactions(r.Context(), c, officeID)
	case officeID != 0 && completed == "sent":
		list, err = h.Svc.CompletedDistributions(r.Context(), c, officeID)
	case officeID != 0 && completed == "received":
		list, err = h.Svc.CompletedReturns(r.Context(), c, officeID)
	case officeID != 0:
		list, err = h.Svc.OfficeTransactions(r.Context(), c, officeID)
	case itemID != 0:
		list, err = h.Svc.ItemTransactions(r.Context(), c, itemID)
	case fromOfficeID != 0:
		list, err = h.Svc.TransactionsBetween(r.Context(), c, fromOfficeID, toOfficeID)
	case ranged:
		list, err = h.Svc.TransactionsByDateRange(r.Context(), c, from, to)
	default:
		list, err = h.Svc.Transactions(r.Context(), c)
	}
	if err != nil {
		storeError(w, "list transactions", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(list))
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	t, err := h.Svc.Transaction(r.Context(), callerOf(r), id)
	if err != nil {
		storeError(w, "get transaction", err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// GetByReference handles GET /api/transactions/reference/{ref}.
func (h *TransactionsHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	found, err := store.GetTransactionByReference(r.Context(), h.DB, r.PathValue("ref"))
	if err != nil {
		storeError(w, "get transaction", err)
		return
	}
	if found == nil {
		jsonError(w, http.StatusNotFound, "transaction not found")
		return
	}

	t, err := h.Svc.Transaction(r.Context(), callerOf(r), found.ID)
	if err != nil {
		storeError(w, "get transaction", err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// Distribute handles POST /api/transactions/distribute.
func (h *TransactionsHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req directTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.Svc.DistributeToChild(r.Context(), callerOf(r), req.input())
	if err != nil {
		storeError(w, "distribute to child office", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("transaction completed", "user", claims.Username, "type", t.Type,
		"reference", t.ReferenceNumber, "from_office_id", t.FromOfficeID,
		"to_office_id", t.ToOfficeID, "quantity", t.Quantity)
	jsonResponse(w, http.StatusCreated, t)
}

// Return handles POST /api/transactions/return.
func (h *TransactionsHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req directTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.Svc.ReturnToParent(r.Context(), callerOf(r), req.input(), req.Reason)
	if err != nil {
		storeError(w, "return to parent office", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("transaction completed", "user", claims.Username, "type", t.Type,
		"reference", t.ReferenceNumber, "from_office_id", t.FromOfficeID,
		"to_office_id", t.ToOfficeID, "quantity", t.Quantity)
	jsonResponse(w, http.StatusCreated, t)
}
