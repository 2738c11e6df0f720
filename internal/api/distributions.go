package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/evidenca/internal/access"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// DistributionsHandler handles the approval-gated transfer workflow.
type DistributionsHandler struct {
	Svc *access.Service
}

type createDistributionRequest struct {
	ItemID        int64  `json:"item_id"`
	ToOfficeID    int64  `json:"to_office_id"`
	OfficeID      int64  `json:"office_id"`
	TransferType  string `json:"transfer_type"`
	FromOfficeID  *int64 `json:"from_office_id"`
	EmployeeID    *int64 `json:"employee_id"`
	Quantity      int    `json:"quantity"`
	DistributedAt string `json:"distributed_at"`
	Remarks       string `json:"remarks"`
}

type updateDistributionRequest struct {
	ItemID        *int64  `json:"item_id"`
	ToOfficeID    *int64  `json:"to_office_id"`
	TransferType  *string `json:"transfer_type"`
	FromOfficeID  *int64  `json:"from_office_id"`
	EmployeeID    *int64  `json:"employee_id"`
	UserID        *int64  `json:"user_id"`
	Quantity      *int    `json:"quantity"`
	DistributedAt *string `json:"distributed_at"`
	Remarks       *string `json:"remarks"`
	Status        *string `json:"status"`
}

// List handles GET /api/distributions, optionally ?status=, ?from=&to= or
// ?recent=N.
func (h *DistributionsHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to, ranged, err := dateRange(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidDistributionStatus(status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	recent, err := queryID(r, "recent")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var list []model.Distribution
	switch {
	case ranged:
		list, err = h.Svc.DistributionsByDateRange(r.Context(), callerOf(r), from, to)
	case recent != 0:
		list, err = h.Svc.RecentDistributions(r.Context(), callerOf(r), int(recent))
	default:
		list, err = h.Svc.Distributions(r.Context(), callerOf(r), status)
	}
	if err != nil {
		storeError(w, "list distributions", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(list))
}

// Counts handles GET /api/distributions/counts: distributions in scope by status.
func (h *DistributionsHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Svc.DistributionCounts(r.Context(), callerOf(r))
	if err != nil {
		storeError(w, "count distributions", err)
		return
	}
	jsonResponse(w, http.StatusOK, counts)
}

// Get handles GET /api/distributions/{id}.
func (h *DistributionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid distribution id")
		return
	}

	d, err := h.Svc.Distribution(r.Context(), callerOf(r), id)
	if err != nil {
		storeError(w, "get distribution", err)
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

// Instances handles GET /api/distributions/{id}/instances.
func (h *DistributionsHandler) Instances(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid distribution id")
		return
	}

	list, err := h.Svc.DistributionInstances(r.Context(), callerOf(r), id)
	if err != nil {
		storeError(w, "list distribution instances", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(list))
}

// Create handles POST /api/distributions.
func (h *DistributionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDistributionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// office_id is accepted from older clients.
	toOfficeID := req.ToOfficeID
	if toOfficeID == 0 {
		toOfficeID = req.OfficeID
	}

	m, err := store.NewMovement(req.TransferType, req.FromOfficeID, req.EmployeeID)
	if err != nil {
		storeError(w, "create distribution", err)
		return
	}

	d, err := h.Svc.CreateDistribution(r.Context(), callerOf(r), store.DistributionInput{
		ItemID:        req.ItemID,
		ToOfficeID:    toOfficeID,
		Movement:      m,
		Quantity:      req.Quantity,
		DistributedAt: req.DistributedAt,
		Remarks:       req.Remarks,
	})
	if err != nil {
		storeError(w, "create distribution", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("distribution created", "user", claims.Username, "distribution_id", d.ID,
		"type", d.TransferType, "item_id", d.ItemID, "to_office_id", d.ToOfficeID, "quantity", d.Quantity)
	jsonResponse(w, http.StatusCreated, d)
}

// Update handles PUT /api/distributions/{id}. Omitted fields keep their value.
func (h *DistributionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid distribution id")
		return
	}

	var req updateDistributionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := store.DistributionPatch{
		ItemID:        req.ItemID,
		ToOfficeID:    req.ToOfficeID,
		UserID:        req.UserID,
		Quantity:      req.Quantity,
		DistributedAt: req.DistributedAt,
		Remarks:       req.Remarks,
		Status:        req.Status,
	}

	// The movement is rebuilt whole from the current row and the changed
	// fields.
	if req.TransferType != nil || req.FromOfficeID != nil || req.EmployeeID != nil {
		current, err := h.Svc.Distribution(r.Context(), callerOf(r), id)
		if err != nil {
			storeError(w, "update distribution", err)
			return
		}
		kind, from, employee := current.TransferType, current.FromOfficeID, current.EmployeeID
		if req.TransferType != nil {
			kind = *req.TransferType
		}
		if req.FromOfficeID != nil {
			from = req.FromOfficeID
		}
		if req.EmployeeID != nil {
			employee = req.EmployeeID
		}
		m, err := store.NewMovement(kind, from, employee)
		if err != nil {
			storeError(w, "update distribution", err)
			return
		}
		patch.Movement = m
	}

	d, err := h.Svc.UpdateDistribution(r.Context(), callerOf(r), id, patch)
	if err != nil {
		storeError(w, "update distribution", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("distribution updated", "user", claims.Username, "distribution_id", d.ID, "status", d.Status)
	jsonResponse(w, http.StatusOK, d)
}

// Accept handles POST /api/distributions/{id}/accept.
func (h *DistributionsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid distribution id")
		return
	}

	d, err := h.Svc.AcceptDistribution(r.Context(), callerOf(r), id)
	if err != nil {
		storeError(w, "accept distribution", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("distribution accepted", "user", claims.Username, "distribution_id", d.ID,
		"to_office_id", d.ToOfficeID, "quantity", d.Quantity)
	jsonResponse(w, http.StatusOK, d)
}

// Delete handles DELETE /api/distributions/{id}.
func (h *DistributionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid distribution id")
		return
	}

	if err := h.Svc.DeleteDistribution(r.Context(), callerOf(r), id); err != nil {
		storeError(w, "delete distribution", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("distribution deleted", "user", claims.Username, "distribution_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "distribution deleted"})
}
