package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/evidenca/internal/access"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// OfficesHandler handles the office hierarchy and the employees attached to it.
type OfficesHandler struct {
	DB  *sql.DB
	Svc *access.Service
}

type officeRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Code        string `json:"code"`
	ParentID    *int64 `json:"parent_id"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
	IsActive    *bool  `json:"is_active"`
}

type createEmployeeRequest struct {
	Name     string `json:"name"`
	OfficeID *int64 `json:"office_id"`
}

func (req officeRequest) office() model.Office {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return model.Office{
		Name:        req.Name,
		Type:        req.Type,
		Code:        req.Code,
		ParentID:    req.ParentID,
		Description: req.Description,
		OrderIndex:  req.OrderIndex,
		IsActive:    active,
	}
}

// List handles GET /api/offices. Only offices the caller may act on are
// returned; ?code= narrows the list to the office with that code.
func (h *OfficesHandler) List(w http.ResponseWriter, r *http.Request) {
	if code := r.URL.Query().Get("code"); code != "" {
		office, err := h.Svc.OfficeByCode(r.Context(), callerOf(r), code)
		if err != nil {
			storeError(w, "get office by code", err)
			return
		}
		list := []model.Office{}
		if office != nil {
			list = append(list, *office)
		}
		jsonResponse(w, http.StatusOK, list)
		return
	}

	offices, err := h.Svc.Offices(r.Context(), callerOf(r))
	if err != nil {
		storeError(w, "list offices", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(offices))
}

// Get handles GET /api/offices/{id}.
func (h *OfficesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid office id")
		return
	}

	office, err := h.Svc.Office(r.Context(), callerOf(r), id)
	if err != nil {
		storeError(w, "get office", err)
		return
	}
	jsonResponse(w, http.StatusOK, office)
}

// Create handles POST /api/offices.
func (h *OfficesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req officeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	office, err := store.CreateOffice(r.Context(), h.DB, req.office())
	if err != nil {
		storeError(w, "create office", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("office created", "user", claims.Username, "office", office.Name, "code", office.Code)
	jsonResponse(w, http.StatusCreated, office)
}

// Update handles PUT /api/offices/{id}.
func (h *OfficesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid office id")
		return
	}

	var req officeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	office, err := store.UpdateOffice(r.Context(), h.DB, id, req.office())
	if err != nil {
		storeError(w, "update office", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("office updated", "user", claims.Username, "office", office.Name)
	jsonResponse(w, http.StatusOK, office)
}

// Delete handles DELETE /api/offices/{id}. Offices are deactivated, never removed.
func (h *OfficesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid office id")
		return
	}

	if err := store.DeactivateOffice(r.Context(), h.DB, id); err != nil {
		storeError(w, "deactivate office", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("office deactivated", "user", claims.Username, "office_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "office deactivated"})
}

// Children handles GET /api/offices/{id}/children.
func (h *OfficesHandler) Children(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid office id")
		return
	}
	if _, err := h.Svc.Office(r.Context(), callerOf(r), id); err != nil {
		storeError(w, "get office", err)
		return
	}

	children, err := store.ListChildOffices(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, "list child offices", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(children))
}

// Parent handles GET /api/offices/{id}/parent.
func (h *OfficesHandler) Parent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid office id")
		return
	}
	if _, err := h.Svc.Office(r.Context(), callerOf(r), id); err != nil {
		storeError(w, "get office", err)
		return
	}

	parent, err := store.GetParentOffice(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, "get parent office", err)
		return
	}
	jsonResponse(w, http.StatusOK, parent)
}

// Inventory handles GET /api/offices/{id}/inventory. With ?available=true
// rows at zero are left out.
func (h *OfficesHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid office id")
		return
	}

	available := r.URL.Query().Get("available") == "true"
	rows, err := h.Svc.OfficeInventory(r.Context(), callerOf(r), id, available)
	if err != nil {
		storeError(w, "list office inventory", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(rows))
}

// Instances handles GET /api/offices/{id}/instances.
func (h *OfficesHandler) Instances(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid office id")
		return
	}

	list, err := h.Svc.OfficeInstances(r.Context(), callerOf(r), id)
	if err != nil {
		storeError(w, "list office instances", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(list))
}

// ListEmployees handles GET /api/employees, optionally ?office_id=.
func (h *OfficesHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	officeID, err := queryID(r, "office_id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := store.ListEmployees(r.Context(), h.DB, officeID)
	if err != nil {
		storeError(w, "list employees", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(list))
}

// CreateEmployee handles POST /api/employees.
func (h *OfficesHandler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req createEmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := store.CreateEmployee(r.Context(), h.DB, req.Name, req.OfficeID)
	if err != nil {
		storeError(w, "create employee", err)
		return
	}
	jsonResponse(w, http.StatusCreated, e)
}

// DeleteEmployee handles DELETE /api/employees/{id}.
func (h *OfficesHandler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	if err := store.DeactivateEmployee(r.Context(), h.DB, id); err != nil {
		storeError(w, "deactivate employee", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "employee deactivated"})
}
