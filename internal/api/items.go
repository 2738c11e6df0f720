package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/evidenca/internal/access"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// ItemsHandler handles item catalog endpoints.
type ItemsHandler struct {
	DB  *sql.DB
	Svc *access.Service
}

type itemRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Unit        string `json:"unit"`
	Quantity    int    `json:"quantity"`
}

func (req itemRequest) item() model.Item {
	return model.Item{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Unit:        req.Unit,
		Quantity:    req.Quantity,
	}
}

// List handles GET /api/items, optionally ?category= or ?code=.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	if code := r.URL.Query().Get("code"); code != "" {
		item, err := store.GetItemByCode(r.Context(), h.DB, code)
		if err != nil {
			storeError(w, "get item by code", err)
			return
		}
		list := []model.Item{}
		if item != nil {
			list = append(list, *item)
		}
		jsonResponse(w, http.StatusOK, list)
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, r.URL.Query().Get("category"))
	if err != nil {
		storeError(w, "list items", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(items))
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, req.item())
	if err != nil {
		storeError(w, "create item", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item created", "user", claims.Username, "item", item.Name, "code", item.Code)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, "get item", err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

type stockSummary struct {
	ItemID      int64 `json:"item_id"`
	Unallocated int   `json:"unallocated"`
	AtOffices   int   `json:"at_offices"`
}

// Stock handles GET /api/items/{id}/stock: units still in the pool and
// units held by offices altogether.
func (h *ItemsHandler) Stock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, "get item", err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	held, err := store.TotalOfficeQuantity(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, "sum item stock", err)
		return
	}

	jsonResponse(w, http.StatusOK, stockSummary{ItemID: id, Unallocated: item.Quantity, AtOffices: held})
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.UpdateItem(r.Context(), h.DB, id, req.item())
	if err != nil {
		storeError(w, "update item", err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		storeError(w, "delete item", err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item deleted", "user", claims.Username, "item_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Inventory handles GET /api/items/{id}/inventory: the offices holding the
// item, within the caller's scope.
func (h *ItemsHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	rows, err := h.Svc.ItemInventory(r.Context(), callerOf(r), id)
	if err != nil {
		storeError(w, "list item inventory", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(rows))
}

// Instances handles GET /api/items/{id}/instances, optionally ?status=.
func (h *ItemsHandler) Instances(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidInstanceStatus(status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	list, err := h.Svc.ItemInstances(r.Context(), callerOf(r), id, status)
	if err != nil {
		storeError(w, "list item instances", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(list))
}

// History handles GET /api/items/{id}/history?office_id=.
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	officeID, err := queryID(r, "office_id")
	if err != nil || officeID == 0 {
		jsonError(w, http.StatusBadRequest, "office_id required")
		return
	}

	list, err := h.Svc.ItemHistory(r.Context(), callerOf(r), id, officeID)
	if err != nil {
		storeError(w, "list item history", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(list))
}
