package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/erazemk/gimmie/internal/list"
	"github.com/erazemk/gimmie/internal/model"
)

// ItemsHandler handles the active list endpoints.
type ItemsHandler struct {
	Service *list.Service
}

type createItemRequest struct {
	Name    string         `json:"name"`
	Cost    model.Cost     `json:"cost"`
	Link    string         `json:"link"`
	Type    model.Category `json:"type"`
	AddedBy string         `json:"added_by"`
}

type updateItemRequest struct {
	Name *string         `json:"name"`
	Cost json.RawMessage `json:"cost"`
	Link *string         `json:"link"`
	Type *model.Category `json:"type"`
}

type moveItemRequest struct {
	Direction model.Direction `json:"direction"`
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.Active(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Default the contributor to whoever is logged in.
	if req.AddedBy == "" {
		if claims := GetClaims(r.Context()); claims != nil {
			req.AddedBy = claims.Member
		}
	}

	item, err := h.Service.Create(r.Context(), list.Fields{
		Name:    req.Name,
		Cost:    req.Cost,
		Link:    req.Link,
		Type:    req.Type,
		AddedBy: req.AddedBy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusCreated, item)
}

// Update handles PUT /api/items/{id}. Fields missing from the body keep
// their value; "cost": null clears the cost.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := list.Patch{Name: req.Name, Link: req.Link, Type: req.Type}
	if len(req.Cost) > 0 {
		var cost model.Cost
		if err := json.Unmarshal(req.Cost, &cost); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid cost")
			return
		}
		patch.Cost = &cost
	}

	item, err := h.Service.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}. The item is archived as deleted.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.archive(w, r, model.ReasonDeleted)
}

// Complete handles POST /api/items/{id}/complete.
func (h *ItemsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.archive(w, r, model.ReasonCompleted)
}

func (h *ItemsHandler) archive(w http.ResponseWriter, r *http.Request, reason model.Reason) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if _, err := h.Service.Archive(r.Context(), id, reason); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Move handles POST /api/items/{id}/move and returns the reordered list.
func (h *ItemsHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req moveItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := h.Service.Move(r.Context(), id, req.Direction)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, items)
}
