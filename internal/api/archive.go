package api

import (
	"net/http"

	"github.com/erazemk/gimmie/internal/list"
	"github.com/erazemk/gimmie/internal/model"
)

// ArchiveHandler handles archive endpoints.
type ArchiveHandler struct {
	Service *list.Service
}

// List handles GET /api/archive.
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.Archived(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []model.ArchiveRecord{}
	}
	jsonResponse(w, http.StatusOK, records)
}

// Restore handles POST /api/archive/{id}/restore.
func (h *ArchiveHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid archive id")
		return
	}

	item, err := h.Service.Restore(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}
