package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/erazemk/gimmie/internal/exchange"
	"github.com/erazemk/gimmie/internal/list"
)

// MaxImportSize caps the size of an import request body.
const MaxImportSize = 16 << 20

// ExchangeHandler handles import and export.
type ExchangeHandler struct {
	Transformer *exchange.Transformer
}

type importResponse struct {
	Message string `json:"message"`
	*exchange.Summary
}

// Export handles GET /api/export. Pass ?archive=1 to include archive records.
func (h *ExchangeHandler) Export(w http.ResponseWriter, r *http.Request) {
	includeArchive := queryFlag(r, "archive")

	doc, err := h.Transformer.Export(r.Context(), includeArchive)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="gimmie_export.json"`)
	if err := exchange.Encode(w, doc); err != nil {
		writeError(w, r, err)
	}
}

// Import handles POST /api/import?policy=append|replace. The document is
// either the multipart "file" field or the raw request body.
func (h *ExchangeHandler) Import(w http.ResponseWriter, r *http.Request) {
	policy, err := list.ParsePolicy(r.URL.Query().Get("policy"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImportSize)
	defer r.Body.Close()

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			if tooLarge(err) {
				jsonError(w, http.StatusRequestEntityTooLarge, "import file too large")
				return
			}
			jsonError(w, http.StatusBadRequest, "no file provided")
			return
		}
		defer file.Close()
		src = file
	}

	doc, err := exchange.Decode(src)
	if err != nil {
		if tooLarge(err) {
			jsonError(w, http.StatusRequestEntityTooLarge, "import file too large")
			return
		}
		writeError(w, r, err)
		return
	}

	summary, err := h.Transformer.Import(r.Context(), doc, policy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, importResponse{Message: "Import successful", Summary: summary})
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
