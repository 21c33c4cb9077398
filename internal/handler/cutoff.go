package handler

import (
	"errors"
	"net/http"

	"tneaboard/internal/httputil"
	"tneaboard/internal/model"
	"tneaboard/internal/service"
)

// CutoffHandler serves the admission cutoff dataset.
type CutoffHandler struct {
	datasetService *service.DatasetService
}

func NewCutoffHandler(datasetService *service.DatasetService) *CutoffHandler {
	return &CutoffHandler{datasetService: datasetService}
}

// List returns cutoff rows narrowed by query-string filters.
// GET /cutoffs?college_code=&community=&branch=&zone=
func (h *CutoffHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.CutoffFilter{
		CollegeCode: q.Get("college_code"),
		Community:   q.Get("community"),
		Branch:      q.Get("branch"),
		Zone:        q.Get("zone"),
	}

	rows, err := h.datasetService.Cutoffs(r.Context(), filter)
	if err != nil {
		writeDatasetError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rows),
		"rows":  rows,
	})
}

// Options returns the distinct values available for each cutoff filter.
// GET /cutoffs/options
func (h *CutoffHandler) Options(w http.ResponseWriter, r *http.Request) {
	options, err := h.datasetService.CutoffOptions(r.Context())
	if err != nil {
		writeDatasetError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, options)
}

// writeDatasetError maps dataset errors shared by the cutoff and vacancy
// endpoints. A fetch failure is a degraded view, not an auth problem.
func writeDatasetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrDatasetUnavailable):
		httputil.WriteServiceUnavailable(w, model.CodeDataUnavailable, "Dataset is temporarily unavailable. Please try again.")
	case errors.Is(err, model.ErrUnknownCategory):
		httputil.WriteNotFound(w, "Unknown vacancy category")
	default:
		httputil.WriteInternalError(w, "Failed to load dataset")
	}
}
