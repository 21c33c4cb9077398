package handler

import (
	"net/http"

	"tneaboard/internal/httputil"
	"tneaboard/internal/model"
	"tneaboard/internal/service"
)

// VacancyHandler serves the seat vacancy dataset.
type VacancyHandler struct {
	datasetService *service.DatasetService
}

func NewVacancyHandler(datasetService *service.DatasetService) *VacancyHandler {
	return &VacancyHandler{datasetService: datasetService}
}

// List returns melted vacancy rows for one category, narrowed by filters.
// GET /vacancies?category=&branch_code=&community=&college_code=
func (h *VacancyHandler) List(w http.ResponseWriter, r *http.Request) {
	seats, err := h.datasetService.Vacancies(r.Context(), vacancyFilterFromQuery(r))
	if err != nil {
		writeDatasetError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(seats),
		"seats": seats,
	})
}

// Categories lists the vacancy categories in workbook order.
// GET /vacancies/categories
func (h *VacancyHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.datasetService.Categories(r.Context())
	if err != nil {
		writeDatasetError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}

// Summary aggregates seats per community for the filtered rows.
// GET /vacancies/summary?category=&branch_code=&community=&college_code=
func (h *VacancyHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.datasetService.SeatsByCommunity(r.Context(), vacancyFilterFromQuery(r))
	if err != nil {
		writeDatasetError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
	})
}

func vacancyFilterFromQuery(r *http.Request) model.VacancyFilter {
	q := r.URL.Query()
	return model.VacancyFilter{
		Category:    q.Get("category"),
		BranchCode:  q.Get("branch_code"),
		Community:   q.Get("community"),
		CollegeCode: q.Get("college_code"),
	}
}
