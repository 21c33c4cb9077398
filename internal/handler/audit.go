package handler

import (
	"net/http"
	"strconv"

	"tneaboard/internal/httputil"
	"tneaboard/internal/repository"
)

// AuditHandler exposes the rolling auth audit counters. Only mounted when
// Redis is configured.
type AuditHandler struct {
	sink *repository.RedisAuditSink
}

func NewAuditHandler(sink *repository.RedisAuditSink) *AuditHandler {
	return &AuditHandler{sink: sink}
}

// Summary returns per-event-type counters for the last 24 hours.
// GET /audit/summary
func (h *AuditHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sink.Summary(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, "Failed to load audit summary")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}

// Recent returns the most recent audit events, newest first.
// GET /audit/recent?limit=50
func (h *AuditHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 || parsed > 200 {
			httputil.WriteBadRequest(w, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	events, err := h.sink.RecentEvents(r.Context(), limit)
	if err != nil {
		httputil.WriteInternalError(w, "Failed to load audit events")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
