package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tneaboard/internal/handler"
	"tneaboard/internal/httputil"
	authmw "tneaboard/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler    *handler.AuthHandler
	CutoffHandler  *handler.CutoffHandler
	VacancyHandler *handler.VacancyHandler
	AuditHandler   *handler.AuditHandler // nil when Redis is not configured
	Sessions       authmw.SessionValidator
	JWTSecret      string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Public routes - no authentication required
	r.Post("/auth/login", cfg.AuthHandler.Login)

	// Protected routes - every request heartbeats the session registry
	r.Group(func(r chi.Router) {
		r.Use(authmw.SessionMiddleware(cfg.JWTSecret, cfg.Sessions))

		r.Post("/auth/heartbeat", cfg.AuthHandler.Heartbeat)
		r.Post("/auth/logout", cfg.AuthHandler.Logout)
		r.Get("/session", cfg.AuthHandler.Session)

		r.Route("/cutoffs", func(r chi.Router) {
			r.Get("/", cfg.CutoffHandler.List)
			r.Get("/options", cfg.CutoffHandler.Options)
		})

		r.Route("/vacancies", func(r chi.Router) {
			r.Get("/", cfg.VacancyHandler.List)
			r.Get("/categories", cfg.VacancyHandler.Categories)
			r.Get("/summary", cfg.VacancyHandler.Summary)
		})

		if cfg.AuditHandler != nil {
			r.Route("/audit", func(r chi.Router) {
				r.Get("/summary", cfg.AuditHandler.Summary)
				r.Get("/recent", cfg.AuditHandler.Recent)
			})
		}
	})

	return r
}
