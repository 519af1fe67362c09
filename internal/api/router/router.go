package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"go-history/internal/api/handlers"
	webstatic "go-history/web"
)

// NewRouter creates and configures the main Chi router
func NewRouter(h *handlers.HistoryHandler) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsMiddleware := handlers.CORSMiddleware()
	setupPageRoutes(r, h, corsMiddleware)
	setupAPIRoutes(r, h, corsMiddleware)
	setupStaticRoutes(r, corsMiddleware)

	return r
}

func setupPageRoutes(r chi.Router, h *handlers.HistoryHandler, corsMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(wrapHandlerFuncMiddleware(handlers.RateLimitMiddleware))
		r.Use(corsMiddleware)
		r.Use(methodMiddleware(http.MethodGet, http.MethodHead))

		r.Get("/", h.Page)
	})
}

// setupAPIRoutes configures all API endpoints
func setupAPIRoutes(r chi.Router, h *handlers.HistoryHandler, corsMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(wrapHandlerFuncMiddleware(handlers.RateLimitMiddleware))
		r.Use(corsMiddleware)
		r.Use(methodMiddleware(http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions))

		r.Get("/health", h.Health)
		h.Routes(r)
	})
}

// setupStaticRoutes configures static file serving
func setupStaticRoutes(r chi.Router, corsMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(wrapHandlerFuncMiddleware(handlers.RateLimitMiddleware))
		r.Use(corsMiddleware)

		r.Handle("/js/*", http.StripPrefix("/js/", webstatic.GetJSHandler()))
		r.Handle("/assets/*", http.StripPrefix("/assets/", webstatic.GetAssetsHandler()))
	})
}

// methodMiddleware adapts the handlers' method guard to chi middleware.
func methodMiddleware(allowedMethods ...string) func(http.Handler) http.Handler {
	return wrapHandlerFuncMiddleware(handlers.MethodMiddleware(allowedMethods...))
}

// wrapHandlerFuncMiddleware adapts http.HandlerFunc middleware to work with Chi's http.Handler middleware
func wrapHandlerFuncMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}
