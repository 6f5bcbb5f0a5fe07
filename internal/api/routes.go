package api

import (
	"net/http"
	"time"

	"droidkey/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	// Raw store files for the browser UI
	r.Get("/data/{file}", h.HandleDataFile)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", h.HandleHealth)

		// Key store
		r.Get("/list", h.HandleListKeys)
		r.Post("/add", h.HandleAddKey)
		r.Post("/remove", h.HandleRemoveKey)
		r.Post("/use", h.HandleUseKey)
		r.Post("/refresh", h.HandleRefresh)

		// Workspace templates
		r.Route("/skills", func(r chi.Router) {
			r.Get("/", h.HandleListSkills)
			r.Post("/", h.HandleCreateSkill)
			r.Delete("/{name}", h.HandleDeleteSkill)
		})
		r.Route("/commands", func(r chi.Router) {
			r.Get("/", h.HandleListCommands)
			r.Post("/", h.HandleCreateCommand)
			r.Get("/{name}", h.HandleReadCommand)
			r.Put("/{name}", h.HandleUpdateCommand)
			r.Delete("/{name}", h.HandleDeleteCommand)
		})
		r.Route("/droids", func(r chi.Router) {
			r.Get("/", h.HandleListDroids)
			r.Post("/", h.HandleCreateDroid)
			r.Delete("/{name}", h.HandleDeleteDroid)
		})
		r.Route("/mcp", func(r chi.Router) {
			r.Get("/", h.HandleListMCPServers)
			r.Post("/", h.HandleAddMCPServer)
			r.Put("/{name}", h.HandleUpdateMCPServer)
			r.Delete("/{name}", h.HandleRemoveMCPServer)
		})
	})

	// Static UI files
	if cfg.HTTP.WebDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.HTTP.WebDir)))
	}

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
