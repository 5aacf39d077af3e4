package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/medspa-booking-flow/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medspa-booking-flow/internal/http/middleware"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Pages              *handlers.PagesHandler
	Catalog            *handlers.CatalogHandler
	PageOpenLimiter    *httpmiddleware.PageOpenLimiter
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	SecureCookies      bool

	// Secret for catalog editor tokens; catalog writes are disabled when empty.
	CatalogEditorSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health checks, metrics)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Page sessions. Compression stays off here so websocket upgrades get
	// an unwrapped ResponseWriter.
	if cfg.Pages != nil {
		r.Group(func(pages chi.Router) {
			pages.Use(httpmiddleware.Session(cfg.SecureCookies))
			var limit func(http.Handler) http.Handler
			if cfg.PageOpenLimiter != nil {
				limit = cfg.PageOpenLimiter.Middleware
			}
			pages.Mount("/pages", cfg.Pages.Routes(limit))
		})
	}

	if cfg.Catalog != nil {
		r.Route("/catalog/records/{recordID}", func(records chi.Router) {
			records.Use(middleware.Compress(5))
			records.Get("/", cfg.Catalog.GetRecord)
			records.With(httpmiddleware.CatalogEditorJWT(cfg.CatalogEditorSecret)).Put("/", cfg.Catalog.PutRecord)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
