// Package web provides the HTTP server and handlers for sheet conversion.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/JonMunkholm/sheetconv/internal/config"
	"github.com/JonMunkholm/sheetconv/internal/logging"
	"github.com/JonMunkholm/sheetconv/internal/metrics"
	"github.com/JonMunkholm/sheetconv/internal/service"
	mw "github.com/JonMunkholm/sheetconv/internal/web/middleware"
)

// Server is the HTTP server for sheet conversion.
type Server struct {
	service *service.Service
	metrics *metrics.Collector
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. m may be nil, which disables /metrics.
func NewServer(svc *service.Service, m *metrics.Collector, cfg *config.Config) *Server {
	s := &Server{
		service: svc,
		metrics: m,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(mw.Metrics(s.metrics))
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	// Browser routes used by the index page. Uploads are only mounted
	// when the API is open, since a form post cannot carry the key.
	s.router.Get("/template/{schemaKey}", s.handleDownloadTemplate)
	if s.browserUploads() {
		s.router.Post("/convert/{schemaKey}", s.handleConvert)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

		// Schema listing
		r.Get("/schemas", s.handleListSchemas)
		r.Get("/schemas/{schemaKey}", s.handleGetSchema)

		// Template download
		r.Get("/template/{schemaKey}", s.handleDownloadTemplate)

		// Conversion
		r.Post("/sheets", s.handleListSheets)
		r.Post("/convert/{schemaKey}", s.handleConvert)
		r.Post("/import/{schemaKey}", s.handleImport)
	})
}

// browserUploads reports whether the index page may post files.
func (s *Server) browserUploads() bool {
	return !s.cfg.Security.RequireAPIKey
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Pages are self-contained: no scripts, inline styles only
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'none'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")

		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// render writes an HTML component with the given status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error", "error", err)
	}
}

// healthResponse is the body of /healthz.
type healthResponse struct {
	Status    string                `json:"status"`
	Schemas   int                   `json:"schemas"`
	Limiter   service.LimiterStatus `json:"limiter"`
	Timestamp time.Time             `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "ok",
		Schemas:   s.service.SchemaCount(),
		Limiter:   s.service.Limiter().Status(),
		Timestamp: time.Now().UTC(),
	})
}
