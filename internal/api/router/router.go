package router

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"packetvault/internal/api/handlers"
	pv_middleware "packetvault/internal/api/middleware"
)

// CustodianConfig defines the strict dependencies for the custodian routing tree.
type CustodianConfig struct {
	KeyHandler *handlers.KeyHandler
	Auth       *pv_middleware.ServiceAuthMiddleware
	Logger     *slog.Logger
}

// NewCustodianRouter wires the key custodian RPC surface. Every key endpoint
// sits behind the service-token gate; nothing here is public.
func NewCustodianRouter(cfg CustodianConfig) *chi.Mux {
	r := chi.NewRouter()
	attachBase(r, cfg.Logger)

	r.Get("/healthz", handlers.Healthz)

	r.Route("/api/v1/keys", func(r chi.Router) {
		r.Use(cfg.Auth.RequireServiceToken)
		r.Post("/generate", cfg.KeyHandler.GenerateKey)
		r.Post("/retrieve", cfg.KeyHandler.RetrieveKey)
	})

	return r
}

// IngestConfig defines the dependencies for the ingest routing tree.
type IngestConfig struct {
	IngestHandler *handlers.IngestHandler
	Auth          *pv_middleware.ServiceAuthMiddleware
	Logger        *slog.Logger
}

// NewIngestRouter wires the record ingest RPC surface, rate limited per
// caller IP since collectors are the hot path.
func NewIngestRouter(cfg IngestConfig) *chi.Mux {
	r := chi.NewRouter()
	attachBase(r, cfg.Logger)

	r.Get("/healthz", handlers.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.Auth.RateLimit)
		r.Post("/records", cfg.IngestHandler.StoreRecord)
	})

	return r
}

// AnalyzerConfig defines the dependencies for the analyzer routing tree.
type AnalyzerConfig struct {
	AnalysisHandler *handlers.AnalysisHandler
	AlertsHandler   *handlers.AlertsHandler
	AllowedOrigins  []string
	Logger          *slog.Logger
}

// NewAnalyzerRouter wires the analysis query API and the live integrity
// alert stream. CORS is strict: analyst tooling origins only.
func NewAnalyzerRouter(cfg AnalyzerConfig) *chi.Mux {
	r := chi.NewRouter()
	attachBase(r, cfg.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", handlers.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analysis/query", cfg.AnalysisHandler.RunQuery)
		r.Get("/ws/alerts", cfg.AlertsHandler.StreamAlerts)
	})

	return r
}

// attachBase installs the global gateway middleware pipeline shared by all
// three services.
func attachBase(r *chi.Mux, logger *slog.Logger) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(pv_middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Cap incoming JSON bodies at 4 MiB (payloads ride base64-inflated).
	r.Use(pv_middleware.MaxBytes(4 * 1024 * 1024))
}
