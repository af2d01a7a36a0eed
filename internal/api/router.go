package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"splitguard/internal/config"
	"splitguard/internal/decision"
	"splitguard/internal/engine"
)

// EngineInterface defines the engine methods used by the API.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// Status returns the latest immutable snapshot
	Status() *engine.Status
	// Decisions returns up to n recent decisions, newest first
	Decisions(n int) []decision.Record
	// Reset fully resets both controllers
	Reset(reason string)
}

// SettingsStore is the live settings surface.
type SettingsStore interface {
	Settings() config.Settings
	Update(s config.Settings) (config.Settings, error)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine:   eng,
//	    Settings: store,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the controller engine (required)
	Engine EngineInterface

	// Settings is the live settings store (required)
	Settings SettingsStore

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost origins are allowed.
	CORSOrigins []string

	// Token guards the mutating routes. Empty disables the check.
	Token string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine   EngineInterface
	settings SettingsStore
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE apart from the rate limiter cleanup
// goroutine: no network listeners are opened.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "PUT", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		settings: cfg.Settings,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleGetStatus)
		r.Get("/decisions", h.handleGetDecisions)
		r.Get("/settings", h.handleGetSettings)

		r.Group(func(r chi.Router) {
			r.Use(TokenAuth(cfg.Token))
			r.Put("/settings", h.handlePutSettings)
			r.Post("/reset", h.handleReset)
		})
	})

	return r
}
