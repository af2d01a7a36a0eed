package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// StatusInterval is how often connected overlays receive a status snapshot.
const StatusInterval = 100 * time.Millisecond

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      EngineInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine EngineInterface, settings SettingsStore, token string) *Server {
	s := &Server{
		engine:      engine,
		wsHub:       NewWebSocketHub(),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Settings:    settings,
		RateLimiter: s.rateLimiter,
		Token:       token,
	})
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Hub exposes the WebSocket hub so it can be attached as a decision sink.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Start binds addr, starts the hub workers and serves in the background.
// The bind error is returned synchronously.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go s.wsHub.Run()
	s.wsHub.StartStatusLoop(s.engine, StatusInterval)

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log := logrus.WithField("component", "api")
	log.WithField("addr", ln.Addr().String()).Info("🌐 API server started")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("❌ API server error")
		}
	}()
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop shuts the HTTP server down and releases background workers.
func (s *Server) Stop(ctx context.Context) error {
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
