package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valinor-ai/llmguard/internal/analyze"
	"github.com/valinor-ai/llmguard/internal/audit"
	"github.com/valinor-ai/llmguard/internal/platform/middleware"
)

// Dependencies holds all injected dependencies for the server.
type Dependencies struct {
	// Pool is optional; it backs the audit trail.
	Pool               *pgxpool.Pool
	AnalyzeHandler     *analyze.Handler
	AuditHandler       *audit.Handler
	Logger             *slog.Logger
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	// WriteTimeout must exceed the scan timeout so 408 responses are delivered.
	WriteTimeout time.Duration
}

type Server struct {
	httpServer *http.Server
	apiMux     *http.ServeMux
	pool       *pgxpool.Pool
	ready      bool
	handler    http.Handler
}

func New(addr string, deps Dependencies) *Server {
	writeTimeout := deps.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	// API routes: session-scoped and rate limited
	apiMux := http.NewServeMux()

	var apiHandler http.Handler = apiMux
	apiHandler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(apiHandler)
	apiHandler = middleware.SessionContext(apiHandler)

	// Top-level mux: probes + API catch-all
	topMux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		apiMux: apiMux,
		pool:   deps.Pool,
		ready:  deps.AnalyzeHandler != nil,
	}

	topMux.HandleFunc("GET /healthz", s.handleHealth)
	topMux.HandleFunc("GET /readyz", s.handleReadiness)

	if deps.AnalyzeHandler != nil {
		deps.AnalyzeHandler.RegisterRoutes(apiMux)
	}
	if deps.AuditHandler != nil {
		apiMux.HandleFunc("GET /api/v1/audit/scans", deps.AuditHandler.HandleListEvents)
	}

	topMux.Handle("/", apiHandler)

	// Wrap top-level mux with observability middleware
	var handler http.Handler = topMux
	if deps.Logger != nil {
		handler = middleware.Logging(deps.Logger)(handler)
	}
	handler = middleware.RequestID(handler)
	if len(deps.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(deps.CORSAllowedOrigins)(handler)
	}

	s.handler = handler
	s.httpServer.Handler = handler
	return s
}

// Handler returns the full middleware-wrapped handler chain (for testing).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// APIMux returns the mux for session-scoped API routes.
func (s *Server) APIMux() *http.ServeMux {
	return s.apiMux
}

func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	slog.Info("server starting", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "scanners not configured",
		})
		return
	}

	if s.pool != nil {
		if err := s.pool.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "database ping failed",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
