// Package api exposes the counseling service over HTTP: a turn endpoint plus
// health and readiness probes, behind recovery, logging, and per-IP rate
// limiting middleware.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maumlab/counsel/internal/dialogue"
)

// Responder handles one counseling turn.
type Responder interface {
	Respond(ctx context.Context, sessionID, input string) dialogue.Turn
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Responder  Responder     // Required
	Pool       *pgxpool.Pool // Optional: nil disables pool stats in /ready
	RateRPS    float64       // Tokens refilled per second per IP (0 = default 5)
	RateBurst  int           // Rate limiter burst size per IP (0 = default 10)
	TrustProxy bool          // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Responder == nil {
		return nil, errors.New("responder is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	th := &turnHandler{responder: cfg.Responder, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/turn", th.handle)

	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	rl := newRateLimiter(rps, burst)

	// Middleware stack, outermost first: Recovery → Logging → RateLimit.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
