// Package http provides the HTTP transport layer for encodex.
//
// Routes (Go 1.22+ method-qualified patterns):
//
//	GET    /health
//	GET    /methods
//	POST   /encode
//	POST   /decode
//	POST   /detect
//	GET    /qr?data=<envelope>
//	GET    /ws
//	GET    /metrics
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/snehjoshi/encodex/internal/codec"
	"github.com/snehjoshi/encodex/internal/config"
	"github.com/snehjoshi/encodex/internal/metrics"
	"github.com/snehjoshi/encodex/internal/session"
	transportws "github.com/snehjoshi/encodex/internal/transport/websocket"
)

// Deps are the services the routes call into.
type Deps struct {
	Encoder  *codec.Encoder
	Decoder  *codec.Decoder
	Sessions *session.Store
	// Live serves /ws. Nil leaves the route unmounted.
	Live *transportws.Handler
	// Metrics serves /metrics and counts requests. Nil disables both.
	Metrics *metrics.Registry
}

// Server wraps the stdlib HTTP server with encodex route wiring.
type Server struct {
	inner *http.Server
}

// New builds a Server. The caller is responsible for calling
// ListenAndServe / Shutdown.
func New(cfg *config.Config, d Deps) *Server {
	h := &Handler{
		enc:      d.Encoder,
		dec:      d.Decoder,
		sessions: d.Sessions,
		reg:      d.Metrics,
		qrSize:   cfg.Share.QRSize,
		ledger:   string(cfg.Ledger.Backend),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /methods", h.methods)

	mux.HandleFunc("POST /encode", h.encode)
	mux.HandleFunc("POST /decode", h.decode)
	mux.HandleFunc("POST /detect", h.detect)
	mux.HandleFunc("GET /qr", h.qr)

	if d.Live != nil {
		mux.Handle("GET /ws", d.Live)
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	handler := chain(mux,
		CORSMiddleware,
		MaxBodyMiddleware(int64(cfg.Server.MaxBodyKB)<<10),
		LoggingMiddleware(d.Metrics),
		AuthMiddleware(cfg.Auth.APIKey, cfg.Auth.Enabled),
		RateLimitMiddleware(float64(cfg.RateLimit.RPS), cfg.RateLimit.Burst),
	)

	return &Server{
		inner: &http.Server{
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Handler returns the composed http.Handler (useful for testing).
func (s *Server) Handler() http.Handler { return s.inner.Handler }

// ListenAndServe starts the server on the given address (e.g. ":8080").
// It returns when the server stops or encounters an error.
func (s *Server) ListenAndServe(addr string) error {
	s.inner.Addr = addr
	return s.inner.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting up to ctx's deadline for
// in-flight requests to finish. Hijacked WebSocket connections are not
// tracked and close with the process.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
