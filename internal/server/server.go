// Package server owns the HTTP surface: the Telegram webhook route and a
// liveness endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Deps is a carrier of dependencies for Server.
type Deps struct {
	// WebhookPath and Webhook are optional; when empty the server only
	// exposes the liveness endpoint (long-poll mode).
	WebhookPath string
	Webhook     http.Handler
}

// Opts is a carrier of options for Server.
type Opts struct {
	Addr string
}

// Server wraps http.Server with the bot's routes and middleware.
type Server struct {
	srv *http.Server
}

func New(deps Deps, opts Opts) *Server {
	mux := http.NewServeMux()
	if deps.WebhookPath != "" && deps.Webhook != nil {
		mux.Handle("POST "+deps.WebhookPath, deps.Webhook)
	}
	mux.HandleFunc("GET /healthz", handleHealth)

	// Recovery innermost so panics are caught before logging.
	handler := recoveryMiddleware(slog.Default(), mux)
	handler = loggingMiddleware(slog.Default(), handler)

	return &Server{
		srv: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Handler exposes the fully wrapped route handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("http server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// healthResponse is the JSON body of the liveness endpoint.
type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
