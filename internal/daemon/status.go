package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// StatusServer exposes the daemon's health and last-cycle stats over HTTP.
type StatusServer struct {
	daemon *Daemon
	srv    *http.Server
}

// NewStatusServer creates the status server listening on addr.
func NewStatusServer(d *Daemon, addr string) *StatusServer {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(d.Snapshot()) //nolint:errcheck
	})

	return &StatusServer{
		daemon: d,
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in a new goroutine until Shutdown.
func (s *StatusServer) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Error("status server failed", zap.Error(err))
		}
	}()
	zap.L().Info("status server listening", zap.String("addr", s.srv.Addr))
}

// Shutdown stops the server gracefully.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
