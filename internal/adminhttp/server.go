// Package adminhttp serves the operational surface cmd/nutd exposes
// alongside the NUT line protocol: a Prometheus scrape endpoint and a
// liveness probe, routed with gorilla/mux the way the teacher's
// daemon/services/api.Server does.
package adminhttp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/networkupstools/nutd/internal/metrics"
)

// Server is the embedded admin HTTP listener for /metrics and /healthz.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
}

// NewServer builds a Server bound to addr (":9091" style); the caller
// decides when to call ListenAndServe.
func NewServer(addr string) *Server {
	s := &Server{router: mux.NewRouter()}
	s.router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// ListenAndServe blocks serving HTTP until the server is closed. It
// returns nil on a clean Shutdown, matching net/http.Server's contract.
func (s *Server) ListenAndServe() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server, giving in-flight requests up
// to 5 seconds to complete, the same budget the teacher's api.Server.Stop
// gives its HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
