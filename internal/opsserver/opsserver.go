// Package opsserver exposes the ambient /healthz and /metrics HTTP
// surface every chain/coordinator process carries regardless of which
// detection features are enabled (spec.md §1 "HTTP admin/metrics
// surfaces... external collaborators"). Routed with gorilla/mux, the
// teacher's HTTP routing library (internal/api/router.go), repurposed
// here from a CEX account API to a two-route ops surface.
package opsserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck reports one dependency's liveness for /healthz. Name
// identifies the dependency (e.g. "chain:1", "redis", "l3"); Healthy is
// false if the dependency is currently unusable.
type HealthCheck func() (name string, healthy bool, detail string)

// Server is the minimal ops HTTP surface: liveness plus Prometheus
// scrape. It never touches the hot detection path — checks run only
// when a request arrives.
type Server struct {
	httpServer *http.Server
	logger     *zap.SugaredLogger
}

// New builds a Server listening on addr. checks is evaluated fresh on
// every /healthz request, never cached, so a flapping dependency is
// reflected immediately.
func New(addr string, logger *zap.SugaredLogger, checks ...HealthCheck) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthzHandler(checks)).Methods(http.MethodGet)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// healthReport is the /healthz response body.
type healthReport struct {
	Status string                 `json:"status"` // "ok" or "degraded"
	Checks map[string]checkResult `json:"checks"`
}

type checkResult struct {
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{Status: "ok", Checks: make(map[string]checkResult, len(checks))}
		for _, check := range checks {
			name, healthy, detail := check()
			report.Checks[name] = checkResult{Healthy: healthy, Detail: detail}
			if !healthy {
				report.Status = "degraded"
			}
		}

		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	}
}

// Start runs the HTTP server until Shutdown is called, logging (rather
// than returning) the terminal http.ErrServerClosed so callers can fire
// this off in its own goroutine without extra boilerplate.
func (s *Server) Start() {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		if s.logger != nil {
			s.logger.Errorw("ops server stopped unexpectedly", "error", err)
		}
	}
}

// Shutdown gracefully stops the server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
