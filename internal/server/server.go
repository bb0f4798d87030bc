// Package server exposes the bot's metrics and health over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kelsos/chainbot/internal/logger"
)

const (
	timeout      = 15 * time.Second
	checkTimeout = 3 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is one dependency reported by /healthz
type Check struct {
	Name   string
	Pinger Pinger
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type Server struct {
	addr   string
	router *mux.Router
	checks []Check
}

func New(addr string, gatherer prometheus.Gatherer, checks ...Check) *Server {
	s := &Server{
		addr:   addr,
		router: mux.NewRouter(),
		checks: checks,
	}

	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Handler:      s.router,
		Addr:         s.addr,
		WriteTimeout: timeout,
		ReadTimeout:  timeout,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	logger.Info("Serving metrics and health on %s", s.addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{Status: "ok", Checks: make(map[string]string, len(s.checks))}

	for _, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := check.Pinger.Ping(ctx)
		cancel()

		if err != nil {
			logger.Warn("Health check %s failed: %v", check.Name, err)
			response.Status = "unavailable"
			response.Checks[check.Name] = err.Error()
			continue
		}
		response.Checks[check.Name] = "ok"
	}

	status := http.StatusOK
	if response.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, response)
}

func writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response: %v", err)
	}
}
