// Package api serves ingest health, metrics and the derived tables over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lox/keiba/internal/config"
	"github.com/lox/keiba/internal/dataset"
	"github.com/lox/keiba/internal/store"
)

type Server struct {
	store *store.Store
	data  *dataset.Store
	cfg   *config.Config
	port  string
}

// NewServer listens on port, or on the configured port when port is empty.
func NewServer(store *store.Store, data *dataset.Store, cfg *config.Config, port string) *Server {
	if port == "" {
		port = cfg.Server.Port
	}
	return &Server{
		store: store,
		data:  data,
		cfg:   cfg,
		port:  port,
	}
}

func (s *Server) Addr() string {
	return ":" + s.port
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/ingest/health", s.handleAPIIngestHealth)
	mux.HandleFunc("/api/ingest/errors", s.handleAPIIngestErrors)
	mux.HandleFunc("/api/venues", s.handleAPIVenues)
	mux.HandleFunc("/api/averages", s.handleAPIAverages)
	mux.HandleFunc("/api/cards", s.handleAPICards)
	mux.HandleFunc("/api/simulate", s.handleAPISimulate)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", server.Addr).Msg("api: listening")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status           string `json:"status"`
	MigrationVersion int    `json:"migration_version"`
	DataDir          string `json:"data_dir"`
	RecentErrors     int    `json:"recent_errors"`
	Error            string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok", DataDir: s.data.Root()}

	if err := s.store.Ping(); err != nil {
		health.Status = "error"
		health.Error = err.Error()
	} else if v, err := s.store.MigrationVersion(); err != nil {
		health.Status = "error"
		health.Error = err.Error()
	} else {
		health.MigrationVersion = v
	}

	if health.Status == "ok" {
		errs, err := s.store.GetRecentIngestErrors(20)
		if err != nil {
			log.Warn().Err(err).Msg("health: recent ingest errors")
		}
		health.RecentErrors = len(errs)
		if len(errs) > 0 {
			health.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Warn().Err(err).Msg("health: write response")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("api: write response")
	}
}
