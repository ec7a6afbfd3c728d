// Package server exposes the adjudication pipeline and the dossier history over HTTP
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/adjudex/internal/model"
	"github.com/ppiankov/adjudex/internal/store"
	"github.com/ppiankov/adjudex/internal/worker"
)

// maxBodyBytes bounds the size of a claim submission
const maxBodyBytes = 10 << 20

// Server wires HTTP routes to the pipeline and the decision store
type Server struct {
	adjudicator worker.Adjudicator
	store       store.DecisionStore
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
}

// New creates a server. A nil gatherer serves the default registry
func New(adjudicator worker.Adjudicator, st store.DecisionStore, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{adjudicator: adjudicator, store: st, gatherer: gatherer, logger: logger}
}

// Router builds the route tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/adjudications", s.handleAdjudicate)
		r.Get("/claims/{claimID}/dossiers", s.handleListDossiers)
		r.Get("/claims/{claimID}/dossiers/latest", s.handleLatestDossier)
		r.Get("/claims/{claimID}/dossiers/{version}", s.handleGetDossier)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, cfg model.ServerConfig) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdjudicate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var in model.ClaimInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid claim JSON: %v", err))
		return
	}

	dossier, err := s.adjudicator.Adjudicate(ctx, in)
	if err != nil {
		s.logger.ErrorContext(ctx, "adjudication failed",
			"request_id", middleware.GetReqID(ctx),
			"claim_id", in.ClaimID,
			"error", err)
		s.writeDomainError(w, err)
		return
	}

	s.logger.InfoContext(ctx, "adjudication served",
		"request_id", middleware.GetReqID(ctx),
		"claim_id", in.ClaimID,
		"decision", dossier.Verdict.Decision,
		"duration_ms", time.Since(start).Milliseconds())
	writeJSON(w, http.StatusCreated, dossier)
}

func (s *Server) handleListDossiers(w http.ResponseWriter, r *http.Request) {
	dossiers, err := s.store.List(r.Context(), chi.URLParam(r, "claimID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if len(dossiers) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no dossiers for claim")
		return
	}
	writeJSON(w, http.StatusOK, dossiers)
}

func (s *Server) handleLatestDossier(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Latest(r.Context(), chi.URLParam(r, "claimID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetDossier(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", "version must be a positive integer")
		return
	}
	d, err := s.store.Get(r.Context(), chi.URLParam(r, "claimID"), version)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// writeDomainError maps the error taxonomy to HTTP statuses. Internal
// details are only exposed for client errors
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, model.ErrContractViolation):
		writeError(w, http.StatusUnprocessableEntity, "invalid_claim", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	writeJSON(w, status, body)
}
