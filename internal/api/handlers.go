// Package api exposes the read-only status plane of kipd: health
// checks and a per-job status endpoint.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kipbackup/kip/internal/config"
	"github.com/kipbackup/kip/internal/crypto"
	"github.com/kipbackup/kip/internal/job"
	"github.com/kipbackup/kip/internal/metrics"
	"github.com/sirupsen/logrus"
)

// JobLookup resolves a job by name; cmd/kipd supplies the concrete
// in-memory registry.
type JobLookup func(name string) (*job.Job, bool)

// Handler serves the status HTTP surface.
type Handler struct {
	lookup   JobLookup
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	hardware config.HardwareConfig
}

// NewHandler builds a Handler backed by lookup.
func NewHandler(lookup JobLookup, logger *logrus.Logger, m *metrics.Metrics, hardware config.HardwareConfig) *Handler {
	return &Handler{lookup: lookup, logger: logger, metrics: m, hardware: hardware}
}

// RegisterRoutes wires every route onto r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.handleReadyz).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{name}", h.handleJobStatus).Methods(http.MethodGet)
	r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(crypto.HardwareInfo(&h.hardware))
	h.metrics.RecordHTTPRequest(r.Method, "/healthz", http.StatusOK, time.Since(start))
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
	h.metrics.RecordHTTPRequest(r.Method, "/readyz", http.StatusOK, time.Since(start))
}

func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := mux.Vars(r)["name"]

	j, ok := h.lookup(name)
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		h.metrics.RecordHTTPRequest(r.Method, "/jobs/{name}", http.StatusNotFound, time.Since(start))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(j.ListStatus()); err != nil {
		h.logger.WithError(err).Error("encode job status")
		http.Error(w, "internal error", http.StatusInternalServerError)
		h.metrics.RecordHTTPRequest(r.Method, "/jobs/{name}", http.StatusInternalServerError, time.Since(start))
		return
	}
	h.metrics.RecordHTTPRequest(r.Method, "/jobs/{name}", http.StatusOK, time.Since(start))
}
