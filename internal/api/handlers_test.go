package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/kipbackup/kip/internal/config"
	"github.com/kipbackup/kip/internal/job"
	"github.com/kipbackup/kip/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestHandler(jobs map[string]*job.Job) *Handler {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	return NewHandler(func(name string) (*job.Job, bool) {
		j, ok := jobs[name]
		return j, ok
	}, logger, m, config.DefaultEngineConfig().Hardware)
}

func newTestRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHealthzReturnsOK(t *testing.T) {
	h := newTestHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "aes_hardware_support")
}

func TestJobStatusReturns404ForUnknownJob(t *testing.T) {
	h := newTestHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/jobs/nightly", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobStatusReturnsSummaryForKnownJob(t *testing.T) {
	j := job.New("nightly", config.ProviderConfig{Kind: config.ProviderUSB})
	h := newTestHandler(map[string]*job.Job{"nightly": j})

	req := httptest.NewRequest(http.MethodGet, "/jobs/nightly", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "nightly")
}
