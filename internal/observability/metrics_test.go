package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	return res.Body.String()
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetrics()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/rooms/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/rooms/12", nil))
	require.Equal(t, http.StatusTeapot, res.Code)

	body := scrape(t, m)
	assert.Contains(t, body, `riviera_http_requests_total{code="418",route="/rooms/{id}"} 1`)
	assert.Contains(t, body, "riviera_http_request_duration_seconds_count")
}

func TestRecordDecision(t *testing.T) {
	m := NewMetrics()
	m.RecordDecision("allow", "")
	m.RecordDecision("deny", "forbidden")
	m.RecordDecision("deny", "forbidden")

	body := scrape(t, m)
	assert.Contains(t, body, `riviera_authz_decisions_total{outcome="allow",reason=""} 1`)
	assert.Contains(t, body, `riviera_authz_decisions_total{outcome="deny",reason="forbidden"} 2`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordDecision("allow", "")
	assert.NotNil(t, m.Registerer())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	res := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}
