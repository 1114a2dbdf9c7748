package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brody/brody-back/internal/ai"
)

func TestObserverCounters(t *testing.T) {
	m := New()

	m.ObserveAttempt(ai.TaskEmailClassification, "A", false, 10*time.Millisecond)
	m.ObserveAttempt(ai.TaskEmailClassification, "B", true, 20*time.Millisecond)
	m.ObserveCompletion(ai.TaskEmailClassification, 2, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelAttempts.WithLabelValues("email_classification", "A", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelAttempts.WithLabelValues("email_classification", "B", "content")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AICalls.WithLabelValues("email_classification", "content")))
}

func TestMiddlewareLabelsByPattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := m.Middleware(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET /items/{id}", "GET", "418")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveJob("completed")

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `brody_triage_jobs_total{status="completed"} 1`))
}
