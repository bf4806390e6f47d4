package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAction(t *testing.T) {
	c := NewCollector()
	c.ObserveAction("createThought", "ok", 10*time.Millisecond)
	c.ObserveAction("createThought", "ok", 20*time.Millisecond)
	c.ObserveAction("createThought", "invalid_input", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ActionCalls.WithLabelValues("createThought", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActionCalls.WithLabelValues("createThought", "invalid_input")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector()
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/items/{id}", "418")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.ObserveAction("getThoughts", "ok", time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `thoughts_action_calls_total{op="getThoughts",outcome="ok"} 1`))
	assert.Contains(t, string(body), "go_goroutines")
}
