package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	r := NewServer("1.2.3").Routes()

	rec := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "1.2.3", out["version"])
	assert.NotContains(t, out, "components")
}

func TestHealthDetail(t *testing.T) {
	r := NewServer("dev",
		WithCheck("processed", func(context.Context) error { return nil }),
	).Routes()

	rec := get(t, r, "/health?detail=true")
	assert.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, map[string]string{"processed": "ok"}, out.Components)
}

func TestHealthDetail_FailingCheck(t *testing.T) {
	r := NewServer("dev",
		WithCheck("processed", func(context.Context) error { return nil }),
		WithCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
	).Routes()

	rec := get(t, r, "/health?detail=true")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var out struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "degraded", out.Status)
	assert.Equal(t, "ok", out.Components["processed"])
	assert.Equal(t, "connection refused", out.Components["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "furbot_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	r := NewServer("dev", WithGatherer(reg)).Routes()
	rec := get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "furbot_test_total 3")
}

func TestUnknownRoute(t *testing.T) {
	r := NewServer("dev").Routes()
	assert.Equal(t, http.StatusNotFound, get(t, r, "/v1/agents").Code)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer("dev").ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)
}
