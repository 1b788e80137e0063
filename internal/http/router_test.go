package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/papers-light/internal/metrics"
)

type pingStub struct {
	err error
}

func (p pingStub) Ping(context.Context) error { return p.err }

func TestRouterHealth(t *testing.T) {
	t.Parallel()

	t.Run("ok when storage answers", func(t *testing.T) {
		t.Parallel()
		router := NewRouter(RouterConfig{Health: pingStub{}, Logger: discardLogger()})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("unavailable when ping fails", func(t *testing.T) {
		t.Parallel()
		router := NewRouter(RouterConfig{Health: pingStub{err: errors.New("closed")}, Logger: discardLogger()})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
	})

	t.Run("rejects other methods", func(t *testing.T) {
		t.Parallel()
		router := NewRouter(RouterConfig{Health: pingStub{}})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
	})
}

func TestRouterEndpoint(t *testing.T) {
	t.Parallel()
	router := NewRouter(RouterConfig{
		Endpoint:   "/api/papers",
		Dispatcher: newLibraryDispatcher(t, nil),
		Logger:     discardLogger(),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/papers?action=init", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":""}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/papers?action=init", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/request?action=init", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Not parallel: counts on the shared request counter must not interleave.
func TestRouterCountsRequests(t *testing.T) {
	router := NewRouter(RouterConfig{Dispatcher: newLibraryDispatcher(t, nil), Metrics: promhttp.Handler()})

	counter := metrics.HTTPRequestsTotal.WithLabelValues("request", "200")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/request?action=gettypes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "paperslight_http_requests_total")
	assert.Contains(t, rec.Body.String(), "paperslight_actions_total")
}

func TestRequestLoggerAttachesLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen *slog.Logger
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = LoggerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/request", nil))
	require.NotNil(t, seen)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "/request", entry["path"])
	assert.Equal(t, http.MethodGet, entry["method"])
	assert.EqualValues(t, 1, entry["request_id"])
}

func TestRecovererAnswers500(t *testing.T) {
	t.Parallel()
	handler := Recoverer(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/request", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"internal server error"}`, rec.Body.String())
}

func TestRouterAppliesMiddlewareInOrder(t *testing.T) {
	t.Parallel()
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewRouter(RouterConfig{
		Health:     pingStub{},
		Middleware: []func(http.Handler) http.Handler{mark("outer"), nil, mark("inner")},
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestClientKey(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/request", nil)
	req.RemoteAddr = "203.0.113.7:51000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "203.0.113.7", clientKey(req))

	req.RemoteAddr = "unix-socket"
	assert.Equal(t, "unix-socket", clientKey(req))
}
