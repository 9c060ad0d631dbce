package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"workbench-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("Should generate request ID when not provided", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		var seen string
		RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(w, req)

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("Should use provided request ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "test-request-id")
		w := httptest.NewRecorder()

		RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-request-id", GetRequestID(r.Context()))
		})).ServeHTTP(w, req)

		assert.Equal(t, "test-request-id", w.Header().Get(RequestIDHeader))
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("Should handle panic gracefully", func(t *testing.T) {
		w := httptest.NewRecorder()
		Recovery(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("test panic")
		})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "error")
	})

	t.Run("Should pass through normal requests", func(t *testing.T) {
		w := httptest.NewRecorder()
		Recovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
		})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

type observation struct {
	method, route, status string
}

type recorder struct {
	seen []observation
}

func (r *recorder) ObserveHTTPRequest(method, route, status string, _ time.Duration) {
	r.seen = append(r.seen, observation{method, route, status})
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &recorder{}
	router := chi.NewRouter()
	router.Use(Metrics(rec))
	router.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	router.Get("/plain", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/items/1", "/items/2", "/plain", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, rec.seen, 4)
	assert.Equal(t, observation{"GET", "/items/{id}", "202"}, rec.seen[0])
	assert.Equal(t, observation{"GET", "/items/{id}", "202"}, rec.seen[1])
	assert.Equal(t, observation{"GET", "/plain", "200"}, rec.seen[2])
	assert.Equal(t, "404", rec.seen[3].status)
}
