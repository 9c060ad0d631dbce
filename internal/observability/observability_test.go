package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, level, err := NewLogger("warn", false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, zapcore.WarnLevel, level.Level())
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, SetLevel(level, "debug"))
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "level changes apply to existing loggers")

	_, _, err = NewLogger("loud", true)
	assert.Error(t, err)
}

func TestSetLevel_DefaultsToInfo(t *testing.T) {
	atom := zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	require.NoError(t, SetLevel(atom, ""))
	assert.Equal(t, zapcore.InfoLevel, atom.Level())
}

func TestCollector(t *testing.T) {
	c := NewCollector("workbench")

	c.ObserveStoreCall("GetItem", "ok", 3*time.Millisecond)
	c.ObserveStoreCall("GetItem", "not_found", time.Millisecond)
	c.ObserveStoreCall("GetItem", "ok", time.Millisecond)
	c.CacheHit("clients")
	c.CacheMiss("clients")
	c.CacheMiss("clients")
	c.ObserveHTTPRequest("GET", "/healthz", "200", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.StoreCalls.WithLabelValues("GetItem", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreCalls.WithLabelValues("GetItem", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheHits.WithLabelValues("clients")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheMisses.WithLabelValues("clients")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "workbench_store_operations_total")
	assert.Contains(t, rec.Body.String(), "workbench_http_requests_total")
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("workbench")
	b := NewCollector("workbench")
	a.CacheHit("clients")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheHits.WithLabelValues("clients")))
}

func TestInitTracing_WithoutExporter(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Environment: "test"})
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer().Start(context.Background(), "probe")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}
