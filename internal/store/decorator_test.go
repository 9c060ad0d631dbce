package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"workbench-backend/internal/store"
	"workbench-backend/internal/store/memory"
	appErrors "workbench-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordedCall struct {
	op, status string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRecorder) ObserveStoreCall(op, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{op: op, status: status})
}

func TestDecorate_OrderAndPassThrough(t *testing.T) {
	var order []string
	tag := func(name string) store.Interceptor {
		return func(ctx context.Context, op string, call func(context.Context) error) error {
			order = append(order, name+">"+op)
			err := call(ctx)
			order = append(order, name+"<"+op)
			return err
		}
	}

	base := memory.New()
	s := store.Decorate(base, tag("outer"), tag("inner"))

	item := store.Key{PK: "CLIENT#1", SK: "METADATA"}.Attributes()
	item["Name"] = store.S("Acme")
	require.NoError(t, s.PutItem(context.Background(), item))

	got, err := s.GetItem(context.Background(), store.Key{PK: "CLIENT#1", SK: "METADATA"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", store.StringAttr(got, "Name"))

	n, err := s.Increment(context.Background(), store.Key{PK: "COUNTER", SK: "CLIENT"}, "Seq", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, []string{
		"outer>PutItem", "inner>PutItem", "inner<PutItem", "outer<PutItem",
		"outer>GetItem", "inner>GetItem", "inner<GetItem", "outer<GetItem",
		"outer>Increment", "inner>Increment", "inner<Increment", "outer<Increment",
	}, order)
}

func TestDecorate_NoInterceptorsReturnsBase(t *testing.T) {
	base := memory.New()
	assert.Same(t, base, store.Decorate(base))
}

func TestMetricsInterceptor(t *testing.T) {
	rec := &fakeRecorder{}
	base := memory.New()
	s := store.Decorate(base, store.Metrics(rec))

	_, err := s.GetItem(context.Background(), store.Key{PK: "CLIENT#9", SK: "METADATA"})
	require.Error(t, err)
	_, err = s.Query(context.Background(), store.QueryInput{PartitionValue: "CLIENT#9"})
	require.NoError(t, err)

	base.SetError("Ping", errors.New("boom"))
	require.Error(t, s.Ping(context.Background()))

	assert.Equal(t, []recordedCall{
		{op: "GetItem", status: "not_found"},
		{op: "Query", status: "ok"},
		{op: "Ping", status: "error"},
	}, rec.calls)
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := memory.New()
	s := store.Decorate(base, store.Logging(zap.New(core), 0))

	_, _ = s.GetItem(context.Background(), store.Key{PK: "CLIENT#1", SK: "METADATA"})
	base.SetError("TransactWrite", appErrors.NewStoreUnavailable("throttled", nil))
	_ = s.TransactWrite(context.Background(), []store.Operation{store.Delete(store.Key{PK: "A", SK: "B"})})
	base.SetError("Query", errors.New("corrupt"))
	_, _ = s.Query(context.Background(), store.QueryInput{PartitionValue: "X"})

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	assert.Equal(t, "Query", entries[2].ContextMap()["operation"])
}

func TestTracingInterceptor(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	base := memory.New()
	s := store.Decorate(base, store.Tracing(provider.Tracer("test"), "workbench"))

	_, _ = s.GetItem(context.Background(), store.Key{PK: "CLIENT#1", SK: "METADATA"})
	base.SetError("PutItem", appErrors.NewStoreUnavailable("down", nil))
	_ = s.PutItem(context.Background(), store.Key{PK: "CLIENT#1", SK: "METADATA"}.Attributes())

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "store.GetItem", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code, "not found is not a span error")
	assert.Equal(t, "store.PutItem", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestCircuitBreakerInterceptor(t *testing.T) {
	cfg := store.CircuitBreakerConfig{
		Name:             "store-test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}
	base := memory.New()
	s := store.Decorate(base, store.CircuitBreaker(cfg, zap.NewNop()))
	ctx := context.Background()

	// Expected outcomes never trip the breaker.
	for i := 0; i < 5; i++ {
		_, err := s.GetItem(ctx, store.Key{PK: "CLIENT#404", SK: "METADATA"})
		require.True(t, appErrors.IsNotFound(err))
	}

	base.SetError("Ping", appErrors.NewStoreUnavailable("down", nil))
	for i := 0; i < 5; i++ {
		_ = s.Ping(ctx)
	}

	base.ClearErrors()
	err := s.Ping(ctx)
	require.Error(t, err)
	assert.True(t, appErrors.IsStoreUnavailable(err))
	assert.Equal(t, appErrors.CodeCircuitOpen, appErrors.CodeOf(err))
}
