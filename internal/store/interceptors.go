package store

import (
	"context"
	"errors"
	"strings"
	"time"

	appErrors "workbench-backend/pkg/errors"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ============================================================================
// LOGGING
// ============================================================================

// Logging logs every store call. Successful and not-found calls are logged at
// debug level, unavailability at warn and everything else at error. Calls
// slower than slow are logged at warn regardless of outcome; zero disables
// slow-call logging.
func Logging(logger *zap.Logger, slow time.Duration) Interceptor {
	return func(ctx context.Context, op string, call func(context.Context) error) error {
		start := time.Now()
		err := call(ctx)
		elapsed := time.Since(start)

		fields := []zap.Field{zap.String("operation", op), zap.Duration("duration", elapsed)}
		switch {
		case err == nil || appErrors.IsNotFound(err):
			if slow > 0 && elapsed > slow {
				logger.Warn("slow store call", fields...)
			} else {
				logger.Debug("store call", fields...)
			}
		case appErrors.IsStoreUnavailable(err), appErrors.IsTransactionFailed(err), appErrors.IsConflict(err):
			logger.Warn("store call failed", append(fields, zap.Error(err))...)
		default:
			logger.Error("store call failed", append(fields, zap.Error(err))...)
		}
		return err
	}
}

// ============================================================================
// METRICS
// ============================================================================

// MetricsRecorder receives one observation per store call.
type MetricsRecorder interface {
	ObserveStoreCall(op, status string, duration time.Duration)
}

// Metrics reports call counts and latency by operation and outcome.
func Metrics(recorder MetricsRecorder) Interceptor {
	return func(ctx context.Context, op string, call func(context.Context) error) error {
		start := time.Now()
		err := call(ctx)
		recorder.ObserveStoreCall(op, Status(err), time.Since(start))
		return err
	}
}

// Status renders an error as a low-cardinality metric label.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	if t := appErrors.TypeOf(err); t != "" {
		return strings.ToLower(string(t))
	}
	return "error"
}

// ============================================================================
// TRACING
// ============================================================================

// Tracing opens a span per store call. NotFound is an expected outcome and
// does not mark the span as failed.
func Tracing(tracer trace.Tracer, table string) Interceptor {
	return func(ctx context.Context, op string, call func(context.Context) error) error {
		ctx, span := tracer.Start(ctx, "store."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", "dynamodb"),
				attribute.String("db.operation", op),
				attribute.String("db.table", table),
			),
		)
		defer span.End()

		err := call(ctx)
		if err != nil && !appErrors.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(appErrors.TypeOf(err)))
		}
		return err
	}
}

// ============================================================================
// CIRCUIT BREAKER
// ============================================================================

// CircuitBreakerConfig holds configuration for the store circuit breaker.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // requests allowed while half-open
	Interval         time.Duration // closed-state window after which counts reset
	Timeout          time.Duration // how long the circuit stays open
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultCircuitBreakerConfig returns a default configuration for the circuit breaker.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      10,
	}
}

// CircuitBreaker stops calling the backend after repeated unavailability.
// Only StoreUnavailable errors count as failures; NotFound, conflicts and
// validation errors are normal outcomes. While open, calls fail fast with
// StoreUnavailable and the circuit-open code.
func CircuitBreaker(config CircuitBreakerConfig, logger *zap.Logger) Interceptor {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !appErrors.IsStoreUnavailable(err)
		},
	})

	return func(ctx context.Context, op string, call func(context.Context) error) error {
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, call(ctx)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return appErrors.NewStoreUnavailable(op+" rejected: circuit "+config.Name+" is open", err).(*appErrors.AppError).
				WithCode(appErrors.CodeCircuitOpen)
		}
		return err
	}
}
