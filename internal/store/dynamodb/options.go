package dynamodb

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Option is a functional option for configuring a Store.
type Option func(*Options)

// Options holds the configuration for a Store.
type Options struct {
	timeout        time.Duration
	maxRetries     int
	queryBatchSize int
	backoff        time.Duration
	logger         *zap.Logger
	requestToken   func() string
}

func newOptions() *Options {
	return &Options{
		timeout:        5 * time.Second,
		maxRetries:     3,
		queryBatchSize: 100,
		backoff:        100 * time.Millisecond,
		logger:         zap.NewNop(),
		requestToken:   uuid.NewString,
	}
}

// WithTimeout bounds every backend call. Expiry surfaces as StoreUnavailable.
// Zero disables the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.timeout = d
	}
}

// WithMaxRetries sets how often unprocessed batch-get keys are retried.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.maxRetries = n
	}
}

// WithBackoff sets the base delay between batch-get retries.
func WithBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.backoff = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRequestToken overrides the generator of TransactWriteItems client
// request tokens.
func WithRequestToken(fn func() string) Option {
	return func(o *Options) {
		o.requestToken = fn
	}
}
