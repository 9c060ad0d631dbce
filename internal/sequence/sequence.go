// Package sequence allocates monotonically increasing numeric ids per entity
// prefix using the store's atomic counter.
package sequence

import (
	"context"

	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"

	"go.uber.org/zap"
)

// Counter items live under this partition, one sort key per prefix.
const (
	CounterPartition = "COUNTER"
	CounterAttr      = "Seq"
)

// Prefix names an independent id sequence.
type Prefix string

const (
	Client                 Prefix = "CLIENT"
	WorkItem               Prefix = "WI"
	ProductElement         Prefix = "PE"
	ClientDocument         Prefix = "DOC-CLIENT"
	ProductElementDocument Prefix = "DOC-PE"
	WorkItemDocument       Prefix = "DOC-WI"
)

// Prefixes lists every known sequence.
var Prefixes = []Prefix{Client, WorkItem, ProductElement, ClientDocument, ProductElementDocument, WorkItemDocument}

// Generator hands out ids. It never retries; callers decide on retry policy.
type Generator struct {
	store  store.Store
	logger *zap.Logger
}

// NewGenerator creates a new sequence generator.
func NewGenerator(s store.Store, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{store: s, logger: logger}
}

// Next atomically increments the counter for prefix and returns the new value.
func (g *Generator) Next(ctx context.Context, prefix Prefix) (int64, error) {
	if prefix == "" {
		return 0, appErrors.NewValidation("sequence prefix is required")
	}

	id, err := g.store.Increment(ctx, store.Key{PK: CounterPartition, SK: string(prefix)}, CounterAttr, 1)
	if err != nil {
		g.logger.Warn("sequence allocation failed", zap.String("prefix", string(prefix)), zap.Error(err))
		if appErrors.TypeOf(err) == "" {
			return 0, appErrors.NewStoreUnavailable("allocate "+string(prefix)+" id", err)
		}
		return 0, appErrors.Wrap(err, "allocate "+string(prefix)+" id")
	}
	return id, nil
}

// Current returns the last allocated value for prefix, or zero if none.
func (g *Generator) Current(ctx context.Context, prefix Prefix) (int64, error) {
	item, err := g.store.GetItem(ctx, store.Key{PK: CounterPartition, SK: string(prefix)}, CounterAttr)
	if appErrors.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, appErrors.Wrap(err, "read "+string(prefix)+" sequence")
	}
	return store.NumberAttr(item, CounterAttr), nil
}
