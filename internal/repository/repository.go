// Package repository implements the client, product-element and work-item
// data access on top of a single table. Relations, hierarchy, many-to-many
// links and index filtering are expressed through composite keys; multi-item
// changes go through transactional writes.
package repository

import (
	"context"
	"sort"
	"time"

	"workbench-backend/internal/domain"
	"workbench-backend/internal/sequence"
	"workbench-backend/internal/store"

	"go.uber.org/zap"
)

// IDGenerator allocates entity ids.
type IDGenerator interface {
	Next(ctx context.Context, prefix sequence.Prefix) (int64, error)
}

// ChangePublisher fans out committed work-item changes. Publishing is best
// effort: failures are logged and never undo the committed write.
type ChangePublisher interface {
	PublishWorkItemChanged(ctx context.Context, event domain.WorkItemChangeEvent) error
}

// Option configures a repository.
type Option func(*base)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		b.now = now
	}
}

// WithPublisher sets the publisher notified after work-item changes commit.
func WithPublisher(p ChangePublisher) Option {
	return func(b *base) {
		b.publisher = p
	}
}

// base holds what every repository needs.
type base struct {
	store  store.Store
	ids    IDGenerator
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	publisher ChangePublisher
}

func newBase(s store.Store, ids IDGenerator, cfg Config, logger *zap.Logger, opts []Option) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := base{
		store:  s,
		ids:    ids,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) timestamp() time.Time {
	return b.now().UTC()
}

// queryPartition returns the items of pk whose sort key starts with prefix.
func (b *base) queryPartition(ctx context.Context, pk, skPrefix string, descending bool) ([]store.Item, error) {
	return b.store.Query(ctx, store.QueryInput{
		PartitionValue: pk,
		Sort:           store.BeginsWith(skPrefix),
		Descending:     descending,
	})
}

func sortByID[T any](items []T, id func(T) int64) {
	sort.SliceStable(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}
