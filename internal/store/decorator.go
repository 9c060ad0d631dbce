package store

import (
	"context"
)

// Interceptor wraps a single Store call. op is the Store method name and call
// performs the wrapped operation with the (possibly derived) context.
type Interceptor func(ctx context.Context, op string, call func(context.Context) error) error

// Decorate wraps base so every call passes through the interceptors.
// The first interceptor is the outermost layer.
// Order used by the container: Logging -> Metrics -> Tracing -> CircuitBreaker -> base
func Decorate(base Store, interceptors ...Interceptor) Store {
	if len(interceptors) == 0 {
		return base
	}
	return &decoratedStore{base: base, chain: chain(interceptors)}
}

func chain(interceptors []Interceptor) Interceptor {
	return func(ctx context.Context, op string, call func(context.Context) error) error {
		next := call
		for i := len(interceptors) - 1; i >= 0; i-- {
			ic, inner := interceptors[i], next
			next = func(ctx context.Context) error {
				return ic(ctx, op, inner)
			}
		}
		return next(ctx)
	}
}

type decoratedStore struct {
	base  Store
	chain Interceptor
}

func (d *decoratedStore) GetItem(ctx context.Context, key Key, projection ...string) (Item, error) {
	var out Item
	err := d.chain(ctx, "GetItem", func(ctx context.Context) error {
		var err error
		out, err = d.base.GetItem(ctx, key, projection...)
		return err
	})
	return out, err
}

func (d *decoratedStore) PutItem(ctx context.Context, item Item, conds ...Condition) error {
	return d.chain(ctx, "PutItem", func(ctx context.Context) error {
		return d.base.PutItem(ctx, item, conds...)
	})
}

func (d *decoratedStore) UpdateItem(ctx context.Context, key Key, upd Update) error {
	return d.chain(ctx, "UpdateItem", func(ctx context.Context) error {
		return d.base.UpdateItem(ctx, key, upd)
	})
}

func (d *decoratedStore) DeleteItem(ctx context.Context, key Key, conds ...Condition) error {
	return d.chain(ctx, "DeleteItem", func(ctx context.Context) error {
		return d.base.DeleteItem(ctx, key, conds...)
	})
}

func (d *decoratedStore) Query(ctx context.Context, in QueryInput) ([]Item, error) {
	var out []Item
	err := d.chain(ctx, "Query", func(ctx context.Context) error {
		var err error
		out, err = d.base.Query(ctx, in)
		return err
	})
	return out, err
}

func (d *decoratedStore) BatchGetItems(ctx context.Context, keys []Key, projection ...string) ([]Item, error) {
	var out []Item
	err := d.chain(ctx, "BatchGetItems", func(ctx context.Context) error {
		var err error
		out, err = d.base.BatchGetItems(ctx, keys, projection...)
		return err
	})
	return out, err
}

func (d *decoratedStore) TransactWrite(ctx context.Context, ops []Operation) error {
	return d.chain(ctx, "TransactWrite", func(ctx context.Context) error {
		return d.base.TransactWrite(ctx, ops)
	})
}

func (d *decoratedStore) Increment(ctx context.Context, key Key, attr string, delta int64) (int64, error) {
	var out int64
	err := d.chain(ctx, "Increment", func(ctx context.Context) error {
		var err error
		out, err = d.base.Increment(ctx, key, attr, delta)
		return err
	})
	return out, err
}

func (d *decoratedStore) Ping(ctx context.Context) error {
	return d.chain(ctx, "Ping", func(ctx context.Context) error {
		return d.base.Ping(ctx)
	})
}
