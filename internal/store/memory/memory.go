// Package memory provides an in-process implementation of store.Store.
// It is useful for unit testing repositories without a real table and for
// running the CLI against a throwaway dataset. Conditional writes, sparse
// secondary indexes, atomic counters and all-or-nothing transactions behave
// like their DynamoDB counterparts.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Store keeps every item of the table in a map guarded by a mutex.
type Store struct {
	mu    sync.RWMutex
	items map[store.Key]store.Item

	// For testing error scenarios
	shouldFailOn map[string]error
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory table.
func New() *Store {
	return &Store{
		items:        make(map[store.Key]store.Item),
		shouldFailOn: make(map[string]error),
	}
}

// SetError configures the store to return an error for a specific method.
func (s *Store) SetError(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFailOn[method] = err
}

// ClearErrors removes all configured errors.
func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFailOn = make(map[string]error)
}

// Len returns the number of items in the table.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot returns a copy of every item keyed by primary key.
func (s *Store) Snapshot() map[store.Key]store.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[store.Key]store.Item, len(s.items))
	for k, v := range s.items {
		out[k] = clone(v)
	}
	return out
}

func (s *Store) checkError(method string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, exists := s.shouldFailOn[method]; exists {
		return err
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, key store.Key, projection ...string) (store.Item, error) {
	if err := s.checkError("GetItem"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, appErrors.NewStoreUnavailable("GetItem", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok {
		return nil, appErrors.NewNotFoundf("item %s/%s not found", key.PK, key.SK)
	}
	return project(item, projection), nil
}

func (s *Store) PutItem(ctx context.Context, item store.Item, conds ...store.Condition) error {
	if err := s.checkError("PutItem"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return appErrors.NewStoreUnavailable("PutItem", err)
	}
	key := store.KeyOf(item)
	if key.PK == "" || key.SK == "" {
		return appErrors.NewValidation("item is missing PK or SK")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := evaluate(s.items[key], conds)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrConditionFailed("PutItem", key)
	}
	s.items[key] = clone(item)
	return nil
}

func (s *Store) UpdateItem(ctx context.Context, key store.Key, upd store.Update) error {
	if err := s.checkError("UpdateItem"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return appErrors.NewStoreUnavailable("UpdateItem", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := evaluate(s.items[key], upd.Conditions)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrConditionFailed("UpdateItem", key)
	}
	updated, err := applyUpdate(s.items[key], key, upd)
	if err != nil {
		return err
	}
	s.items[key] = updated
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, key store.Key, conds ...store.Condition) error {
	if err := s.checkError("DeleteItem"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return appErrors.NewStoreUnavailable("DeleteItem", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := evaluate(s.items[key], conds)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrConditionFailed("DeleteItem", key)
	}
	delete(s.items, key)
	return nil
}

func (s *Store) Query(ctx context.Context, in store.QueryInput) ([]store.Item, error) {
	if err := s.checkError("Query"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, appErrors.NewStoreUnavailable("Query", err)
	}

	partAttr, sortAttr := in.Index.PartitionAttr(), in.Index.SortAttr()

	s.mu.RLock()
	var matched []store.Item
	for _, item := range s.items {
		if store.StringAttr(item, partAttr) != in.PartitionValue {
			continue
		}
		sortValue, ok := sortKeyString(item[sortAttr])
		if !ok {
			// Sparse index: items without the sort attribute are not projected.
			continue
		}
		if !matchSort(sortValue, in.Sort) {
			continue
		}
		matched = append(matched, item)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if c := compareAttr(a[sortAttr], b[sortAttr]); c != 0 {
			return c < 0
		}
		ka, kb := store.KeyOf(a), store.KeyOf(b)
		if ka.PK != kb.PK {
			return ka.PK < kb.PK
		}
		return ka.SK < kb.SK
	})
	if in.Descending {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	out := make([]store.Item, 0, len(matched))
	for _, item := range matched {
		out = append(out, project(item, in.Projection))
	}
	return out, nil
}

func (s *Store) BatchGetItems(ctx context.Context, keys []store.Key, projection ...string) ([]store.Item, error) {
	if err := s.checkError("BatchGetItems"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, appErrors.NewStoreUnavailable("BatchGetItems", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Item, 0, len(keys))
	seen := make(map[store.Key]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		if item, ok := s.items[key]; ok {
			out = append(out, project(item, projection))
		}
	}
	return out, nil
}

func (s *Store) TransactWrite(ctx context.Context, ops []store.Operation) error {
	if err := s.checkError("TransactWrite"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return appErrors.NewStoreUnavailable("TransactWrite", err)
	}
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > store.MaxTransactItems {
		return appErrors.NewValidationf("transaction has %d operations, limit is %d", len(ops), store.MaxTransactItems)
	}

	touched := make(map[store.Key]bool, len(ops))
	for _, op := range ops {
		if touched[op.Key] {
			return appErrors.NewValidationf("transaction touches %s/%s more than once", op.Key.PK, op.Key.SK)
		}
		touched[op.Key] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Evaluate every condition against the pre-transaction state first.
	for i, op := range ops {
		ok, err := evaluate(s.items[op.Key], op.Conditions)
		if err != nil {
			return err
		}
		if !ok {
			return appErrors.NewTransactionFailed(
				fmt.Sprintf("transaction cancelled: condition failed on operation %d (%s/%s)", i, op.Key.PK, op.Key.SK), nil,
			).(*appErrors.AppError).WithCode(appErrors.CodeConditionFailed)
		}
	}

	staged := make(map[store.Key]store.Item, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case store.OpPut:
			staged[op.Key] = clone(op.Item)
		case store.OpUpdate:
			updated, err := applyUpdate(s.items[op.Key], op.Key, op.Update)
			if err != nil {
				return appErrors.NewTransactionFailed("transaction cancelled", err)
			}
			staged[op.Key] = updated
		case store.OpDelete:
			staged[op.Key] = nil
		case store.OpConditionCheck:
		default:
			return appErrors.NewValidationf("unsupported operation type: %d", op.Kind)
		}
	}

	for key, item := range staged {
		if item == nil {
			delete(s.items, key)
			continue
		}
		s.items[key] = item
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, key store.Key, attr string, delta int64) (int64, error) {
	if err := s.checkError("Increment"); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, appErrors.NewStoreUnavailable("Increment", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.items[key]
	if item == nil {
		item = key.Attributes()
	} else {
		item = clone(item)
	}
	next := store.NumberAttr(item, attr) + delta
	item[attr] = store.N(next)
	s.items[key] = item
	return next, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.checkError("Ping"); err != nil {
		return err
	}
	return nil
}

func evaluate(current store.Item, conds []store.Condition) (bool, error) {
	for _, c := range conds {
		switch c.Kind {
		case store.CondExists:
			if current == nil || !store.HasAttr(current, c.Attr) {
				return false, nil
			}
		case store.CondNotExists:
			if current != nil && store.HasAttr(current, c.Attr) {
				return false, nil
			}
		case store.CondEquals:
			want, err := attributevalue.Marshal(c.Value)
			if err != nil {
				return false, appErrors.NewInternal("failed to marshal condition value", err)
			}
			if current == nil || !reflect.DeepEqual(current[c.Attr], want) {
				return false, nil
			}
		default:
			return false, appErrors.NewValidationf("unsupported condition kind: %d", c.Kind)
		}
	}
	return true, nil
}

func applyUpdate(current store.Item, key store.Key, upd store.Update) (store.Item, error) {
	var next store.Item
	if current == nil {
		next = key.Attributes()
	} else {
		next = clone(current)
	}
	for name, value := range upd.Set {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return nil, appErrors.NewInternal(fmt.Sprintf("failed to marshal %s", name), err)
		}
		next[name] = av
	}
	for _, name := range upd.Remove {
		delete(next, name)
	}
	return next, nil
}

func project(item store.Item, projection []string) store.Item {
	if len(projection) == 0 {
		return clone(item)
	}
	out := make(store.Item, len(projection))
	for _, name := range projection {
		if v, ok := item[name]; ok {
			out[name] = v
		}
	}
	return out
}

func clone(item store.Item) store.Item {
	out := make(store.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func sortKeyString(av types.AttributeValue) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, true
	case *types.AttributeValueMemberN:
		return v.Value, true
	default:
		return "", false
	}
}

func matchSort(value string, cond store.SortCondition) bool {
	switch cond.Op {
	case store.SortBeginsWith:
		return strings.HasPrefix(value, cond.Value)
	case store.SortBetween:
		return value >= cond.Value && value <= cond.Upper
	case store.SortEqual:
		return value == cond.Value
	default:
		return true
	}
}

func compareAttr(a, b types.AttributeValue) int {
	if an, ok := a.(*types.AttributeValueMemberN); ok {
		if bn, ok := b.(*types.AttributeValueMemberN); ok {
			x, _ := strconv.ParseFloat(an.Value, 64)
			y, _ := strconv.ParseFloat(bn.Value, 64)
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	as, _ := sortKeyString(a)
	bs, _ := sortKeyString(b)
	return strings.Compare(as, bs)
}
