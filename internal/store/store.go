// Package store defines the entity store used by the repositories: a thin,
// backend-neutral view of a single wide-column table addressed by a string
// partition key (PK) and sort key (SK), with secondary indexes, batch reads,
// atomic counters and all-or-nothing multi-item writes.
//
// Two implementations exist: store/dynamodb talks to AWS DynamoDB and
// store/memory keeps the table in process for tests and local tooling. Both
// honour the same conditional and transactional semantics.
package store

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Primary key attribute names shared by every item in the table.
const (
	AttrPK = "PK"
	AttrSK = "SK"
)

// MaxTransactItems is the DynamoDB limit on operations per transaction.
const MaxTransactItems = 100

// Item is a single table row.
type Item = map[string]types.AttributeValue

// Key identifies one item.
type Key struct {
	PK string
	SK string
}

// Attributes returns the key as DynamoDB attribute values.
func (k Key) Attributes() Item {
	return Item{
		AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

// KeyOf extracts the primary key of an item.
func KeyOf(item Item) Key {
	return Key{PK: StringAttr(item, AttrPK), SK: StringAttr(item, AttrSK)}
}

// Index describes a secondary index by its name and key attributes.
// The zero Index addresses the base table.
type Index struct {
	Name         string
	PartitionKey string
	SortKey      string
}

// IsTable reports whether the index is the base table.
func (i Index) IsTable() bool {
	return i.Name == ""
}

// PartitionAttr returns the attribute the index is partitioned on.
func (i Index) PartitionAttr() string {
	if i.IsTable() {
		return AttrPK
	}
	return i.PartitionKey
}

// SortAttr returns the attribute the index is sorted on.
func (i Index) SortAttr() string {
	if i.IsTable() {
		return AttrSK
	}
	return i.SortKey
}

// SortOp selects the sort key condition of a query.
type SortOp int

const (
	SortAny SortOp = iota
	SortBeginsWith
	SortBetween
	SortEqual
)

// SortCondition restricts the sort key of a query.
type SortCondition struct {
	Op    SortOp
	Value string
	Upper string // only for SortBetween
}

// BeginsWith matches sort keys with the given prefix.
func BeginsWith(prefix string) SortCondition {
	return SortCondition{Op: SortBeginsWith, Value: prefix}
}

// Between matches sort keys in the closed range [lower, upper].
func Between(lower, upper string) SortCondition {
	return SortCondition{Op: SortBetween, Value: lower, Upper: upper}
}

// QueryInput describes a partition-scoped query on the table or an index.
type QueryInput struct {
	Index          Index
	PartitionValue string
	Sort           SortCondition
	Projection     []string
	Descending     bool
}

// ConditionKind enumerates the conditions a write can be guarded by.
type ConditionKind int

const (
	CondExists ConditionKind = iota + 1
	CondNotExists
	CondEquals
)

// Condition guards a write. Conditions on one operation are ANDed.
type Condition struct {
	Kind  ConditionKind
	Attr  string
	Value any
}

// ItemExists requires the target item to exist.
func ItemExists() Condition { return Condition{Kind: CondExists, Attr: AttrPK} }

// ItemNotExists requires the target item to be absent.
func ItemNotExists() Condition { return Condition{Kind: CondNotExists, Attr: AttrPK} }

// AttrEquals requires attr to hold value.
func AttrEquals(attr string, value any) Condition {
	return Condition{Kind: CondEquals, Attr: attr, Value: value}
}

// Update is a partial rewrite of an item. Set values are plain Go values
// marshalled with attributevalue; Remove drops attributes.
type Update struct {
	Set        map[string]any
	Remove     []string
	Conditions []Condition
}

// OpKind enumerates transactional operation types.
type OpKind int

const (
	OpPut OpKind = iota + 1
	OpUpdate
	OpDelete
	OpConditionCheck
)

// Operation is one element of a transactional write.
type Operation struct {
	Kind       OpKind
	Key        Key
	Item       Item
	Update     Update
	Conditions []Condition
}

// Put builds a transactional put.
func Put(item Item, conds ...Condition) Operation {
	return Operation{Kind: OpPut, Key: KeyOf(item), Item: item, Conditions: conds}
}

// UpdateOp builds a transactional update.
func UpdateOp(key Key, upd Update) Operation {
	return Operation{Kind: OpUpdate, Key: key, Update: upd, Conditions: upd.Conditions}
}

// Delete builds a transactional delete.
func Delete(key Key, conds ...Condition) Operation {
	return Operation{Kind: OpDelete, Key: key, Conditions: conds}
}

// Check builds a transactional condition check.
func Check(key Key, conds ...Condition) Operation {
	return Operation{Kind: OpConditionCheck, Key: key, Conditions: conds}
}

// Store is the entity store contract consumed by the repositories.
//
// GetItem returns a NotFound error when the item is absent. Failed write
// conditions surface as Conflict errors carrying CodeConditionFailed;
// aborted transactions as TransactionFailed; backend outages, throttling and
// deadline expiry as StoreUnavailable.
type Store interface {
	GetItem(ctx context.Context, key Key, projection ...string) (Item, error)
	PutItem(ctx context.Context, item Item, conds ...Condition) error
	UpdateItem(ctx context.Context, key Key, upd Update) error
	DeleteItem(ctx context.Context, key Key, conds ...Condition) error
	Query(ctx context.Context, in QueryInput) ([]Item, error)
	BatchGetItems(ctx context.Context, keys []Key, projection ...string) ([]Item, error)
	TransactWrite(ctx context.Context, ops []Operation) error
	Increment(ctx context.Context, key Key, attr string, delta int64) (int64, error)
	Ping(ctx context.Context) error
}
