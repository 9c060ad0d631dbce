// Package dynamodb implements store.Store on top of AWS DynamoDB.
// This is the only layer that should have knowledge of DynamoDB specifics.
package dynamodb

import (
	"context"
	"sort"
	"time"

	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Store is the DynamoDB-backed entity store for one table.
type Store struct {
	client    API
	tableName string
	opts      *Options
}

var _ store.Store = (*Store)(nil)

// New creates a Store for tableName using the given client.
func New(client API, tableName string, opts ...Option) *Store {
	options := newOptions()
	for _, o := range opts {
		o(options)
	}
	return &Store{
		client:    client,
		tableName: tableName,
		opts:      options,
	}
}

// TableName returns the table this store addresses.
func (s *Store) TableName() string {
	return s.tableName
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.timeout)
}

// GetItem performs a strongly consistent read of one item.
func (s *Store) GetItem(ctx context.Context, key store.Key, projection ...string) (store.Item, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key.Attributes(),
		ConsistentRead: aws.Bool(true),
	}
	if len(projection) > 0 {
		expr, err := expression.NewBuilder().WithProjection(projectionBuilder(projection)).Build()
		if err != nil {
			return nil, appErrors.NewInternal("failed to build projection", err)
		}
		input.ProjectionExpression = expr.Projection()
		input.ExpressionAttributeNames = expr.Names()
	}

	result, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, classify("GetItem", key, err)
	}
	if len(result.Item) == 0 {
		return nil, appErrors.NewNotFoundf("item %s/%s not found", key.PK, key.SK)
	}
	return result.Item, nil
}

// PutItem creates or replaces an item, optionally guarded by conditions.
func (s *Store) PutItem(ctx context.Context, item store.Item, conds ...store.Condition) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if len(conds) > 0 {
		expr, err := expression.NewBuilder().WithCondition(conditionBuilder(conds)).Build()
		if err != nil {
			return appErrors.NewInternal("failed to build condition", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	_, err := s.client.PutItem(ctx, input)
	return classify("PutItem", store.KeyOf(item), err)
}

// UpdateItem applies SET/REMOVE clauses to one item.
func (s *Store) UpdateItem(ctx context.Context, key store.Key, upd store.Update) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	expr, err := updateExpression(upd)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       key.Attributes(),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return classify("UpdateItem", key, err)
}

// DeleteItem removes one item.
func (s *Store) DeleteItem(ctx context.Context, key store.Key, conds ...store.Condition) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       key.Attributes(),
	}
	if len(conds) > 0 {
		expr, err := expression.NewBuilder().WithCondition(conditionBuilder(conds)).Build()
		if err != nil {
			return appErrors.NewInternal("failed to build condition", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	_, err := s.client.DeleteItem(ctx, input)
	return classify("DeleteItem", key, err)
}

// Query reads every page of a partition-scoped query.
func (s *Store) Query(ctx context.Context, in store.QueryInput) ([]store.Item, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input, err := s.queryInput(in)
	if err != nil {
		return nil, err
	}

	var items []store.Item
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("Query", store.Key{PK: in.PartitionValue}, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (s *Store) queryInput(in store.QueryInput) (*dynamodb.QueryInput, error) {
	keyCond := expression.Key(in.Index.PartitionAttr()).Equal(expression.Value(in.PartitionValue))
	sortKey := expression.Key(in.Index.SortAttr())
	switch in.Sort.Op {
	case store.SortBeginsWith:
		keyCond = keyCond.And(sortKey.BeginsWith(in.Sort.Value))
	case store.SortBetween:
		keyCond = keyCond.And(sortKey.Between(expression.Value(in.Sort.Value), expression.Value(in.Sort.Upper)))
	case store.SortEqual:
		keyCond = keyCond.And(sortKey.Equal(expression.Value(in.Sort.Value)))
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if len(in.Projection) > 0 {
		builder = builder.WithProjection(projectionBuilder(in.Projection))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, appErrors.NewInternal("failed to build query expression", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ProjectionExpression:      expr.Projection(),
		ScanIndexForward:          aws.Bool(!in.Descending),
	}
	if !in.Index.IsTable() {
		input.IndexName = aws.String(in.Index.Name)
	}
	return input, nil
}

// BatchGetItems retrieves multiple items using BatchGetItem.
// Automatically handles chunking (100 keys max per request) and retries
// unprocessed keys with exponential backoff. Missing items are skipped.
func (s *Store) BatchGetItems(ctx context.Context, keys []store.Key, projection ...string) ([]store.Item, error) {
	if len(keys) == 0 {
		return []store.Item{}, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// BatchGetItem rejects requests containing the same key twice.
	unique := make([]store.Key, 0, len(keys))
	seen := make(map[store.Key]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			unique = append(unique, k)
		}
	}

	var results []store.Item
	for i := 0; i < len(unique); i += s.opts.queryBatchSize {
		end := i + s.opts.queryBatchSize
		if end > len(unique) {
			end = len(unique)
		}
		chunk, err := s.batchGetChunk(ctx, unique[i:end], projection)
		if err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}

func (s *Store) batchGetChunk(ctx context.Context, keys []store.Key, projection []string) ([]store.Item, error) {
	request := types.KeysAndAttributes{ConsistentRead: aws.Bool(true)}
	for _, k := range keys {
		request.Keys = append(request.Keys, k.Attributes())
	}
	if len(projection) > 0 {
		// The table key is always needed to match results back to callers.
		expr, err := expression.NewBuilder().WithProjection(projectionBuilder(withKeyAttrs(projection))).Build()
		if err != nil {
			return nil, appErrors.NewInternal("failed to build projection", err)
		}
		request.ProjectionExpression = expr.Projection()
		request.ExpressionAttributeNames = expr.Names()
	}

	input := &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{s.tableName: request},
	}

	var results []store.Item
	retryCount := 0
	for {
		output, err := s.client.BatchGetItem(ctx, input)
		if err != nil {
			return nil, classify("BatchGetItem", store.Key{}, err)
		}
		results = append(results, output.Responses[s.tableName]...)

		unprocessed, ok := output.UnprocessedKeys[s.tableName]
		if !ok || len(unprocessed.Keys) == 0 {
			return results, nil
		}
		if retryCount >= s.opts.maxRetries {
			s.opts.logger.Warn("max retries exceeded for batch get",
				zap.Int("unprocessed", len(unprocessed.Keys)))
			return nil, appErrors.NewStoreUnavailable("BatchGetItem left keys unprocessed", nil).(*appErrors.AppError).
				WithCode(appErrors.CodeThrottled)
		}

		// Exponential backoff
		select {
		case <-ctx.Done():
			return nil, classify("BatchGetItem", store.Key{}, ctx.Err())
		case <-time.After(time.Duration(1<<retryCount) * s.opts.backoff):
		}

		input.RequestItems = map[string]types.KeysAndAttributes{s.tableName: unprocessed}
		retryCount++
	}
}

// TransactWrite performs multiple write operations atomically.
func (s *Store) TransactWrite(ctx context.Context, ops []store.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > store.MaxTransactItems {
		return appErrors.NewValidationf("transaction has %d operations, limit is %d", len(ops), store.MaxTransactItems)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items := make([]types.TransactWriteItem, 0, len(ops))
	for _, op := range ops {
		item, err := s.buildTransactItem(op)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems:      items,
		ClientRequestToken: aws.String(s.opts.requestToken()),
	})
	if err != nil {
		return classify("TransactWriteItems", store.Key{}, err)
	}
	return nil
}

// Increment atomically adds delta to a numeric attribute, creating the item
// on first use, and returns the new value.
func (s *Store) Increment(ctx context.Context, key store.Key, attr string, delta int64) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	update := expression.Add(expression.Name(attr), expression.Value(delta))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, appErrors.NewInternal("failed to build increment", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       key.Attributes(),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, classify("Increment", key, err)
	}
	if !store.HasAttr(out.Attributes, attr) {
		return 0, appErrors.NewInternal("increment returned no value for "+attr, nil)
	}
	return store.NumberAttr(out.Attributes, attr), nil
}

// Ping checks that the table is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	return classify("DescribeTable", store.Key{}, err)
}

func (s *Store) buildTransactItem(op store.Operation) (types.TransactWriteItem, error) {
	var condExpr *expression.Expression
	if len(op.Conditions) > 0 && op.Kind != store.OpUpdate {
		expr, err := expression.NewBuilder().WithCondition(conditionBuilder(op.Conditions)).Build()
		if err != nil {
			return types.TransactWriteItem{}, appErrors.NewInternal("failed to build condition", err)
		}
		condExpr = &expr
	}

	switch op.Kind {
	case store.OpPut:
		if op.Item == nil {
			return types.TransactWriteItem{}, appErrors.NewValidation("item is required for PUT operation")
		}
		put := &types.Put{TableName: aws.String(s.tableName), Item: op.Item}
		if condExpr != nil {
			put.ConditionExpression = condExpr.Condition()
			put.ExpressionAttributeNames = condExpr.Names()
			put.ExpressionAttributeValues = condExpr.Values()
		}
		return types.TransactWriteItem{Put: put}, nil

	case store.OpUpdate:
		expr, err := updateExpression(op.Update)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		return types.TransactWriteItem{Update: &types.Update{
			TableName:                 aws.String(s.tableName),
			Key:                       op.Key.Attributes(),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}, nil

	case store.OpDelete:
		del := &types.Delete{TableName: aws.String(s.tableName), Key: op.Key.Attributes()}
		if condExpr != nil {
			del.ConditionExpression = condExpr.Condition()
			del.ExpressionAttributeNames = condExpr.Names()
			del.ExpressionAttributeValues = condExpr.Values()
		}
		return types.TransactWriteItem{Delete: del}, nil

	case store.OpConditionCheck:
		if condExpr == nil {
			return types.TransactWriteItem{}, appErrors.NewValidation("condition expression is required for CONDITION_CHECK operation")
		}
		return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(s.tableName),
			Key:                       op.Key.Attributes(),
			ConditionExpression:       condExpr.Condition(),
			ExpressionAttributeNames:  condExpr.Names(),
			ExpressionAttributeValues: condExpr.Values(),
		}}, nil

	default:
		return types.TransactWriteItem{}, appErrors.NewValidationf("unsupported operation type: %d", op.Kind)
	}
}

func updateExpression(upd store.Update) (expression.Expression, error) {
	if len(upd.Set) == 0 && len(upd.Remove) == 0 {
		return expression.Expression{}, appErrors.NewValidation("update has no SET or REMOVE clauses")
	}

	names := make([]string, 0, len(upd.Set))
	for name := range upd.Set {
		names = append(names, name)
	}
	sort.Strings(names)

	var update expression.UpdateBuilder
	for _, name := range names {
		update = update.Set(expression.Name(name), expression.Value(upd.Set[name]))
	}
	for _, name := range upd.Remove {
		update = update.Remove(expression.Name(name))
	}

	builder := expression.NewBuilder().WithUpdate(update)
	if len(upd.Conditions) > 0 {
		builder = builder.WithCondition(conditionBuilder(upd.Conditions))
	}
	expr, err := builder.Build()
	if err != nil {
		return expression.Expression{}, appErrors.NewInternal("failed to build update expression", err)
	}
	return expr, nil
}

func conditionBuilder(conds []store.Condition) expression.ConditionBuilder {
	parts := make([]expression.ConditionBuilder, 0, len(conds))
	for _, c := range conds {
		name := expression.Name(c.Attr)
		switch c.Kind {
		case store.CondExists:
			parts = append(parts, expression.AttributeExists(name))
		case store.CondNotExists:
			parts = append(parts, expression.AttributeNotExists(name))
		case store.CondEquals:
			parts = append(parts, name.Equal(expression.Value(c.Value)))
		}
	}
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return expression.And(parts[0], parts[1])
	default:
		return expression.And(parts[0], parts[1], parts[2:]...)
	}
}

func projectionBuilder(attrs []string) expression.ProjectionBuilder {
	names := make([]expression.NameBuilder, 0, len(attrs)-1)
	for _, a := range attrs[1:] {
		names = append(names, expression.Name(a))
	}
	return expression.NamesList(expression.Name(attrs[0]), names...)
}

func withKeyAttrs(projection []string) []string {
	out := []string{store.AttrPK, store.AttrSK}
	for _, p := range projection {
		if p != store.AttrPK && p != store.AttrSK {
			out = append(out, p)
		}
	}
	return out
}
