package dynamodb

import (
	"context"
	"fmt"
	"time"

	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// CreateTable creates the table with the given global secondary indexes in
// on-demand billing mode and waits until it is active. Every key attribute is
// a string.
func (s *Store) CreateTable(ctx context.Context, indexes []store.Index, maxWait time.Duration) error {
	attrs := map[string]bool{store.AttrPK: true, store.AttrSK: true}
	definitions := []types.AttributeDefinition{
		{AttributeName: aws.String(store.AttrPK), AttributeType: types.ScalarAttributeTypeS},
		{AttributeName: aws.String(store.AttrSK), AttributeType: types.ScalarAttributeTypeS},
	}

	gsis := make([]types.GlobalSecondaryIndex, 0, len(indexes))
	for _, idx := range indexes {
		for _, a := range []string{idx.PartitionKey, idx.SortKey} {
			if !attrs[a] {
				attrs[a] = true
				definitions = append(definitions, types.AttributeDefinition{
					AttributeName: aws.String(a),
					AttributeType: types.ScalarAttributeTypeS,
				})
			}
		}
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName: aws.String(idx.Name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(idx.PartitionKey), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(idx.SortKey), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	input := &dynamodb.CreateTableInput{
		TableName:            aws.String(s.tableName),
		AttributeDefinitions: definitions,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(store.AttrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(store.AttrSK), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
	if len(gsis) > 0 {
		input.GlobalSecondaryIndexes = gsis
	}

	if _, err := s.client.CreateTable(ctx, input); err != nil {
		return classify("CreateTable", store.Key{}, err)
	}
	s.opts.logger.Info("table created, waiting for it to become active", zap.String("table", s.tableName))

	if maxWait <= 0 {
		return nil
	}
	waiter := dynamodb.NewTableExistsWaiter(s.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)}, maxWait); err != nil {
		return appErrors.NewStoreUnavailable("table did not become active", err)
	}
	return nil
}

// Describe returns the current table description.
func (s *Store) Describe(ctx context.Context) (*types.TableDescription, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err != nil {
		return nil, classify("DescribeTable", store.Key{}, err)
	}
	return out.Table, nil
}

// VerifyTable checks that the table exists with the PK/SK key schema and that
// every index is present and active with the expected keys.
func (s *Store) VerifyTable(ctx context.Context, indexes []store.Index) error {
	table, err := s.Describe(ctx)
	if err != nil {
		return err
	}

	if len(table.KeySchema) != 2 ||
		aws.ToString(table.KeySchema[0].AttributeName) != store.AttrPK ||
		aws.ToString(table.KeySchema[1].AttributeName) != store.AttrSK {
		return appErrors.NewInternal(fmt.Sprintf("table %s does not use the %s/%s key schema", s.tableName, store.AttrPK, store.AttrSK), nil)
	}

	for _, idx := range indexes {
		if err := verifySecondaryIndex(table, idx); err != nil {
			return appErrors.NewInternal(err.Error(), nil)
		}
	}
	return nil
}

func verifySecondaryIndex(table *types.TableDescription, idx store.Index) error {
	for _, index := range table.GlobalSecondaryIndexes {
		if aws.ToString(index.IndexName) != idx.Name {
			continue
		}
		if len(index.KeySchema) != 2 {
			return fmt.Errorf("global secondary index %s has a simple primary key, expected a composite primary key", idx.Name)
		}
		if got := aws.ToString(index.KeySchema[0].AttributeName); got != idx.PartitionKey {
			return fmt.Errorf("global secondary index %s has partition key %s, expected %s", idx.Name, got, idx.PartitionKey)
		}
		if got := aws.ToString(index.KeySchema[1].AttributeName); got != idx.SortKey {
			return fmt.Errorf("global secondary index %s has sort key %s, expected %s", idx.Name, got, idx.SortKey)
		}
		if index.IndexStatus != types.IndexStatusActive {
			return fmt.Errorf("global secondary index %s is not active (status: %s)", idx.Name, index.IndexStatus)
		}
		if index.Projection == nil || index.Projection.ProjectionType != types.ProjectionTypeAll {
			return fmt.Errorf("global secondary index %s must project all attributes", idx.Name)
		}
		return nil
	}
	return fmt.Errorf("global secondary index %s not found", idx.Name)
}
