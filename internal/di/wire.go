//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"workbench-backend/internal/config"

	"github.com/google/wire"
)

// ObservabilityProviders builds logging, metrics and tracing.
var ObservabilityProviders = wire.NewSet(
	provideLogging,
	provideLogger,
	provideCollector,
	provideTracing,
)

// InfrastructureProviders builds the AWS clients and the decorated store.
var InfrastructureProviders = wire.NewSet(
	provideAWSConfig,
	provideDynamoDBClient,
	provideEventBridgeClient,
	provideTable,
	provideStore,
	provideTableLayout,
	provideSequence,
	provideClientCache,
	providePublisher,
)

// RepositoryProviders builds the repositories and the summary service.
var RepositoryProviders = wire.NewSet(
	provideClientRepository,
	provideProductElementRepository,
	provideWorkItemRepository,
	provideSummarizer,
	provideSummaryService,
)

// InitializeContainer wires the application against DynamoDB.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(
		ObservabilityProviders,
		InfrastructureProviders,
		RepositoryProviders,
		provideRouter,
		provideContainer,
	)
	return nil, nil, nil
}
