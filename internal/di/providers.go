package di

import (
	"context"
	"fmt"
	"time"

	"workbench-backend/internal/cache"
	"workbench-backend/internal/config"
	"workbench-backend/internal/domain"
	"workbench-backend/internal/events"
	"workbench-backend/internal/interfaces/http/admin"
	"workbench-backend/internal/observability"
	"workbench-backend/internal/repository"
	"workbench-backend/internal/sequence"
	"workbench-backend/internal/service/summary"
	"workbench-backend/internal/store"
	storedynamo "workbench-backend/internal/store/dynamodb"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	awsDynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsEventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Version is reported by the health endpoints. It is set at build time.
var Version = "dev"

const metricsNamespace = "workbench"

func provideLogging(cfg *config.Config) (*Logging, func(), error) {
	logger, level, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("environment", string(cfg.Environment)))
	return &Logging{Logger: logger, Level: level}, func() { _ = logger.Sync() }, nil
}

func provideLogger(l *Logging) *zap.Logger {
	return l.Logger
}

func provideCollector() *observability.Collector {
	return observability.NewCollector(metricsNamespace)
}

func provideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: "workbench-backend",
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func provideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	awsCfg, err := awsConfig.LoadDefaultConfig(loadCtx, awsConfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

func provideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsDynamodb.Client {
	return awsDynamodb.NewFromConfig(awsCfg, func(o *awsDynamodb.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
		o.RetryMaxAttempts = cfg.Database.MaxRetries + 1
		o.RetryMode = aws.RetryModeAdaptive
	})
}

func provideEventBridgeClient(awsCfg aws.Config) *awsEventbridge.Client {
	return awsEventbridge.NewFromConfig(awsCfg, func(o *awsEventbridge.Options) {
		o.RetryMaxAttempts = 3
	})
}

func provideTable(client *awsDynamodb.Client, cfg *config.Config, logger *zap.Logger) *storedynamo.Store {
	return storedynamo.New(client, cfg.Database.TableName,
		storedynamo.WithTimeout(cfg.Database.Timeout),
		storedynamo.WithMaxRetries(cfg.Database.MaxRetries),
		storedynamo.WithBackoff(cfg.Database.RetryBackoff),
		storedynamo.WithLogger(logger.Named("dynamodb")),
	)
}

// decorateStore wraps base with the interceptors in outermost-first order:
// logging sees every call including circuit rejections, the breaker sits
// closest to the backend.
func decorateStore(base store.Store, cfg *config.Config, logger *zap.Logger, collector *observability.Collector, tp *observability.TracerProvider) store.Store {
	interceptors := []store.Interceptor{
		store.Logging(logger.Named("store"), cfg.Logging.SlowCall),
		store.Metrics(collector),
		store.Tracing(tp.Tracer(), cfg.Database.TableName),
	}
	if cfg.Resilience.CircuitBreaker {
		cb := store.DefaultCircuitBreakerConfig(cfg.Database.TableName)
		cb.FailureThreshold = cfg.Resilience.FailureRatio
		cb.MinRequests = cfg.Resilience.MinRequests
		cb.Timeout = cfg.Resilience.OpenTimeout
		interceptors = append(interceptors, store.CircuitBreaker(cb, logger))
	}
	return store.Decorate(base, interceptors...)
}

func provideStore(table *storedynamo.Store, cfg *config.Config, logger *zap.Logger, collector *observability.Collector, tp *observability.TracerProvider) store.Store {
	return decorateStore(table, cfg, logger, collector, tp)
}

func provideTableLayout(cfg *config.Config) repository.Config {
	return repository.NewConfig(cfg.Database.TableName)
}

func provideSequence(s store.Store, logger *zap.Logger) *sequence.Generator {
	return sequence.NewGenerator(s, logger)
}

func provideClientCache(cfg *config.Config, collector *observability.Collector) *cache.ListCache[domain.Client] {
	return cache.NewListCache[domain.Client]("clients", cfg.Cache.ClientListTTL, cache.WithRecorder(collector))
}

func providePublisher(client *awsEventbridge.Client, cfg *config.Config, logger *zap.Logger) repository.ChangePublisher {
	if cfg.Events.BusName == "" {
		return events.Noop{}
	}
	return events.NewPublisher(client, cfg.Events.BusName, cfg.Events.Source, logger.Named("events"))
}

func provideClientRepository(s store.Store, ids *sequence.Generator, clients *cache.ListCache[domain.Client], layout repository.Config, logger *zap.Logger) *repository.ClientRepository {
	return repository.NewClientRepository(s, ids, clients, layout, logger)
}

func provideProductElementRepository(s store.Store, ids *sequence.Generator, layout repository.Config, logger *zap.Logger) *repository.ProductElementRepository {
	return repository.NewProductElementRepository(s, ids, layout, logger)
}

func provideWorkItemRepository(s store.Store, ids *sequence.Generator, layout repository.Config, logger *zap.Logger, publisher repository.ChangePublisher) *repository.WorkItemRepository {
	return repository.NewWorkItemRepository(s, ids, layout, logger, repository.WithPublisher(publisher))
}

func provideSummarizer(ctx context.Context, cfg *config.Config) (summary.Summarizer, error) {
	model, err := summary.NewModel(ctx, summary.ProviderConfig{
		Provider: cfg.AI.Provider,
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	if model == nil {
		return summary.Disabled{}, nil
	}
	return summary.NewLLM(model), nil
}

func provideSummaryService(summarizer summary.Summarizer, workItems *repository.WorkItemRepository, clients *repository.ClientRepository, logger *zap.Logger) *summary.Service {
	return summary.NewService(summarizer, workItems, clients, logger.Named("summary"))
}

func provideRouter(s store.Store, collector *observability.Collector, cfg *config.Config, logger *zap.Logger) *chi.Mux {
	return admin.NewRouter(
		map[string]admin.Pinger{"database": s},
		collector,
		logger.Named("admin"),
		admin.Options{Version: Version, CheckTimeout: cfg.Database.Timeout},
	)
}

func provideContainer(
	cfg *config.Config,
	logging *Logging,
	collector *observability.Collector,
	tp *observability.TracerProvider,
	table *storedynamo.Store,
	s store.Store,
	layout repository.Config,
	clientCache *cache.ListCache[domain.Client],
	clients *repository.ClientRepository,
	elements *repository.ProductElementRepository,
	workItems *repository.WorkItemRepository,
	summaries *summary.Service,
	router *chi.Mux,
) *Container {
	return &Container{
		Config:          cfg,
		Logging:         logging,
		Metrics:         collector,
		Tracing:         tp,
		Table:           table,
		Store:           s,
		TableLayout:     layout,
		ClientCache:     clientCache,
		Clients:         clients,
		ProductElements: elements,
		WorkItems:       workItems,
		Summaries:       summaries,
		Router:          router,
	}
}
