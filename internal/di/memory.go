package di

import (
	"context"

	"workbench-backend/internal/config"
	"workbench-backend/internal/events"
	"workbench-backend/internal/store/memory"
)

// InitializeInMemoryContainer wires the application on the in-memory store.
// No AWS clients are created and change events are discarded; it backs
// local runs and tests.
func InitializeInMemoryContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	logging, cleanup, err := provideLogging(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger := provideLogger(logging)
	collector := provideCollector()
	tp, cleanupTracing, err := provideTracing(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	s := decorateStore(memory.New(), cfg, logger, collector, tp)
	layout := provideTableLayout(cfg)
	clientCache := provideClientCache(cfg, collector)
	ids := provideSequence(s, logger)
	clients := provideClientRepository(s, ids, clientCache, layout, logger)
	elements := provideProductElementRepository(s, ids, layout, logger)
	workItems := provideWorkItemRepository(s, ids, layout, logger, events.Noop{})

	summarizer, err := provideSummarizer(ctx, cfg)
	if err != nil {
		cleanupTracing()
		cleanup()
		return nil, nil, err
	}
	summaries := provideSummaryService(summarizer, workItems, clients, logger)
	router := provideRouter(s, collector, cfg, logger)

	c := provideContainer(cfg, logging, collector, tp, nil, s, layout, clientCache, clients, elements, workItems, summaries, router)
	return c, func() {
		cleanupTracing()
		cleanup()
	}, nil
}
