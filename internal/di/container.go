// Package di assembles the application from configuration.
package di

import (
	"net/http"

	"workbench-backend/internal/cache"
	"workbench-backend/internal/config"
	"workbench-backend/internal/domain"
	"workbench-backend/internal/observability"
	"workbench-backend/internal/repository"
	"workbench-backend/internal/service/summary"
	"workbench-backend/internal/store"
	storedynamo "workbench-backend/internal/store/dynamodb"

	"go.uber.org/zap"
)

// Logging bundles the logger with its runtime-adjustable level.
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// Container holds every wired component.
type Container struct {
	Config  *config.Config
	Logging *Logging
	Metrics *observability.Collector
	Tracing *observability.TracerProvider

	// Table is nil when the container runs on the in-memory store.
	Table       *storedynamo.Store
	Store       store.Store
	TableLayout repository.Config
	ClientCache *cache.ListCache[domain.Client]

	Clients         *repository.ClientRepository
	ProductElements *repository.ProductElementRepository
	WorkItems       *repository.WorkItemRepository
	Summaries       *summary.Service

	Router http.Handler
}

// Logger returns the application logger.
func (c *Container) Logger() *zap.Logger {
	return c.Logging.Logger
}

// ApplyConfig pushes the reloadable parts of a new configuration into the
// running components.
func (c *Container) ApplyConfig(cfg *config.Config) {
	if err := observability.SetLevel(c.Logging.Level, cfg.Logging.Level); err != nil {
		c.Logger().Warn("ignoring log level", zap.String("level", cfg.Logging.Level), zap.Error(err))
	}
	c.ClientCache.SetTTL(cfg.Cache.ClientListTTL)
	c.Config = cfg
}
