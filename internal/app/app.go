// Package app wires configuration, storage, the LLM gateway and the services
// into one process-wide container shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"popsim/internal/cache"
	"popsim/internal/config"
	"popsim/internal/generation"
	"popsim/internal/llm"
	"popsim/internal/messaging"
	"popsim/internal/progress"
	"popsim/internal/repository"
	"popsim/internal/service"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	connectTimeout = 5 * time.Second
	eventBuffer    = 256
)

// App holds every long-lived dependency of the process
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Repos    *repository.Repos
	Runs     cache.RunCache
	Stats    cache.StatsCache
	Fallback *repository.FallbackStore
	Gateway  llm.Gateway
	Bus      *progress.Bus
	Broker   *messaging.Broker

	Runner      *service.Runner
	Zones       *service.ZoneService
	Clusters    *service.ClusterService
	Agents      *service.AgentService
	Simulations *service.SimulationService
	Polls       *service.PollService

	closers []func() error
}

// New connects the backing stores and builds the services. MongoDB and Redis
// are optional: when either cannot be reached the process runs on in-memory
// stores and says so in the log.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config: cfg,
		Logger: logger,
		Bus:    progress.NewBus(),
	}

	a.Repos = a.connectMongo(ctx)
	a.Runs, a.Stats = a.connectRedis(ctx)

	fallback, err := repository.OpenFallback(cfg.FallbackDir, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open fallback store: %w", err)
	}
	a.Fallback = fallback
	a.closers = append(a.closers, fallback.Close)

	gateway, err := llm.NewGateway(ctx, cfg.LLM, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create llm gateway: %w", err)
	}
	a.Gateway = gateway

	if cfg.NATSURL != "" {
		broker, err := messaging.NewBroker(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("nats unavailable, progress stays local", zap.String("url", cfg.NATSURL), zap.Error(err))
		} else {
			a.Broker = broker
			a.closers = append(a.closers, func() error { broker.Close(); return nil })
		}
	}

	a.subscribe()

	gen := cfg.Generation
	a.Runner = service.NewRunner(a.Bus, a.Runs, logger)
	a.Zones = service.NewZoneService(a.Repos, logger)
	a.Clusters = service.NewClusterService(a.Repos, logger)
	a.Agents = service.NewAgentService(a.Repos, a.Fallback,
		generation.NewAgentEngine(gateway, gen, logger), a.Runner, gen, logger)
	a.Simulations = service.NewSimulationService(a.Repos, a.Stats, a.Fallback,
		generation.NewReactionEngine(gateway, gen, logger), gateway, a.Runner, logger)
	a.Polls = service.NewPollService(a.Repos, a.Stats, a.Fallback,
		generation.NewPollEngine(gateway, gen, logger), a.Runner, logger)
	return a, nil
}

func (a *App) connectMongo(ctx context.Context) *repository.Repos {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.Config.MongoURI))
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err = client.Ping(pingCtx, nil)
		cancel()
		if err != nil {
			client.Disconnect(context.Background())
		}
	}
	if err != nil {
		a.Logger.Warn("mongodb unavailable, using in-memory repositories", zap.Error(err))
		return repository.NewMemoryRepos()
	}
	a.Logger.Info("connected to mongodb", zap.String("db", a.Config.MongoDB))
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return client.Disconnect(ctx)
	})
	return repository.NewMongoRepos(ctx, client.Database(a.Config.MongoDB), a.Logger)
}

func (a *App) connectRedis(ctx context.Context) (cache.RunCache, cache.StatsCache) {
	rdb := redis.NewClient(&redis.Options{Addr: a.Config.RedisURI})
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		a.Logger.Warn("redis unavailable, using in-memory caches", zap.Error(err))
		return cache.NewMemoryRunCache(), cache.NewMemoryStatsCache()
	}
	a.Logger.Info("connected to redis", zap.String("addr", a.Config.RedisURI))
	a.closers = append(a.closers, rdb.Close)
	return cache.NewRunCache(rdb), cache.NewStatsCache(rdb)
}

// subscribe attaches the process-wide progress consumers
func (a *App) subscribe() {
	a.Bus.Subscribe(progress.LogHandler(a.Logger))
	a.Attach(service.StatusHandler(a.Runs, a.Logger))
	if a.Broker != nil {
		a.Attach(a.Broker.Publish)
	}
}

// Attach subscribes h to the bus behind its own buffer; it is detached and
// drained on Close
func (a *App) Attach(h progress.Handler) {
	async, stop := progress.Async(h, eventBuffer)
	unsubscribe := a.Bus.Subscribe(async)
	a.closers = append(a.closers, func() error {
		unsubscribe()
		stop()
		return nil
	})
}

// Shutdown cancels in-flight runs and then releases every resource
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Runner != nil {
		if err := a.Runner.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop runs: %w", err))
		}
	}
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases resources in reverse acquisition order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
