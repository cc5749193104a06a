// Package app wires configuration, infrastructure and services into one
// client instance shared by the CLI and the ops server.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/servicehub/marketplace-client/internal/api"
	"github.com/servicehub/marketplace-client/internal/api/handler"
	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/core/ports"
	"github.com/servicehub/marketplace-client/internal/core/service"
	"github.com/servicehub/marketplace-client/internal/core/store"
	"github.com/servicehub/marketplace-client/internal/infrastructure/cache"
	"github.com/servicehub/marketplace-client/internal/infrastructure/dao"
	"github.com/servicehub/marketplace-client/internal/infrastructure/db/mongo"
	"github.com/servicehub/marketplace-client/internal/infrastructure/db/redis"
	"github.com/servicehub/marketplace-client/internal/infrastructure/httpclient"
	"github.com/servicehub/marketplace-client/internal/infrastructure/persist"
	"github.com/servicehub/marketplace-client/internal/infrastructure/queue"
	"github.com/servicehub/marketplace-client/internal/pkg/config"
	"github.com/servicehub/marketplace-client/pkg/logger"
)

// App is a fully wired client.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Client *httpclient.Client
	Cache  *cache.Cache

	Auth         *service.AuthService
	Users        *service.UserService
	Catalog      *service.CatalogService
	Bookings     *service.BookingService
	Transactions *service.TransactionService
	Health       ports.HealthAPI

	AuthStore        *store.AuthStore
	ServiceStore     *store.ServiceStore
	BookingStore     *store.BookingStore
	TransactionStore *store.TransactionStore

	refresh *queue.Dispatcher
	redis   *goredis.Client
	mongo   *mongodriver.Client
	mongoDB *mongodriver.Database
	stop    context.CancelFunc
}

// New connects the configured backends and builds every service. Close
// releases them.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}
	bgCtx, stop := context.WithCancel(context.Background())
	a.stop = stop

	if err := a.connect(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.refresh = queue.NewDispatcher(cfg.Cache.Workers, logger.WithComponent(log, "refresh"))
	a.refresh.Start(bgCtx)

	var cacheStore cache.Store = cache.NewMemoryStore()
	if a.redis != nil {
		cacheStore = cache.NewRedisStore(a.redis, cfg.Redis.Prefix)
	}
	a.Cache = cache.New(cacheStore, cache.Options{
		TTL:         cfg.Cache.TTL,
		StaleWindow: cfg.Cache.StaleWindow,
		Refresher:   a.refresh,
		Logger:      logger.WithComponent(log, "cache"),
	})

	tokens := httpclient.NewTokenStore()
	client, err := httpclient.New(httpclient.Config{
		BaseURL:          cfg.ResolveBaseURL(),
		Timeout:          cfg.API.Timeout,
		MaxRetries:       cfg.API.MaxRetries,
		RetryBaseDelay:   cfg.API.RetryBaseDelay,
		RetryMaxDelay:    cfg.API.RetryMaxDelay,
		BreakerThreshold: cfg.API.BreakerThreshold,
		BreakerCooldown:  cfg.API.BreakerCooldown,
		RateLimit:        cfg.API.RateLimit,
		RateBurst:        cfg.API.RateBurst,
	}, httpclient.Options{
		Cache:  a.Cache,
		Tokens: tokens,
		Logger: log,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Client = client

	persister, err := a.persister()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	authDAO := dao.NewAuthDAO(client)
	userDAO := dao.NewUserDAO(client)
	serviceDAO := dao.NewServiceDAO(client)
	bookingDAO := dao.NewBookingDAO(client)
	txDAO := dao.NewTransactionDAO(client)
	a.Health = dao.NewHealthDAO(client)

	a.AuthStore = store.NewAuthStore()
	a.ServiceStore = store.NewServiceStore()
	a.BookingStore = store.NewBookingStore()
	a.TransactionStore = store.NewTransactionStore()

	svcLog := logger.WithComponent(log, "service")
	a.Auth = service.NewAuthService(authDAO, userDAO, tokens, persister, a.Cache, a.AuthStore, svcLog)
	a.Users = service.NewUserService(userDAO, authDAO, a.Auth, a.TransactionStore, a.Cache, svcLog)
	a.Catalog = service.NewCatalogService(serviceDAO, a.Auth, a.ServiceStore, a.Cache, svcLog)
	a.Bookings = service.NewBookingService(bookingDAO, serviceDAO, a.Auth, a.BookingStore, a.TransactionStore, a.Cache, svcLog)
	a.Transactions = service.NewTransactionService(txDAO, a.Auth, a.TransactionStore, svcLog)

	client.OnUnauthorized(a.Auth.HandleUnauthorized)
	a.Auth.OnSignOut(func() {
		a.ServiceStore.Reset()
		a.BookingStore.Reset()
		a.TransactionStore.Reset()
	})
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config
	if cfg.Cache.Backend == config.BackendRedis {
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB, Password: cfg.Redis.Password})
		if err != nil {
			return fmt.Errorf("connect cache backend: %w", err)
		}
		a.redis = rdb
	}
	if cfg.Session.Backend == config.BackendMongo {
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return fmt.Errorf("connect session backend: %w", err)
		}
		a.mongo, a.mongoDB = client, db
	}
	return nil
}

func (a *App) persister() (ports.SessionPersister, error) {
	cfg := a.Config.Session
	switch cfg.Backend {
	case config.BackendMongo:
		return mongo.NewSessionRepository(a.mongoDB, cfg.StorageKey), nil
	case config.BackendNone:
		return persist.Nop{}, nil
	default:
		fs, err := persist.NewFileStore(cfg.Path, cfg.StorageKey, cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		return fs, nil
	}
}

// Readiness returns the probes used by /health/ready.
func (a *App) Readiness() map[string]handler.Check {
	checks := map[string]handler.Check{
		"marketplace_api": a.Health.Check,
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redis.Ping(ctx, a.redis, time.Second)
		}
	}
	if a.mongoDB != nil {
		checks["mongodb"] = func(ctx context.Context) error {
			return mongo.Ping(ctx, a.mongoDB)
		}
	}
	return checks
}

// OpsRouter builds the ops HTTP surface for this client.
func (a *App) OpsRouter(token string) *echo.Echo {
	return api.NewRouter(api.Deps{
		Logger:  logger.WithComponent(a.Logger, "ops"),
		Session: a.Auth,
		Cache:   a.Cache,
		Checks:  a.Readiness(),
		Token:   token,
	})
}

// KeepAlive refreshes the balance of the signed-in user every interval
// until ctx ends. A rejected token signs the user out through the 401 hook.
func (a *App) KeepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.Auth.IsAuthenticated() {
				continue
			}
			if _, err := a.Users.RefreshBalance(ctx); err != nil {
				ev := a.Logger.Warn()
				if errors.Is(err, domain.ErrAuthentication) {
					ev = a.Logger.Info()
				}
				ev.Err(err).Msg("session keep-alive failed")
			}
		}
	}
}

// Close stops background refreshes and disconnects the backends.
func (a *App) Close(ctx context.Context) {
	if a.stop != nil {
		a.stop()
	}
	if a.refresh != nil {
		a.refresh.Wait()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("closing redis")
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("closing mongo")
		}
	}
}
