package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq"

	"txfanout/internal/broker"
	"txfanout/internal/config"
	"txfanout/internal/constants"
	"txfanout/internal/fanout"
	"txfanout/internal/logger"
	"txfanout/internal/store"
	"txfanout/pkg/bootstrap"
	"txfanout/pkg/errors"
	"txfanout/pkg/health"
	"txfanout/pkg/logging"
	"txfanout/pkg/metrics"
	"txfanout/pkg/middleware"
	"txfanout/pkg/migrations"
	"txfanout/pkg/models"
	"txfanout/pkg/ratelimit"
	"txfanout/pkg/tracing"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	db             *sql.DB
	mongoClient    *mongo.Client
	store          store.Store
	service        *fanout.Service
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("fanout-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initStore(ctx); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := a.initBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initService(); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "fanout-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterFanoutMetrics()
	metrics.RegisterAPIMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

// initStore connects only the client the configured backend needs and wires
// the conditional-write store over it.
func (a *App) initStore(ctx context.Context) error {
	storeCfg := a.Config.Store
	if storeCfg.Backend == "" {
		storeCfg.Backend = constants.StoreBackendMongo
	}
	if storeCfg.Table == "" {
		storeCfg.Table = constants.DefaultStoreTable
	}

	clients := store.Clients{}

	switch storeCfg.Backend {
	case constants.StoreBackendMongo:
		client, err := a.dbConnector.InitMongoDB(ctx)
		if err != nil {
			return err
		}
		a.mongoClient = client

		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		mongoDB := client.Database(dbName)

		if a.Config.Database.RunMigrations {
			if err := migrations.EnsureTransactionIndexes(ctx, mongoDB, storeCfg.Table); err != nil {
				return fmt.Errorf("failed to ensure indexes: %w", err)
			}
		}
		clients.Mongo = mongoDB

	case constants.StoreBackendPostgres:
		db, err := a.dbConnector.InitPostgreSQL(ctx)
		if err != nil {
			return err
		}
		a.db = db

		if a.Config.Database.RunMigrations {
			if err := migrations.RunPostgres(db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		clients.Postgres = db

	case constants.StoreBackendRedis:
		rdb, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return err
		}
		a.redis = rdb
		clients.Redis = rdb

	default:
		return fmt.Errorf("unsupported store backend: %s", storeCfg.Backend)
	}

	st, err := store.New(storeCfg, clients, a.Logger)
	if err != nil {
		return err
	}

	if a.Config.CircuitBreaker.Enabled {
		st = store.NewCircuitBreakerStore(st, a.Config.CircuitBreaker)
		initCtx := logging.WithServiceName(context.Background(), "fanout-service")
		a.Logger.InfowCtx(initCtx, "Circuit breaker enabled for store", "backend", storeCfg.Backend)
	}

	a.store = st
	return nil
}

// initBroker wires the full broker when an input topic is configured. With
// no input topic the service only publishes notifications and handles HTTP
// invocations.
func (a *App) initBroker() error {
	if a.Config.Broker.Kafka.InputTopic == "" {
		a.Logger.Infow("No input topic configured, running in HTTP-only mode")
		return a.InitProducer()
	}
	return a.InitBroker("fanout-service")
}

func (a *App) initService() error {
	outputTopic := a.Config.Broker.Kafka.OutputTopic
	if outputTopic == "" {
		outputTopic = constants.DefaultNotificationTopic
	}

	notifier := fanout.NewTopicNotifier(a.Producer, outputTopic)
	a.service = fanout.NewService(a.store, notifier, a.Logger)
	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("fanout-service"))
		router.Use(tracing.TraceLogFields())
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))

	if a.Config.Fanout.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.Fanout.RateLimit.RPS,
			Burst:           a.Config.Fanout.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.Fanout.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.Fanout.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.Logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	handler := fanout.NewHandler(a.service, a.Logger)
	handler.RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	switch {
	case a.db != nil:
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	case a.mongoClient != nil:
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	case a.redis != nil:
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}

	// An open breaker means the store is refusing writes. The service keeps
	// serving, so report degraded rather than unhealthy.
	if cbStore, ok := a.store.(*store.CircuitBreakerStore); ok {
		healthRegistry.RegisterDegraded(health.NewCheckFunc("store_circuit_breaker", func(context.Context) error {
			if cbStore.IsOpen() {
				return fmt.Errorf("%s store circuit breaker is open", cbStore.Backend())
			}
			return nil
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: a.router,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	if a.Consumer != nil {
		inputTopic := a.Config.Broker.Kafka.InputTopic
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Starting invocation event consumer", "topic", inputTopic)
			return a.Consumer.Consume(gCtx, inputTopic, a.handleMessage)
		})
	}

	return g.Wait()
}

func (a *App) handleMessage(ctx context.Context, msg broker.Message) error {
	var event models.InvocationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.ErrParse.WithCause(err).WithDetail("message", "message is not an invocation event")
	}

	res, err := a.service.Process(ctx, event)
	if err != nil {
		return err
	}

	a.Logger.DebugwCtx(ctx, "Invocation event processed", "status", res.Status())
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "fanout-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down fan-out service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			serverCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(serverCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
