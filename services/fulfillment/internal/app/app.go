package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	gomongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	platformhealth "github.com/shestoi/cocktail-delivery/platform/health/grpc"
	platformhealthhttp "github.com/shestoi/cocktail-delivery/platform/health/http"
	platformkafka "github.com/shestoi/cocktail-delivery/platform/kafka"
	platformlogging "github.com/shestoi/cocktail-delivery/platform/logging"
	"github.com/shestoi/cocktail-delivery/platform/observability"
	platformshutdown "github.com/shestoi/cocktail-delivery/platform/shutdown"
	httpapi "github.com/shestoi/cocktail-delivery/services/fulfillment/internal/api/http"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/cache"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/config"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/event/kafka"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/payment/stripe"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/memory"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/mongo"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/postgres"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/redis"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/service"
)

const (
	serviceName         = "fulfillment"
	healthWatchInterval = 5 * time.Second
	connectTimeout      = 10 * time.Second
)

// App содержит все зависимости для запуска и корректного shutdown Fulfillment Service
type App struct {
	logger         *zap.Logger
	httpServer     *http.Server
	grpcServer     *grpc.Server
	grpcHealthAddr string
	health         *platformhealth.Health
	dispatcher     *kafka.OutboxDispatcher
	checks         []platformhealthhttp.Check
	shutdownMgr    *platformshutdown.Manager
	background     context.Context
	wg             sync.WaitGroup
}

// stores набор репозиториев, выбранных конфигурацией
type stores struct {
	orders      repository.OrderRepository
	outbox      repository.OutboxRepository
	inventory   repository.InventoryRepository
	catalog     repository.CatalogRepository
	diagnostics repository.DiagnosticRepository
}

// Build создаёт и настраивает все зависимости Fulfillment Service.
// При ошибке уже открытые ресурсы закрываются через shutdown manager
func Build(cfg config.Config) (_ *App, err error) {
	const op = "app.Build"

	logger, err := platformlogging.New(platformlogging.FromEnv(serviceName, string(cfg.AppEnv)))
	if err != nil {
		return nil, err
	}
	cfg.Log(logger)
	logger = logger.With(zap.String("op", op))

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	defer func() {
		if err != nil {
			_ = shutdownMgr.Shutdown()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	otelShutdown, err := observability.Init(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("%s: observability: %w", op, err)
	}
	shutdownMgr.Add("otel", otelShutdown)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var (
		st     stores
		checks []platformhealthhttp.Check
	)

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		logger.Info("Connecting to PostgreSQL")
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("%s: postgres: %w", op, err)
		}
		shutdownMgr.Add("postgres_pool", platformshutdown.Release(pool))
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("%s: postgres ping: %w", op, err)
		}
		if cfg.RunMigrations {
			if err := postgres.Migrate(ctx, pool); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			logger.Info("Migrations applied")
		}

		repo := postgres.NewRepository(pool)
		st = stores{orders: repo, outbox: repo, inventory: repo, catalog: repo, diagnostics: repo}
		checks = append(checks, platformhealthhttp.Check{Name: "postgres", Fn: repo.Ping})
	default:
		logger.Warn("Using in-memory storage, data is lost on restart")
		mem := memory.NewStorage()
		st = stores{orders: mem, outbox: mem, inventory: mem, catalog: mem, diagnostics: mem}
	}

	if cfg.InventoryBackend == config.BackendMongo {
		logger.Info("Connecting to MongoDB inventory", zap.String("db", cfg.InventoryMongoDB))
		client, err := gomongo.Connect(ctx, options.Client().ApplyURI(cfg.InventoryMongoURI))
		if err != nil {
			return nil, fmt.Errorf("%s: mongo: %w", op, err)
		}
		shutdownMgr.Add("mongo_client", platformshutdown.Disconnect(client))

		inventoryRepo, err := mongo.NewInventoryRepository(ctx, client, cfg.InventoryMongoDB)
		if err != nil {
			return nil, fmt.Errorf("%s: mongo inventory: %w", op, err)
		}
		st.inventory = inventoryRepo
		checks = append(checks, platformhealthhttp.Check{Name: "mongo", Fn: inventoryRepo.Ping})
	}

	var processed service.ProcessedEventsStore
	if cfg.RedisAddr != "" {
		logger.Info("Connecting to Redis", zap.String("addr", cfg.RedisAddr))
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		shutdownMgr.Add("redis_client", platformshutdown.Close(client))
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("%s: redis ping: %w", op, err)
		}
		processed = redis.NewProcessedEventsStore(client, logger)
		checks = append(checks, platformhealthhttp.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	} else {
		processed = service.NewMemoryProcessedEventsStore()
	}

	stockCache := cache.NewStockCache(cfg.StockCacheSize, cfg.StockCacheTTL)
	topic := cfg.Kafka.OrderEventsTopic

	diagnostics := service.NewDiagnostics(st.diagnostics, m, logger)
	adjuster := service.NewInventoryAdjuster(st.inventory, stockCache, diagnostics, m, logger, cfg.InventoryClampNegative)
	materializer := service.NewOrderMaterializer(st.orders, st.catalog, adjuster, diagnostics, m, logger, topic)
	reconciler := service.NewFailureReconciler(st.orders, diagnostics, m, logger, topic)
	verifier := stripe.NewVerifier(cfg.StripeWebhookSecret, cfg.WebhookTolerance)
	receiver := service.NewPaymentEventReceiver(verifier, materializer, reconciler, processed, cfg.ProcessedEventTTL, m, logger)
	queries := service.NewOrderQueryService(st.orders, st.inventory, stockCache, m, logger)

	var dispatcher *kafka.OutboxDispatcher
	if cfg.Outbox.Enabled {
		dispatcher = kafka.NewOutboxDispatcher(logger, st.outbox, platformkafka.NewWriter(cfg.Kafka), kafka.DispatcherConfig{
			BatchSize:  cfg.Outbox.BatchSize,
			Interval:   cfg.Outbox.Interval,
			MaxRetries: cfg.Outbox.MaxRetries,
			Backoff:    cfg.Outbox.Backoff,
		}, m)
		shutdownMgr.Add("kafka_writer", platformshutdown.Close(dispatcher))
	}

	// фоновые задачи (outbox, health watch) останавливаются раньше закрытия хранилищ
	background, stopBackground := context.WithCancel(context.Background())
	shutdownMgr.Add("background", platformshutdown.Cancel(stopBackground))

	handler := httpapi.NewHandler(receiver, queries, cfg.WebhookMaxBodyBytes, logger)
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Health:         platformhealthhttp.Handler(checks...),
		Metrics:        metrics.Handler(reg),
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC поднимается только ради health probe
	health := platformhealth.New(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(observability.GRPCUnaryServerInterceptor(serviceName)))
	health.Register(grpcServer)

	// Регистрируем shutdown функции в обратном порядке выполнения
	shutdownMgr.Add("grpc_server", platformshutdown.GRPCServer(grpcServer))
	shutdownMgr.Add("http_server", platformshutdown.HTTPServer(httpServer))
	shutdownMgr.Add("health_readiness", platformshutdown.NotServing(health))

	return &App{
		logger:         logger,
		httpServer:     httpServer,
		grpcServer:     grpcServer,
		grpcHealthAddr: cfg.GRPCHealthAddr,
		health:         health,
		dispatcher:     dispatcher,
		checks:         checks,
		shutdownMgr:    shutdownMgr,
		background:     background,
	}, nil
}

// Handler HTTP роутер сервиса
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// ready проверяет все зависимости readiness
func (a *App) ready(ctx context.Context) error {
	var errs []error
	for _, c := range a.checks {
		if err := c.Fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	listener, err := net.Listen("tcp", a.grpcHealthAddr)
	if err != nil {
		return fmt.Errorf("listen grpc health: %w", err)
	}

	a.logger.Info("Starting Fulfillment service",
		zap.String("http_addr", a.httpServer.Addr),
		zap.String("grpc_health_addr", a.grpcHealthAddr),
	)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.logger.Error("gRPC health server error", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.health.Watch(a.background, healthWatchInterval, a.ready)
	}()

	if a.dispatcher != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			_ = a.dispatcher.Start(a.background)
		}()
	}

	// Ожидаем сигнал и выполняем shutdown
	err = a.shutdownMgr.Wait(context.Background())

	a.wg.Wait()
	a.logger.Info("Fulfillment service stopped")
	return err
}
