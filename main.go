package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	appinventory "github.com/Zhima-Mochi/storefront/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/storefront/internal/application/order"
	apppayment "github.com/Zhima-Mochi/storefront/internal/application/payment"
	"github.com/Zhima-Mochi/storefront/internal/application/settlement"
	"github.com/Zhima-Mochi/storefront/internal/config"
	domcart "github.com/Zhima-Mochi/storefront/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/storefront/internal/domain/order"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/httpclient"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/memory"
	mongostore "github.com/Zhima-Mochi/storefront/internal/infrastructure/mongo"
	infraobs "github.com/Zhima-Mochi/storefront/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/postgres"
	redisstore "github.com/Zhima-Mochi/storefront/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/storefrontapi"
	"github.com/Zhima-Mochi/storefront/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/storefront/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/storefront/internal/presentation/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.Service.Name,
		Env:     cfg.Service.Env,
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, baseLogger, systemLogger); err != nil {
		systemLogger.Error("service_exit", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, baseLogger, systemLogger *zap.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.Service.Name,
		Env:         cfg.Service.Env,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			systemLogger.Warn("tracer_shutdown_error", zap.Error(err))
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms := prometrics.Standard(prometrics.New(promRegistry, "", ""))

	tel := infraobs.New(
		infraobs.WithLogger(zaplogger.Wrap(baseLogger)),
		infraobs.WithTracer(oteltrace.New(cfg.Service.Name)),
		infraobs.WithCounters(counters),
		infraobs.WithHistograms(histograms),
	)

	orderRepo, closeOrders, err := buildOrderRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeOrders()

	productRepo, closeProducts, err := buildProductRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProducts()

	cartController, closeCart, err := buildCartController(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCart()

	bus := outbox.NewBus(tel,
		outbox.WithQueueSize(cfg.Bus.QueueSize),
		outbox.WithConcurrency(cfg.Bus.Concurrency),
	)

	if len(cfg.Kafka.Brokers) > 0 {
		sink := kafka.NewPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer func() { _ = sink.Close() }()
		workerpresentation.NewRelay(bus, sink, tel).Start()
		systemLogger.Info("event_relay_enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	bus.Start(ctx)
	defer bus.Stop(context.WithoutCancel(ctx))

	sessionClient := httpclient.New(httpclient.Config{
		Peer:             "session-provider",
		BaseURL:          cfg.Upstream.SessionProviderURL,
		Timeout:          cfg.Upstream.Timeout,
		FailureThreshold: cfg.Upstream.FailureThreshold,
		OpenTimeout:      cfg.Upstream.OpenTimeout,
	}, tel)
	notificationClient := httpclient.New(httpclient.Config{
		Peer:             "notification-service",
		BaseURL:          cfg.Upstream.NotificationURL,
		Timeout:          cfg.Upstream.Timeout,
		FailureThreshold: cfg.Upstream.FailureThreshold,
		OpenTimeout:      cfg.Upstream.OpenTimeout,
	}, tel)

	orderService := apporder.NewService(orderRepo, tel.Logger())
	settle := settlement.NewSettleSessionUseCase(settlement.Dependencies{
		Sessions: apppayment.NewFetchSessionUseCase(storefrontapi.NewSessionProvider(sessionClient), tel),
		Orders:   apporder.NewFinalizeOrderUseCase(orderRepo, bus, tel),
		Stock:    appinventory.NewAdjustStockUseCase(productRepo, bus, tel),
		Tracker:  orderService,
		Notifier: storefrontapi.NewReceiptSender(notificationClient),
		Cart:     cartController,
	}, tel)

	handler := httppresentation.NewHandler(
		settle,
		orderService,
		appinventory.NewService(productRepo),
		promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		tel,
	)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", zap.Error(err))
		return nil
	}
	systemLogger.Info("http_server_stopped")
	return nil
}

func buildOrderRepository(ctx context.Context, cfg *config.Config) (domorder.Repository, func(), error) {
	if cfg.Stores.Orders != config.DriverPostgres {
		return memory.NewOrderRepository(), func() {}, nil
	}
	db, err := postgres.Open(ctx, cfg.Stores.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.RunMigrations(db, cfg.Stores.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return postgres.NewOrderRepository(db), func() { _ = db.Close() }, nil
}

func buildProductRepository(ctx context.Context, cfg *config.Config) (dominv.Repository, func(), error) {
	seed := make([]*dominv.Product, 0, len(cfg.Catalog))
	for _, p := range cfg.Catalog {
		seed = append(seed, dominv.NewProduct(p.ID, p.Name, p.Stock))
	}
	if cfg.Stores.Products != config.DriverMongo {
		return memory.NewInventoryRepository(seed...), func() {}, nil
	}

	db, err := mongostore.Connect(ctx, cfg.Stores.MongoURI, cfg.Stores.MongoDatabase)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = db.Client().Disconnect(context.WithoutCancel(ctx)) }

	repo := mongostore.NewProductRepository(db)
	if err := seedProducts(ctx, repo, seed); err != nil {
		closeFn()
		return nil, nil, err
	}
	return repo, closeFn, nil
}

// seedProducts fills an empty catalogue so a fresh database can serve settlements.
func seedProducts(ctx context.Context, repo *mongostore.ProductRepository, seed []*dominv.Product) error {
	if err := repo.CreateIndexes(ctx); err != nil {
		return err
	}
	existing, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, p := range seed {
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func buildCartController(ctx context.Context, cfg *config.Config) (domcart.Controller, func(), error) {
	if cfg.Stores.Cart != config.DriverRedis {
		return memory.NewCartStore(), func() {}, nil
	}
	client := goredis.NewClient(&goredis.Options{Addr: cfg.Stores.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis: ping: %w", err)
	}
	return redisstore.NewCartStore(client), func() { _ = client.Close() }, nil
}
