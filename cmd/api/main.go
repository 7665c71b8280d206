package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/medtransit/internal/config"
	"github.com/kursadbilgin/medtransit/internal/handler"
	"github.com/kursadbilgin/medtransit/internal/infra/postgresql"
	"github.com/kursadbilgin/medtransit/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/medtransit/internal/infra/redis"
	"github.com/kursadbilgin/medtransit/internal/live"
	"github.com/kursadbilgin/medtransit/internal/observability"
	"github.com/kursadbilgin/medtransit/internal/queue"
	"github.com/kursadbilgin/medtransit/internal/repository"
	"github.com/kursadbilgin/medtransit/internal/service"
	"github.com/kursadbilgin/medtransit/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	eventDrainTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("medtransit api stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.Options{})
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	events, err := newEventTransport(cfg, logger)
	if err != nil {
		return err
	}

	registry := live.NewRegistry(cfg.SSEBuffer, logger.Named("live"))
	registry.SetMetrics(metrics)

	broadcaster, relay, err := newBroadcaster(cfg, rdb, registry, logger)
	if err != nil {
		return err
	}

	attempts, err := infraredis.NewRedisAttemptLimiter(rdb, cfg.PinAttemptsPerMinute, time.Minute)
	if err != nil {
		return fmt.Errorf("pin attempt limiter initialization failed: %w", err)
	}

	notificationRepo := repository.NewGormNotificationRepo(db)

	shipmentService, err := service.NewShipmentService(
		repository.NewGormShipmentRepo(db),
		repository.NewGormStatusRepo(db),
		service.NewPinGuard(),
		attempts,
		events.publisher,
		logger.Named("shipments"),
	)
	if err != nil {
		return err
	}
	shipmentService.SetMetrics(metrics)

	notificationService, err := service.NewNotificationService(notificationRepo, broadcaster, logger.Named("notifications"))
	if err != nil {
		return err
	}
	notificationService.SetMetrics(metrics)

	notifier, err := service.NewShipmentEventNotifier(
		repository.NewGormRecipientResolver(db),
		notificationService,
		logger.Named("notifier"),
	)
	if err != nil {
		return err
	}

	worker, err := service.NewEventWorker(events.consumer, notifier, cfg.EventWorkers, logger.Named("events"))
	if err != nil {
		return err
	}
	worker.SetMetrics(metrics)

	sweeper, err := service.NewRetentionSweeper(notificationRepo, cfg.RetentionSweepInterval(), logger.Named("retention"))
	if err != nil {
		return err
	}
	sweeper.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:               "medtransit",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(transport.RequestContext())
	app.Use(metrics.HTTPMiddleware())

	checks := append([]handler.ReadinessCheck{
		handler.PostgresCheck(sqlDB),
		handler.RedisCheck(rdb),
	}, events.checks...)
	handler.RegisterHealthRoutes(app, logger.Named("health"), checks...)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterStreamRoutes(app, registry, cfg.SSEKeepAlive(), logger.Named("stream")); err != nil {
		return err
	}
	if err := handler.RegisterShipmentRoutes(app, shipmentService); err != nil {
		return err
	}
	if err := handler.RegisterNotificationRoutes(app, notificationService); err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	workerDone := make(chan struct{})
	g, groupCtx := errgroup.WithContext(workerCtx)

	g.Go(func() error {
		defer close(workerDone)
		return worker.Start(groupCtx)
	})
	g.Go(func() error {
		return sweeper.Start(groupCtx)
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(groupCtx)
		})
	}

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("medtransit api started",
			zap.Int("port", cfg.APIPort),
			zap.String("eventTransport", cfg.EventTransport),
			zap.String("liveFanout", cfg.LiveFanout),
		)
		serverErr <- app.Listen(addr)
	}()

	var runErr error
	select {
	case <-signalCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	case <-groupCtx.Done():
		logger.Warn("background workers stopped, shutting down")
	}

	// Open streams hold their connections; ending the subscriptions first lets
	// the server finish them.
	registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	if events.drain != nil {
		if err := events.drain(); err != nil {
			logger.Error("event queue close failed", zap.Error(err))
		}
		select {
		case <-workerDone:
		case <-time.After(eventDrainTimeout):
			logger.Warn("event worker did not drain in time")
		}
	}
	cancelWorkers()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("background worker failed", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	if events.release != nil {
		if err := events.release(); err != nil {
			logger.Error("event transport close failed", zap.Error(err))
		}
	}

	logger.Info("medtransit api stopped")
	return runErr
}

// eventTransport bundles the configured queue. drain stops intake and lets
// consumers finish what is buffered; release frees connections once the
// workers are gone. Publishers split the stream into one partition per worker.
type eventTransport struct {
	publisher queue.Publisher
	consumer  queue.Consumer
	checks    []handler.ReadinessCheck
	drain     func() error
	release   func() error
}

func newEventTransport(cfg *config.Config, logger *zap.Logger) (*eventTransport, error) {
	if cfg.EventTransport != config.EventTransportRabbitMQ {
		q := queue.NewChannelQueue(cfg.EventBuffer, logger.Named("queue"))
		publisher, err := queue.NewPartitionedPublisher(q, cfg.EventWorkers)
		if err != nil {
			return nil, err
		}
		return &eventTransport{publisher: publisher, consumer: q, drain: q.Close}, nil
	}

	client, err := queue.NewRabbitMQ(cfg.RabbitMQURL, queue.WorkQueueNames(cfg.EventWorkers))
	if err != nil {
		return nil, fmt.Errorf("rabbitmq initialization failed: %w", err)
	}

	publisher, err := queue.NewPartitionedPublisher(queue.NewRabbitMQPublisher(client), cfg.EventWorkers)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &eventTransport{
		publisher: publisher,
		consumer:  queue.NewRabbitMQConsumer(client, 1, logger.Named("queue")),
		checks:    []handler.ReadinessCheck{{Name: "rabbitmq", Ping: client.Ping}},
		release:   client.Close,
	}, nil
}

func newBroadcaster(
	cfg *config.Config,
	rdb *redis.Client,
	registry *live.Registry,
	logger *zap.Logger,
) (service.Broadcaster, *live.RedisRelay, error) {
	if cfg.LiveFanout != config.LiveFanoutRedis {
		return registry, nil, nil
	}

	relay, err := live.NewRedisRelay(rdb, registry, live.DefaultRelayChannel, logger.Named("relay"))
	if err != nil {
		return nil, nil, fmt.Errorf("live relay initialization failed: %w", err)
	}
	return relay, relay, nil
}
