package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/tourbooking/api"
	"github.com/Domenick1991/tourbooking/config"
	"github.com/Domenick1991/tourbooking/internal/bootstrap"
	"github.com/Domenick1991/tourbooking/internal/cache"
	"github.com/Domenick1991/tourbooking/internal/gateway"
	"github.com/Domenick1991/tourbooking/internal/identity"
	"github.com/Domenick1991/tourbooking/internal/kafka"
	"github.com/Domenick1991/tourbooking/internal/logging"
	"github.com/Domenick1991/tourbooking/internal/service/catalog"
	"github.com/Domenick1991/tourbooking/internal/service/lifecycle"
	"github.com/Domenick1991/tourbooking/internal/service/reconciler"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Storage.Driver == config.StorageDriverPostgres && cfg.Database.MigrationsPath != "" {
		if err := bootstrap.Migrate(cfg.Database, log); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	store, closeStore, err := bootstrap.OpenStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer closeStore()

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Catalog.CacheTTL())
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		log.WithError(err).Warn("redis unavailable, catalogue will be read from storage")
	}

	gatewayClient := gateway.NewClient(cfg.Gateway, log)
	coordinator := lifecycle.NewCoordinator(
		store,
		gatewayClient,
		lifecycle.WithPackageCache(redisCache),
		lifecycle.WithGatewayTimeout(cfg.Gateway.Timeout()),
		lifecycle.WithPaymentTTL(cfg.Payment.PendingTTL()),
		lifecycle.WithLogger(log),
	)
	catalogService := catalog.NewCatalogService(store, redisCache, log)

	// The in-memory store cannot be shared with a separate worker process.
	if cfg.Storage.Driver == config.StorageDriverMemory {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		go runBackground(ctx, cfg, store, coordinator, producer, gatewayClient, log)
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Services{
		Lifecycle:     coordinator,
		Catalog:       catalogService,
		Actors:        identity.NewVerifier(cfg.Auth),
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Log:           log,
	})

	if err := bootstrap.Run(ctx, cfg, router, log); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runBackground(ctx context.Context, cfg *config.Config, store bootstrap.Storage, lc lifecycle.UseCase, producer *kafka.Producer, gw *gateway.Client, log logrus.FieldLogger) {
	rec := reconciler.NewReconciler(store, producer, gw, cfg.Kafka.NotificationsTopic, log,
		reconciler.WithBatchSize(cfg.Worker.OutboxBatchSize),
		reconciler.WithLease(time.Duration(cfg.Worker.OutboxLeaseSeconds)*time.Second),
		reconciler.WithBackoff(reconciler.NewBackoff(
			time.Duration(cfg.Worker.RetryBaseSeconds)*time.Second,
			time.Duration(cfg.Worker.RetryMaxSeconds)*time.Second,
		)),
	)
	go bootstrap.RunExpirySweeper(ctx, lc, time.Duration(cfg.Worker.ExpirationSweepMinutes)*time.Minute, log)
	if err := rec.Run(ctx, time.Duration(cfg.Worker.OutboxPollSeconds)*time.Second); err != nil {
		log.WithError(err).Error("outbox reconciler stopped")
	}
}
