package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/tourbooking/config"
	"github.com/Domenick1991/tourbooking/internal/bootstrap"
	"github.com/Domenick1991/tourbooking/internal/gateway"
	"github.com/Domenick1991/tourbooking/internal/kafka"
	"github.com/Domenick1991/tourbooking/internal/logging"
	"github.com/Domenick1991/tourbooking/internal/notify"
	"github.com/Domenick1991/tourbooking/internal/service/lifecycle"
	"github.com/Domenick1991/tourbooking/internal/service/reconciler"
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
	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Fatal("worker needs shared storage; the app runs background jobs itself with the memory driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := bootstrap.OpenStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer closeStore()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()
	if err := producer.CheckConnection(ctx); err != nil {
		log.WithError(err).Warn("kafka unavailable, notifications will be retried")
	}

	gatewayClient := gateway.NewClient(cfg.Gateway, log)
	coordinator := lifecycle.NewCoordinator(
		store,
		gatewayClient,
		lifecycle.WithPaymentTTL(cfg.Payment.PendingTTL()),
		lifecycle.WithLogger(log),
	)

	rec := reconciler.NewReconciler(store, producer, gatewayClient, cfg.Kafka.NotificationsTopic, log,
		reconciler.WithBatchSize(cfg.Worker.OutboxBatchSize),
		reconciler.WithLease(time.Duration(cfg.Worker.OutboxLeaseSeconds)*time.Second),
		reconciler.WithBackoff(reconciler.NewBackoff(
			time.Duration(cfg.Worker.RetryBaseSeconds)*time.Second,
			time.Duration(cfg.Worker.RetryMaxSeconds)*time.Second,
		)),
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, log)
	defer consumer.Close()
	sink := notify.NewSink(log)

	go func() {
		if err := consumer.ConsumeEvents(ctx, sink.Deliver); err != nil {
			log.WithError(err).Error("notification consumer stopped")
		}
	}()
	go bootstrap.RunExpirySweeper(ctx, coordinator, time.Duration(cfg.Worker.ExpirationSweepMinutes)*time.Minute, log)

	log.Info("worker started")
	if err := rec.Run(ctx, time.Duration(cfg.Worker.OutboxPollSeconds)*time.Second); err != nil {
		log.WithError(err).Error("outbox reconciler stopped")
	}
	log.Info("worker stopped")
}
