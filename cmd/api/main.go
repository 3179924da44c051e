package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"example.com/streak/internal/api"
	"example.com/streak/internal/auth"
	"example.com/streak/internal/config"
	"example.com/streak/internal/consumer"
	"example.com/streak/internal/domain"
	"example.com/streak/internal/logging"
	"example.com/streak/internal/outbox"
	"example.com/streak/internal/persistence/memory"
	persistence "example.com/streak/internal/persistence/postgres"
	httptransport "example.com/streak/internal/transport/http"
)

const (
	kafkaWriteTimeout     = 10 * time.Second
	schemaRegistryTimeout = 5 * time.Second
	sweepInterval         = time.Minute
	corsOrigin            = "http://localhost:5173"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := logging.Setup(cfg.Log)

	loc, err := cfg.Location()
	if err != nil {
		logger.WithError(err).Fatal("invalid timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []domain.Option{domain.WithLogger(logger), domain.WithLocation(loc)}
	var (
		repo       domain.LogRepository
		dispatcher *outbox.Dispatcher
	)

	switch cfg.StoreDriver {
	case "memory":
		mem := memory.NewRepository()
		repo = mem
		opts = append(opts, domain.WithHistory(mem))
		logger.Warn("using in-memory store; streak logs are lost on restart")
	default:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pool.Close()

		repo = persistence.NewRepository(pool)
		opts = append(opts, domain.WithHistory(persistence.NewHistorySource(pool)))

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, kafkaWriteTimeout)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, schemaRegistryTimeout)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger.WithField("component", "outbox")))
		go dispatcher.Start(ctx)
	}

	sessions := domain.NewSessions(repo, opts...)
	go sessions.RunSweeper(ctx, sweepInterval, cfg.SessionIdleTimeout)

	var consumers sync.WaitGroup
	activityHandler := consumer.NewActivityHandler(sessions, logger.WithField("component", "ingest"))
	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		proc := consumer.NewProcessor(reader, activityHandler,
			consumer.WithLogger(logger.WithFields(logrus.Fields{"component": "consumer", "topic": topic})))

		consumers.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer consumers.Done()
			defer r.Close()

			logger.WithFields(logrus.Fields{"topic": topic, "group": cfg.ConsumerGroupID}).Info("consumer started")
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).WithField("topic", topic).Error("consumer stopped")
			}
		}(topic, reader)
	}

	handler := api.NewHandler(sessions, logger.WithField("component", "api"))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, "/healthz", "/metrics")

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.RequestLogger(logger.WithField("component", "http")),
		httptransport.CORS(corsOrigin),
		authMiddleware.Wrap,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithFields(logrus.Fields{
			"address": cfg.HTTPAddress,
			"store":   cfg.StoreDriver,
			"tz":      loc.String(),
		}).Info("streak-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	<-shutdownCh
	logger.Info("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}

	consumers.Wait()
	if dispatcher != nil {
		dispatcher.Wait()
	}
}
