package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"kycreview/internal/cases/content"
	"kycreview/internal/cases/handler"
	"kycreview/internal/cases/idempotency"
	"kycreview/internal/cases/ingestion"
	casemetrics "kycreview/internal/cases/metrics"
	"kycreview/internal/cases/ocr"
	"kycreview/internal/cases/service"
	casestore "kycreview/internal/cases/store"
	"kycreview/internal/platform/config"
	"kycreview/internal/platform/kafka"
	"kycreview/internal/platform/metrics"
	"kycreview/internal/platform/middleware"
	platformredis "kycreview/internal/platform/redis"
	audit "kycreview/pkg/platform/audit"
	"kycreview/pkg/platform/audit/consumer"
	"kycreview/pkg/platform/audit/publishers/compliance"
	auditmemory "kycreview/pkg/platform/audit/store/memory"
	auditpg "kycreview/pkg/platform/audit/store/postgres"
	"kycreview/pkg/platform/audit/worker"
	"kycreview/pkg/platform/circuit"
)

// caseStore is what the engine and the seeder need from a store.
type caseStore interface {
	service.CaseStore
	casestore.Creator
}

// app holds the wired process: the router, background workers and the
// resources to release on shutdown.
type app struct {
	router  http.Handler
	workers []func(ctx context.Context) error
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	return newAppWithRegistry(ctx, cfg, log, prometheus.DefaultRegisterer)
}

func newAppWithRegistry(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var (
		cases       caseStore
		auditStore  audit.Store
		auditReader audit.Reader
		outbox      *auditpg.Outbox
		events      *auditpg.EventStore
		idem        idempotency.Store
		contents    content.Store
		health      []handler.Option
	)

	if cfg.Database.URL != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
		}
		poolCfg.MaxConns = cfg.Database.MaxConns
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open audit database: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })

		pg := casestore.NewPostgres(pool)
		if err := migrate(ctx, pool, pg); err != nil {
			return nil, err
		}
		outbox = auditpg.NewOutbox(pool)
		events = auditpg.NewEventStore(db)
		cases, auditStore, auditReader = pg, outbox, events
		contents = content.NewPostgres(pool)
		health = append(health, handler.WithHealthCheck("postgres", pool.Ping))
		log.Info("using postgres case store and audit outbox")
	} else {
		mem := auditmemory.NewInMemoryStore()
		cases, auditStore, auditReader = casestore.NewInMemory(), mem, mem
		contents = content.NewInMemory()
		log.Warn("DATABASE_URL not set, cases and audit events are kept in memory")
	}

	if cfg.Redis.URL != "" {
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		idem = idempotency.NewGuarded(
			idempotency.NewRedis(client.Client),
			idempotency.NewInMemory(),
			circuit.New("idempotency-redis"),
			log,
		)
		health = append(health, handler.WithHealthCheck("redis", client.Health))
	}

	svc := service.New(cases,
		ingestion.New(
			ingestion.WithMaxSize(cfg.Workflow.MaxUploadSize),
			ingestion.WithConcurrency(cfg.Workflow.IngestConcurrency),
		),
		service.WithLogger(log),
		service.WithAuditPublisher(compliance.New(auditStore,
			compliance.WithLogger(log),
			compliance.WithMetrics(compliance.NewMetrics(reg)),
		)),
		service.WithAuditReader(auditReader),
		service.WithMetrics(casemetrics.New(reg)),
		service.WithIdempotencyStore(idem),
		service.WithContentStore(contents),
		service.WithReplayTTL(cfg.Workflow.ReplayTTL),
	)

	if len(cfg.Kafka.Brokers) > 0 {
		if err := a.wireKafka(ctx, cfg.Kafka, log, svc, outbox, events); err != nil {
			return nil, err
		}
	} else if outbox != nil {
		log.Warn("KAFKA_BROKERS not set, outbox rows will not be relayed and the audit trail stays empty")
	}

	if cfg.Workflow.Seed {
		n, err := casestore.Seed(ctx, cases)
		if err != nil {
			return nil, fmt.Errorf("seed cases: %w", err)
		}
		log.Info("demo cases loaded", "created", n)
	}

	httpMetrics := metrics.New(reg)
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Actor)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(httpMetrics))
	handler.New(svc, log, append(health,
		handler.WithMaxFileSize(cfg.Workflow.MaxUploadSize),
		handler.WithMaxFiles(cfg.Workflow.MaxUploadFiles),
	)...).Register(r)
	r.Handle("/metrics", httpMetrics.Handler())
	a.router = r
	return a, nil
}

// wireKafka starts the audit relay (postgres only), the audit materializer
// and the OCR result consumer.
func (a *app) wireKafka(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger, svc *service.Service, outbox *auditpg.Outbox, events *auditpg.EventStore) error {
	producer, err := kafka.NewProducer(cfg.Brokers)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, producer.Close)
	if err := producer.EnsureTopics(ctx, 3, 1, cfg.AuditTopic, cfg.OCRTopic); err != nil {
		return err
	}

	retry := kafka.WithRetryBackoff(cfg.RetryBackoff, cfg.RetryMaxBackoff)
	if outbox != nil {
		relay := worker.NewRelay(outbox, producer, cfg.AuditTopic,
			worker.WithBatchSize(cfg.RelayBatchSize),
			worker.WithInterval(cfg.RelayInterval),
			worker.WithLogger(log),
		)
		a.workers = append(a.workers, relay.Run)

		auditConsumer, err := kafka.NewConsumer(cfg.Brokers, cfg.ConsumerGroup+"-audit", []string{cfg.AuditTopic}, log, retry)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, auditConsumer.Close)
		materializer := consumer.NewMaterializer(events)
		a.workers = append(a.workers, func(ctx context.Context) error {
			return auditConsumer.Run(ctx, materializer)
		})
	}

	ocrConsumer, err := kafka.NewConsumer(cfg.Brokers, cfg.ConsumerGroup+"-ocr", []string{cfg.OCRTopic}, log, retry)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, ocrConsumer.Close)
	ocrHandler := ocr.NewHandler(svc, log)
	a.workers = append(a.workers, func(ctx context.Context) error {
		return ocrConsumer.Run(ctx, ocrHandler)
	})
	log.Info("kafka workers configured",
		"audit_topic", cfg.AuditTopic,
		"ocr_topic", cfg.OCRTopic,
	)
	return nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, cases *casestore.Postgres) error {
	if err := cases.Migrate(ctx); err != nil {
		return err
	}
	if err := content.NewPostgres(pool).Migrate(ctx); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, auditpg.Schema); err != nil {
		return fmt.Errorf("migrate audit: %w", err)
	}
	return nil
}
