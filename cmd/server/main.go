package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"lethe/internal/audit"
	auditpg "lethe/internal/audit/store/postgres"
	"lethe/internal/deletion/directory"
	"lethe/internal/deletion/metrics"
	"lethe/internal/deletion/ports"
	"lethe/internal/deletion/queue"
	"lethe/internal/deletion/service"
	intentstore "lethe/internal/deletion/store/intent"
	operatorstore "lethe/internal/deletion/store/operator"
	"lethe/internal/jwttoken"
	"lethe/internal/platform/config"
	"lethe/internal/platform/httpserver"
	"lethe/internal/platform/kafka"
	"lethe/internal/platform/logger"
	"lethe/internal/platform/postgres"
	platformredis "lethe/internal/platform/redis"
	"lethe/internal/platform/scheduler"
	httptransport "lethe/internal/transport/http"
)

// intentQueue is satisfied by both queue implementations.
type intentQueue interface {
	ports.IntentQueue
	Consume(ctx context.Context, handler queue.Handler) error
}

// main wires high-level dependencies and keeps the process lifecycle
// small. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("lethe exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
	}

	// Audit pipeline: durable store first, best-effort Kafka forwarding.
	auditStore := auditpg.New(db)
	var publisherOpts []audit.PublisherOption
	var outbox chan audit.Entry
	if producer != nil {
		outbox = make(chan audit.Entry, 256)
		publisherOpts = append(publisherOpts, audit.WithOutbox(outbox))
	}
	auditPublisher := audit.NewPublisher(auditStore, publisherOpts...)

	var dir ports.PrincipalDirectory
	if cfg.IdentityStore.BaseURL != "" {
		dir = directory.NewHTTP(cfg.IdentityStore.BaseURL, cfg.IdentityStore.Token, cfg.IdentityStore.Timeout)
	} else {
		log.Warn("no identity store configured, using in-memory directory")
		dir = directory.NewInMemory()
	}

	var q intentQueue
	if redisClient != nil {
		q = queue.NewRedis(redisClient.Client, cfg.Redis.Stream, log)
	} else {
		log.Warn("no redis configured, using in-process intent queue")
		q = queue.NewInMemory(64, log)
	}

	pipelineMetrics := metrics.New(prometheus.DefaultRegisterer)
	svc, err := service.New(
		intentstore.NewPostgres(db),
		dir,
		service.WithOperators(operatorstore.NewPostgres(db)),
		service.WithQueue(q),
		service.WithAuditPublisher(auditPublisher),
		service.WithLogger(log),
		service.WithMetrics(pipelineMetrics),
		service.WithPolicy(service.Policy{
			RetryBudget:        cfg.Pipeline.RetryBudget,
			RetryBatchSize:     cfg.Pipeline.RetryBatchSize,
			RetentionWindow:    cfg.Pipeline.RetentionWindow,
			RetentionBatchSize: cfg.Pipeline.RetentionBatchSize,
		}),
	)
	if err != nil {
		return err
	}

	validator := jwttoken.New(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	checks := map[string]httptransport.Pinger{"postgres": dbPinger{db}}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	router := httptransport.NewRouter(
		httptransport.NewDeletionHandler(svc, log),
		httptransport.NewHealthHandler(checks),
		validator,
		log,
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	cleanupLoc, err := time.LoadLocation(cfg.Pipeline.CleanupTimeZone)
	if err != nil {
		log.Warn("invalid cleanup timezone, falling back to UTC",
			"tz", cfg.Pipeline.CleanupTimeZone,
			"error", err,
		)
		cleanupLoc = time.UTC
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting lethe", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return ignoreCancel(q.Consume(ctx, svc.ProcessIntent))
	})

	runner := scheduler.New(log)
	g.Go(func() error {
		return ignoreCancel(runner.Every(ctx, "retry_sweep", cfg.Pipeline.RetryInterval, func(ctx context.Context) error {
			_, err := svc.SweepRetries(ctx)
			return err
		}))
	})
	g.Go(func() error {
		return ignoreCancel(runner.DailyAt(ctx, "retention_sweep",
			cfg.Pipeline.CleanupHour, cfg.Pipeline.CleanupMinute, cleanupLoc,
			func(ctx context.Context) error {
				_, err := svc.SweepRetention(ctx)
				return err
			}))
	})

	if producer != nil {
		forwarder := audit.NewForwarder(producer, outbox, log)
		g.Go(func() error {
			return ignoreCancel(forwarder.Run(ctx))
		})
	}

	return g.Wait()
}

// ignoreCancel keeps context cancellation out of the errgroup so a clean
// shutdown does not read as a failure.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type dbPinger struct {
	db *sql.DB
}

func (p dbPinger) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
