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

	_ "github.com/lib/pq"

	"bloodlink/internal/audit"
	"bloodlink/internal/donor"
	"bloodlink/internal/fulfillment"
	"bloodlink/internal/geo"
	"bloodlink/internal/notify"
	"bloodlink/internal/platform/config"
	"bloodlink/internal/platform/httpserver"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	platformredis "bloodlink/internal/platform/redis"
	requesthandler "bloodlink/internal/request/handler"
	requestservice "bloodlink/internal/request/service"
	requeststore "bloodlink/internal/request/store"
	"bloodlink/internal/schedule"
	schedulehandler "bloodlink/internal/schedule/handler"
	httptransport "bloodlink/internal/transport/http"
	unithandler "bloodlink/internal/unit/handler"
	unitservice "bloodlink/internal/unit/service"
	unitstore "bloodlink/internal/unit/store"
)

// inventoryStore is the union of every inventory capability the services need,
// satisfied by both the memory and postgres implementations.
type inventoryStore interface {
	unitservice.InventoryStore
	fulfillment.InventoryStore
	fulfillment.SweepStore
}

type requestStore interface {
	requestservice.RequestStore
	fulfillment.RequestStore
	fulfillment.RequestSweepStore
}

type donorStore interface {
	unitservice.DonorStore
	geo.DonorFlags
	geo.BankFlags
}

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)
	slog.SetDefault(log)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: PostgreSQL in production, in-process memory for dev.
	var (
		units     inventoryStore
		requests  requestStore
		donors    donorStore
		schedules schedule.Store
		auditRepo audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		units = unitstore.NewPostgres(db)
		requests = requeststore.NewPostgres(db)
		donors = donor.NewPostgresStore(db)
		schedules = schedule.NewPostgresStore(db)
		auditRepo = audit.NewPostgresStore(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		units = unitstore.NewMemory()
		requests = requeststore.NewMemory()
		donors = donor.NewMemoryStore()
		schedules = schedule.NewMemoryStore()
		auditRepo = audit.NewMemoryStore()
	}

	auditor := audit.NewPublisher(auditRepo, audit.WithAsyncBuffer(256), audit.WithLogger(log))
	defer auditor.Close()

	// Proximity index: Redis GEO, or a noop locator when unconfigured.
	var locator requestservice.Locator = geo.Noop{}
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locator = geo.NewLocator(redisClient.Client, donors, donors)
	} else {
		log.Warn("REDIS_URL not set, proximity queries disabled")
	}

	var notifier notify.Notifier = notify.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier, err := notify.NewKafkaNotifier(cfg.KafkaBrokers, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	requestSvc := requestservice.New(requests, locator, donors,
		requestservice.WithLogger(log),
		requestservice.WithNotifier(notifier, cfg.NotifyOnCreate),
		requestservice.WithAuditPublisher(auditor),
		requestservice.WithMetrics(m),
	)
	unitSvc := unitservice.New(units, donors,
		unitservice.WithLogger(log),
		unitservice.WithAuditPublisher(auditor),
		unitservice.WithMetrics(m),
	)
	scheduleSvc := schedule.NewService(schedules,
		schedule.WithLogger(log),
		schedule.WithAuditPublisher(auditor),
	)
	engine := fulfillment.NewEngine(units, requests,
		fulfillment.WithLogger(log),
		fulfillment.WithNotifier(notifier),
		fulfillment.WithAuditPublisher(auditor),
		fulfillment.WithMetrics(m),
	)
	sweeper := fulfillment.NewSweeper(units,
		fulfillment.WithRequestSweep(requests),
		fulfillment.WithSweeperLogger(log),
		fulfillment.WithSweeperAuditPublisher(auditor),
		fulfillment.WithSweeperMetrics(m),
		fulfillment.WithIntervals(cfg.SweepInterval, cfg.WarnInterval),
	)
	go sweeper.Run(ctx)

	var handler http.Handler = httptransport.NewRouter(log, cfg.JWTSigningKey,
		requesthandler.New(requestSvc, engine, log),
		unithandler.New(unitSvc, log),
		schedulehandler.New(scheduleSvc, log),
	)
	if redisClient != nil {
		handler = middleware.RateLimit(redisClient.Client, 300, time.Minute, log)(handler)
	}
	srv := httpserver.New(cfg.Addr, handler)

	go func() {
		log.Info("starting bloodlink", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
