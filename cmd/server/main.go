// Command server runs the onboarding gateway: KYC application intake, the
// admin decision surface, and the assistant reporting API, backed by
// Postgres (or an in-memory store for development), Redis profile caching,
// and Kafka notifications.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	adminhandler "onboarding/internal/admin/handler"
	assistanthandler "onboarding/internal/assistant/handler"
	"onboarding/internal/collaborator"
	"onboarding/internal/collaborator/account"
	"onboarding/internal/collaborator/customer"
	httpapi "onboarding/internal/http"
	kychandler "onboarding/internal/kyc/handler"
	"onboarding/internal/kyc/service"
	"onboarding/internal/kyc/store"
	"onboarding/internal/notification"
	"onboarding/internal/onboarding"
	onbmetrics "onboarding/internal/onboarding/metrics"
	"onboarding/internal/platform/config"
	"onboarding/internal/platform/httpserver"
	"onboarding/internal/platform/logger"
	"onboarding/internal/platform/metrics"
	platformredis "onboarding/internal/platform/redis"
	"onboarding/internal/search"
	pstrings "onboarding/pkg/platform/strings"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Application store: Postgres when a DSN is configured, in-memory
	// otherwise (development and tests).
	var appStore store.Store
	health := map[string]httpapi.HealthChecker{}
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		appStore = pg
		health["postgres"] = pg.Health
		log.Info("using postgres application store")
	} else {
		appStore = store.NewMemoryStore()
		log.Warn("no postgres DSN configured; using in-memory application store")
	}

	// Redis profile cache. Optional: a nil client degrades the cached
	// customer client to pass-through.
	var redisClient *goredis.Client
	if rc, err := platformredis.New(cfg.Redis); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	} else if rc != nil {
		defer rc.Close()
		redisClient = rc.Client
		health["redis"] = rc.Health
		log.Info("redis profile cache enabled")
	}

	// Notification channel: Kafka when brokers are configured, structured
	// logs otherwise.
	var emitter notification.Emitter
	if cfg.Kafka.Brokers != "" {
		brokers := pstrings.DedupeAndTrim(strings.Split(cfg.Kafka.Brokers, ","))
		kafka, err := notification.NewKafkaEmitter(brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		emitter = kafka
		log.Info("kafka notifications enabled", "topic", cfg.Kafka.Topic)
	} else {
		emitter = notification.NewLogEmitter(log)
		log.Warn("no kafka brokers configured; notifications will only be logged")
	}

	// Collaborator clients, each behind its own circuit breaker.
	customerDoer := collaborator.New("customer-service", cfg.CustomerServiceURL,
		collaborator.WithTimeout(cfg.CollaboratorTimeout),
		collaborator.WithLogger(log),
	)
	accountDoer := collaborator.New("account-service", cfg.AccountServiceURL,
		collaborator.WithTimeout(cfg.CollaboratorTimeout),
		collaborator.WithLogger(log),
	)
	customers := customer.NewCachedClient(customer.NewClient(customerDoer), redisClient, cfg.Redis.CacheTTL, log)
	accounts := account.NewClient(accountDoer)

	procMetrics := metrics.New()
	decisionMetrics := onbmetrics.New()

	kycService := service.NewService(appStore,
		service.WithPanDirectory(customers),
		service.WithEmitter(emitter),
		service.WithLogger(log),
		service.WithMetrics(procMetrics),
	)
	orchestrator := onboarding.New(appStore, customers, accounts,
		onboarding.WithUniquenessGuard(kycService),
		onboarding.WithEmitter(emitter),
		onboarding.WithLogger(log),
		onboarding.WithMetrics(decisionMetrics),
	)
	searcher := search.New(appStore, customers, search.WithLogger(log))

	router := httpapi.New(httpapi.Config{
		Logger:             log,
		KYC:                kychandler.New(kycService, log),
		Admin:              adminhandler.New(appStore, orchestrator, searcher, customers, accounts, log),
		Assistant:          assistanthandler.New(appStore, searcher, customers, accounts, log),
		AdminJWTSigningKey: cfg.AdminJWTSigningKey,
		Health:             health,
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("onboarding gateway listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
