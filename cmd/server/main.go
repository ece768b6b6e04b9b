// The server command wires the certification registry: stores, services,
// HTTP surface and background resources. Business logic lives in the
// internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	applicationhandler "certreg/internal/application/handler"
	applicationservice "certreg/internal/application/service"
	applicationstore "certreg/internal/application/store"
	"certreg/internal/audit/publisher"
	auditmemory "certreg/internal/audit/store/memory"
	auditpostgres "certreg/internal/audit/store/postgres"
	evidencehandler "certreg/internal/evidence/handler"
	evidenceservice "certreg/internal/evidence/service"
	evidencestore "certreg/internal/evidence/store"
	httpapi "certreg/internal/http"
	"certreg/internal/identity"
	"certreg/internal/platform/config"
	"certreg/internal/platform/httpserver"
	"certreg/internal/platform/logger"
	"certreg/internal/platform/metrics"
	"certreg/internal/platform/middleware"
	"certreg/internal/platform/ratelimit"
	"certreg/internal/platform/redis"
	"certreg/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)
	m := metrics.New()

	var (
		db         *sql.DB
		appStore   applicationservice.Store
		evidStore  *evidencestore.Postgres
		evidMemory *evidencestore.InMemory
		auditStore applicationservice.AuditStore
		runner     tx.Runner
	)

	if cfg.DatabaseURL != "" {
		if err := runMigrations(cfg); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}

		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		log.Info("connected to postgres")

		appStore = applicationstore.NewPostgres(db)
		evidStore = evidencestore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		runner = newRegistryPostgresTx(db)
	} else {
		log.Info("no DATABASE_URL set, using in-memory stores")
		appStore = applicationstore.NewInMemory()
		evidMemory = evidencestore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		runner = tx.NewInMemoryRunner()
	}

	var auditPub *publisher.Publisher
	if cfg.KafkaBrokers != "" {
		sink, err := publisher.NewKafkaSink(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaAuditTopic)
		if err != nil {
			log.Error("failed to connect kafka audit sink", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := sink.Close(context.Background()); err != nil {
				log.Warn("kafka audit sink close failed", "error", err)
			}
		}()
		auditPub = publisher.New(sink, log, publisher.WithAsyncBuffer(256))
		defer auditPub.Close()
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	var limiter middleware.Limiter
	if redisClient != nil {
		defer redisClient.Close()
		limiter = ratelimit.New(redisClient.Client, cfg.RateLimitPerSec, cfg.RateLimitBurst)
	}

	var evidenceCounter applicationservice.EvidenceCounter
	var evidServiceStore evidenceservice.Store
	if evidStore != nil {
		evidenceCounter = evidStore
		evidServiceStore = evidStore
	} else {
		evidenceCounter = evidMemory
		evidServiceStore = evidMemory
	}

	appOpts := []applicationservice.Option{
		applicationservice.WithLogger(log),
		applicationservice.WithMetrics(m),
	}
	evidOpts := []evidenceservice.Option{
		evidenceservice.WithLogger(log),
		evidenceservice.WithMetrics(m),
	}
	if auditPub != nil {
		appOpts = append(appOpts, applicationservice.WithAuditPublisher(auditPub))
		evidOpts = append(evidOpts, evidenceservice.WithAuditPublisher(auditPub))
	}

	appService := applicationservice.New(appStore, auditStore, evidenceCounter, runner, appOpts...)
	evidService := evidenceservice.New(evidServiceStore, auditStore, appService, runner, evidOpts...)

	validator := identity.NewJWTService(cfg.JWTSigningKey, "certreg")

	router := httpapi.NewRouter(httpapi.Deps{
		Applications: applicationhandler.New(appService, log),
		Evidence:     evidencehandler.New(evidService, log),
		Validator:    validator,
		Limiter:      limiter,
		Logger:       log,
		Health:       healthRoutes(db, redisClient),
	})

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting certification registry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func runMigrations(cfg config.Config) error {
	mig, err := migrate.New("file://"+cfg.MigrationsDir, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer mig.Close()
	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func healthRoutes(db *sql.DB, redisClient *redis.Client) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			if db != nil {
				if err := db.PingContext(req.Context()); err != nil {
					http.Error(w, "database unavailable", http.StatusServiceUnavailable)
					return
				}
			}
			if redisClient != nil {
				if err := redisClient.Health(req.Context()); err != nil {
					http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
					return
				}
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}
}
