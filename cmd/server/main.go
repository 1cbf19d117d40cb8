// Package main runs the commerce layer API server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	app "github.com/retailcore/commerce_layer/internal/app"
	"github.com/retailcore/commerce_layer/internal/app/httpapi"
	"github.com/retailcore/commerce_layer/internal/app/metrics"
	"github.com/retailcore/commerce_layer/internal/app/notify"
	pgstore "github.com/retailcore/commerce_layer/internal/app/storage/postgres"
	"github.com/retailcore/commerce_layer/internal/config"
	"github.com/retailcore/commerce_layer/internal/middleware"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	}).WithField("service", "commerce-layer")

	stores := app.Stores{}
	var db *sql.DB
	if cfg.Database.DSN != "" {
		db, err = openDatabase(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("database setup failed")
		}
		defer db.Close()

		store := pgstore.New(db)
		stores = app.Stores{
			Tenants:   store,
			Users:     store,
			Products:  store,
			Carts:     store,
			Sales:     store,
			Checkout:  store,
			Inventory: store,
			Cashboxes: store,
			Messages:  store,
			Reports:   store,
		}
	} else {
		log.Warn("DATABASE_DSN not set; using in-memory storage")
	}

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; product cache disabled")
			cache = nil
		}
	}

	hub := notify.NewHub(log)

	application, err := app.New(stores, app.Options{
		JWTSecret:       cfg.Auth.JWTSecret,
		TokenTTL:        time.Duration(cfg.Auth.TokenTTLMin) * time.Minute,
		Cache:           cache,
		CartTTL:         time.Duration(cfg.Workers.CartTTLMin) * time.Minute,
		JanitorInterval: time.Duration(cfg.Workers.JanitorIntervalSec) * time.Second,
		ReportSchedule:  cfg.Workers.ReportSchedule,
		Notifier:        hub,
		Recorder:        metrics.CheckoutRecorder{},
	}, log)
	if err != nil {
		log.WithError(err).Fatal("application setup failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start services")
	}

	api, err := httpapi.NewHandler(application, hub, httpapi.Options{
		AuditPath: cfg.Audit.FilePath,
		AuditMax:  cfg.Audit.MaxItems,
		Ready: func() error {
			if db == nil {
				return nil
			}
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return db.PingContext(pingCtx)
		},
	})
	if err != nil {
		log.WithError(err).Fatal("handler setup failed")
	}

	handler := buildChain(api, application, cfg, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown")
	}
}

// buildChain assembles the middleware stack around the API handler.
func buildChain(api http.Handler, application *app.Application, cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", api)

	webhookSig := middleware.NewWebhookSignatureMiddleware(os.Getenv("WEBHOOK_SECRET"), log)

	skipPaths := []string{"/login", "/healthz", "/readyz", "/metrics"}
	skipWebhooks := func(r *http.Request) bool {
		return strings.HasPrefix(r.URL.Path, "/integrations/webhooks/")
	}
	authMW := middleware.NewAuthMiddleware(application.Auth, log, skipPaths, skipWebhooks)

	limiter := middleware.NewRateLimiter(cfg.Auth.RatePerSecond, cfg.Auth.RateBurst, log)
	limiter.StartCleanup(10 * time.Minute)

	var handler http.Handler = mux
	handler = limiter.Handler(handler)
	handler = authMW.Handler(handler)
	handler = webhookSigOnly(webhookSig, skipWebhooks, handler)
	handler = metrics.InstrumentHandler(handler)
	handler = middleware.NewRequestIDMiddleware(log).Handler(handler)
	handler = middleware.NewCORSMiddleware([]string{"*"}).Handler(handler)
	return handler
}

// webhookSigOnly applies signature verification to webhook routes only.
func webhookSigOnly(sig *middleware.WebhookSignatureMiddleware, isWebhook func(*http.Request) bool, next http.Handler) http.Handler {
	verified := sig.Handler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebhook(r) {
			verified.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// openDatabase connects to PostgreSQL and applies pending migrations.
func openDatabase(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.Database.MigrationsPath, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration setup: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("migrations applied")
	return db, nil
}
