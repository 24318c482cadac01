// Command server exposes the Trust & Compliance Engine's HTTP edge: account
// registration/login (C5), sanctions (C6), legal documents (C7), consent
// (C8), and data-subject requests (C9). Every sweeper also runs in-process
// so a single-binary deployment stays correct without cmd/worker.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	accountsvc "credo/internal/auth/service/account"
	sessionsvc "credo/internal/auth/service/session"
	sessionstore "credo/internal/auth/store/session"
	userstore "credo/internal/auth/store/user"
	consentsvc "credo/internal/consent/service"
	consentstore "credo/internal/consent/store"
	dsrsvc "credo/internal/dsr/service"
	dsrstore "credo/internal/dsr/store"
	jwttoken "credo/internal/jwt_token"
	legalsvc "credo/internal/legal/service"
	legalstore "credo/internal/legal/store"
	"credo/internal/platform/config"
	"credo/internal/platform/httpserver"
	"credo/internal/platform/logger"
	"credo/internal/platform/metrics"
	platformredis "credo/internal/platform/redis"
	sanctionsvc "credo/internal/sanction/service"
	sanctionstore "credo/internal/sanction/store"
	httptransport "credo/internal/transport/http"
	"credo/pkg/platform/cache"
	"credo/pkg/platform/outbox"

	auditpublisher "credo/pkg/platform/audit/publisher"
	auditpostgres "credo/pkg/platform/audit/store/postgres"
)

func main() {
	log := logger.New()
	cfg := config.FromEnv()

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.Ping(); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}

	outboxStore := outbox.NewPostgresStore(db)

	auditStore := auditpostgres.New(db)
	auditPublisher := auditpublisher.NewPublisher(auditStore, auditpublisher.WithAsyncBuffer(256))
	defer auditPublisher.Close()

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "credo", "credo-api")
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	// C5 Auth State Machine: in-memory user store, Redis-backed sessions and
	// access-token revocation (falls back to in-memory when Redis is not
	// configured, matching pkg/platform/cache's own fail-secure stance).
	users := userstore.New()
	var sessionStore sessionsvc.Store
	var revoker sessionsvc.Revoker
	var challengeCache accountsvc.ChallengeCache
	if redisClient != nil {
		sessionStore = sessionstore.NewRedis(redisClient.Client)
		c := cache.New(redisClient.Client, "credo")
		revoker = c
		challengeCache = c
	} else {
		sessionStore = sessionstore.New()
	}
	sessionService := sessionsvc.New(sessionStore, revoker)
	accountService, err := accountsvc.New(users, sessionService, challengeCache, outboxStore, jwtService)
	if err != nil {
		log.Error("construct account service", "error", err)
		os.Exit(1)
	}

	// C6 Sanction Engine
	sanctionStore := sanctionstore.NewPostgres(db)
	sanctionService := sanctionsvc.New(sanctionStore, outboxStore)
	sanctionSweeper := sanctionsvc.NewSweeper(sanctionStore, log)
	if err := sanctionSweeper.Start(cfg.Sweepers.SanctionExpirySpec); err != nil {
		log.Error("start sanction sweeper", "error", err)
		os.Exit(1)
	}
	defer sanctionSweeper.Stop()

	// C7 Legal Documents & Law Registry
	legalStore := legalstore.NewPostgres(db)
	legalService := legalsvc.New(legalStore, db)

	// C8 Consent Store. The Postgres store owns its own transaction
	// boundary, so the service's ConsentStoreTx is nil here (only the
	// in-memory store needs the sharded fallback).
	consentStore := consentstore.NewPostgres(db)
	consentService := consentsvc.New(consentStore, outboxStore, nil)
	consentSweeper := consentsvc.NewSweeper(consentService, log)
	if err := consentSweeper.Start(cfg.Sweepers.ConsentSpec); err != nil {
		log.Error("start consent sweeper", "error", err)
		os.Exit(1)
	}
	defer consentSweeper.Stop()

	// C9 DSR Engine
	dsrStore := dsrstore.NewPostgres(db)
	dsrService := dsrsvc.New(dsrStore, outboxStore)
	dsrSweeper := dsrsvc.NewSweeper(dsrService, log)
	if err := dsrSweeper.Start(cfg.Sweepers.DSREscalationSpec, cfg.Sweepers.DSRDailySummarySpec); err != nil {
		log.Error("start dsr sweeper", "error", err)
		os.Exit(1)
	}
	defer dsrSweeper.Stop()

	m := metrics.New()
	handler := httptransport.NewHandler(httptransport.Services{
		Account:  accountService,
		Sanction: sanctionService,
		Legal:    legalService,
		Consent:  consentService,
		DSR:      dsrService,
		Audit:    auditPublisher,
	}, m)
	router := httptransport.NewRouter(handler, jwtValidator, log)

	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting credo server", "addr", cfg.Server.Addr, "regulated_mode", cfg.Server.RegulatedMode)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
