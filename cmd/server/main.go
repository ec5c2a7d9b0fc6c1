package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashless/internal/config"
	"cashless/internal/db"
	"cashless/internal/events"
	"cashless/internal/handlers"
	"cashless/internal/jobs"
	"cashless/internal/logger"
	"cashless/internal/policy"
	"cashless/internal/ratelimit"
	"cashless/internal/services"
	"cashless/internal/store"
	"cashless/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{})
		fallback.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	defer database.Close()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	limiter, err := ratelimit.NewFromURL(startCtx, cfg.RedisURL, cfg.PINAttemptsPerMinute)
	cancelStart()
	if err != nil {
		log.Warn().Err(err).Msg("pin limiter unavailable, continuing without it")
		limiter = ratelimit.New(nil, "", 0, time.Minute)
	}
	defer limiter.Close()

	publisher, closePublisher := events.Connect(cfg.RabbitMQURL, cfg.EventsExchange, log)
	defer closePublisher()

	accounts := store.NewAccountStore(database)
	requests := store.NewRequestStore(database)
	transfers := store.NewTransferStore(database)
	ledger := store.NewLedgerStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	notify := services.NewNotifier(hub, publisher, log)

	pol := policy.Default()
	pol.AgentReimbursementOnCashIn = cfg.AgentReimbursementOnCashIn

	accountService := services.NewAccountService(txRunner, accounts, ledger, audit, pol, limiter, notify, log)
	transferService := services.NewTransferService(txRunner, accounts, transfers, ledger, audit, pol, limiter, notify, log)
	requestService := services.NewRequestService(txRunner, accounts, requests, ledger, audit, pol, notify, log)

	scheduler := jobs.NewScheduler(accounts, cfg.ReconcileSchedule, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("invalid reconcile schedule")
	}

	handler := handlers.New(cfg, log, accountService, transferService, requestService, ledger, accounts, audit, transfers, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("env", cfg.AppEnv).Msg("cashless API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		log.Warn().Msg("reconciliation job still running at shutdown")
	}
	log.Info().Msg("server stopped")
}
