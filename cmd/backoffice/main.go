// Package main is the entry point for the stakehouse back-office admin
// server. Runs on its own port and exposes staff-only endpoints protected by
// RBAC and an optional IP allowlist.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feltline/stakehouse/internal/backoffice"
	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/repository"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting stakehouse backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── Repositories ──────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	bankrollRepo := repository.NewBankrollRepository(db)
	dealRepo := repository.NewDealRepository(db)
	tournamentRepo := repository.NewTournamentRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	// ── Services ──────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(db, userRepo, bankrollRepo, cfg)
	bankrollSvc := service.NewBankrollService(db, bankrollRepo)
	dealSvc := service.NewDealService(db, dealRepo, bankrollRepo, cfg)
	settlementSvc := service.NewSettlementService(db, dealRepo, tournamentRepo, settlementRepo, bankrollRepo, cfg)
	riskSvc := service.NewRiskService(dealRepo, tournamentRepo, alertRepo, cfg)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc:        authSvc,
		DealSvc:        dealSvc,
		SettlementSvc:  settlementSvc,
		RiskSvc:        riskSvc,
		BankrollSvc:    bankrollSvc,
		UserRepo:       userRepo,
		SettlementRepo: settlementRepo,
		BankrollRepo:   bankrollRepo,
		Hub:            nil, // backoffice does not directly serve WS
		Cfg:            cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	db.Close()
	logger.Info("backoffice server stopped cleanly")
}
