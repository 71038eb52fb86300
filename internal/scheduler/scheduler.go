// Package scheduler manages the two background goroutines that drive the
// staking platform:
//  1. settlementLoop – settles due deal periods on a fixed interval.
//  2. riskLoop       – recomputes drawdown and ruin statistics and raises alerts.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/service"
)

// Scheduler runs the settlement and risk sweeps. Call Start(ctx) once from
// main(); cancel the context to shut it down gracefully.
type Scheduler struct {
	settlementSvc *service.SettlementService
	riskSvc       *service.RiskService
	cfg           *config.Config
	logger        *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	settlementSvc *service.SettlementService,
	riskSvc *service.RiskService,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		settlementSvc: settlementSvc,
		riskSvc:       riskSvc,
		cfg:           cfg,
		logger:        logger,
	}
}

// Start launches the background goroutines. It returns immediately; both
// loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.settlementLoop(ctx)
	go s.riskLoop(ctx)
	s.logger.Info("scheduler started",
		"settlement_interval", s.cfg.Settlement.Interval,
		"risk_interval", s.cfg.Risk.Interval)
}

// ──────────────────────────────────────────────────────────────────────────────
// settlementLoop
// ──────────────────────────────────────────────────────────────────────────────

// settlementLoop runs a settlement sweep on the configured interval. Each
// sweep settles at most MaxDealsPerTick deals; the remainder waits for the
// next tick.
func (s *Scheduler) settlementLoop(ctx context.Context) {
	defer s.recoverAndLog("settlementLoop")

	ticker := time.NewTicker(s.cfg.Settlement.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlementLoop: shutting down")
			return
		case <-ticker.C:
			start := time.Now()
			if err := s.settlementSvc.SettleDueDeals(ctx); err != nil {
				s.logger.Error("settlementLoop: SettleDueDeals", "err", err)
				continue
			}
			s.logger.Debug("settlement sweep complete", "took", time.Since(start).Round(time.Millisecond))
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// riskLoop
// ──────────────────────────────────────────────────────────────────────────────

// riskLoop re-evaluates every active deal's risk statistics on the configured
// interval and raises alerts for newly crossed thresholds.
func (s *Scheduler) riskLoop(ctx context.Context) {
	defer s.recoverAndLog("riskLoop")

	ticker := time.NewTicker(s.cfg.Risk.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("riskLoop: shutting down")
			return
		case <-ticker.C:
			if err := s.riskSvc.EvaluateDeals(ctx); err != nil {
				s.logger.Error("riskLoop: EvaluateDeals", "err", err)
			}
		}
	}
}

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
