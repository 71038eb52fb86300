package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/repository"
	"github.com/feltline/stakehouse/internal/ws"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskService evaluates active deals against their drawdown and stop-loss
// terms and the platform ruin tolerance, persisting one open alert per
// (deal, kind) and pushing new ones over WS.
type RiskService struct {
	dealRepo       *repository.DealRepository
	tournamentRepo *repository.TournamentRepository
	alertRepo      *repository.AlertRepository
	broadcaster    Broadcaster
	cfg            *config.Config
}

// NewRiskService creates a RiskService.
func NewRiskService(
	dealRepo *repository.DealRepository,
	tournamentRepo *repository.TournamentRepository,
	alertRepo *repository.AlertRepository,
	cfg *config.Config,
) *RiskService {
	return &RiskService{
		dealRepo:       dealRepo,
		tournamentRepo: tournamentRepo,
		alertRepo:      alertRepo,
		cfg:            cfg,
	}
}

// SetBroadcaster injects the WS hub after both are constructed.
func (s *RiskService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// ──────────────────────────────────────────────────────────────────────────────
// EvaluateDeals — called by the Scheduler every risk tick
// ──────────────────────────────────────────────────────────────────────────────

// EvaluateDeals recomputes risk statistics for every active deal and raises
// any newly crossed alerts. One failing deal does not block the others.
func (s *RiskService) EvaluateDeals(ctx context.Context) error {
	const pageSize = 100
	offset := 0
	for {
		deals, total, err := s.dealRepo.List(ctx, pageSize, offset, string(domain.DealStatusActive))
		if err != nil {
			return fmt.Errorf("risk_service.EvaluateDeals: list: %w", err)
		}
		for _, deal := range deals {
			if err := s.evaluateDeal(ctx, deal); err != nil {
				log.Printf("[risk] ERROR evaluating deal %s: %v", deal.ID, err)
			}
		}
		offset += len(deals)
		if offset >= total || len(deals) == 0 {
			return nil
		}
	}
}

// evaluateDeal computes the deal's stats and raises whichever alerts apply.
func (s *RiskService) evaluateDeal(ctx context.Context, deal *domain.StakingDeal) error {
	entries, err := s.tournamentRepo.GetEntriesByDeal(ctx, deal.ID)
	if err != nil {
		return err
	}
	stats := domain.ComputeRiskStats(deal, entries)

	if stats.StopLossBreach {
		limit, _ := deal.StopLossCap()
		if err := s.raise(ctx, deal, domain.AlertStopLoss, limit, stats.Drawdown,
			fmt.Sprintf("drawdown %s reached the stop-loss cap %s",
				stats.Drawdown.StringFixed(2), limit.StringFixed(2))); err != nil {
			return err
		}
	}

	if level, ok := s.drawdownLevel(deal); ok && stats.Drawdown.GreaterThanOrEqual(level) {
		if err := s.raise(ctx, deal, domain.AlertDrawdown, level, stats.Drawdown,
			fmt.Sprintf("drawdown %s crossed the alert level %s",
				stats.Drawdown.StringFixed(2), level.StringFixed(2))); err != nil {
			return err
		}
	}

	// Ruin estimates on tiny samples are noise; wait for enough volume.
	if stats.SampleSize >= s.cfg.Risk.MinSampleSize && stats.RiskOfRuin > s.cfg.Risk.RuinAlertLevel {
		threshold := decimal.NewFromFloat(s.cfg.Risk.RuinAlertLevel)
		observed := decimal.NewFromFloat(stats.RiskOfRuin).Round(4)
		if err := s.raise(ctx, deal, domain.AlertRiskOfRuin, threshold, observed,
			fmt.Sprintf("estimated risk of ruin %s exceeds tolerance %s over %d tournaments",
				observed.String(), threshold.String(), stats.SampleSize)); err != nil {
			return err
		}
	}
	return nil
}

// drawdownLevel returns the deal's drawdown alert level, falling back to the
// platform default percentage of the deal bankroll.
func (s *RiskService) drawdownLevel(deal *domain.StakingDeal) (decimal.Decimal, bool) {
	if level, ok := deal.DrawdownAlertLevel(); ok {
		return level, true
	}
	if s.cfg.Risk.DrawdownAlertPct <= 0 {
		return decimal.Decimal{}, false
	}
	pct := decimal.NewFromFloat(s.cfg.Risk.DrawdownAlertPct)
	return deal.Bankroll.Mul(pct).Div(decimal.NewFromInt(100)).Round(2), true
}

// raise persists the alert and broadcasts it if it is new. The partial unique
// index makes re-raising an open alert a silent no-op.
func (s *RiskService) raise(ctx context.Context, deal *domain.StakingDeal, kind domain.AlertKind, threshold, observed decimal.Decimal, msg string) error {
	alert := &domain.RiskAlert{
		ID:        uuid.New(),
		DealID:    deal.ID,
		Kind:      kind,
		Threshold: threshold,
		Observed:  observed,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	}
	inserted, err := s.alertRepo.Create(ctx, alert)
	if err != nil {
		return err
	}
	if !inserted {
		return nil // already open, already broadcast
	}

	log.Printf("[risk] alert %s for deal %s: %s", kind, deal.ID, msg)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastRiskAlert(ws.RiskAlertMessage{
			Type:      ws.MsgTypeRiskAlert,
			AlertID:   alert.ID,
			DealID:    alert.DealID,
			Kind:      alert.Kind,
			Threshold: alert.Threshold,
			Observed:  alert.Observed,
			Message:   alert.Message,
			Timestamp: alert.CreatedAt,
		})
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// GetDealStats recomputes risk statistics for one deal on demand.
func (s *RiskService) GetDealStats(ctx context.Context, dealID uuid.UUID) (*domain.DealRiskStats, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	entries, err := s.tournamentRepo.GetEntriesByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	stats := domain.ComputeRiskStats(deal, entries)
	return &stats, nil
}

// ListOpenAlerts returns unacknowledged alerts for the back-office.
func (s *RiskService) ListOpenAlerts(ctx context.Context, limit, offset int) ([]*domain.RiskAlert, error) {
	return s.alertRepo.GetOpen(ctx, limit, offset)
}

// ListDealAlerts returns a deal's full alert history.
func (s *RiskService) ListDealAlerts(ctx context.Context, dealID uuid.UUID) ([]*domain.RiskAlert, error) {
	return s.alertRepo.GetByDeal(ctx, dealID)
}

// AcknowledgeAlert closes an alert (back-office action).
func (s *RiskService) AcknowledgeAlert(ctx context.Context, id uuid.UUID) error {
	return s.alertRepo.Acknowledge(ctx, id)
}
