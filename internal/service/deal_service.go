package service

import (
	"context"
	"fmt"
	"time"

	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/repository"
	"github.com/feltline/stakehouse/internal/ws"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ──────────────────────────────────────────────────────────────────────────────
// Broadcaster interface — implemented by ws.Hub
// Declared here so the service package stays decoupled from the hub's
// connection management while still pushing events through it.
// ──────────────────────────────────────────────────────────────────────────────

// Broadcaster is the minimal push interface the services need from the WS hub.
type Broadcaster interface {
	BroadcastSettlementPosted(msg ws.SettlementPostedMessage, playerID, investorID uuid.UUID)
	BroadcastRiskAlert(msg ws.RiskAlertMessage)
	BroadcastDealStatus(msg ws.DealStatusMessage)
}

// ──────────────────────────────────────────────────────────────────────────────
// DealService
// ──────────────────────────────────────────────────────────────────────────────

// DealService handles the staking deal lifecycle: creation, activation,
// pausing, cancellation, and completion. Activation commits investor funds;
// completion and cancellation release them.
type DealService struct {
	db           *sqlx.DB
	dealRepo     *repository.DealRepository
	bankrollRepo *repository.BankrollRepository
	broadcaster  Broadcaster // injected after the hub is built
	cfg          *config.Config
}

// NewDealService creates a DealService. Call SetBroadcaster() after
// constructing the hub to enable deal-status pushes.
func NewDealService(
	db *sqlx.DB,
	dealRepo *repository.DealRepository,
	bankrollRepo *repository.BankrollRepository,
	cfg *config.Config,
) *DealService {
	return &DealService{
		db:           db,
		dealRepo:     dealRepo,
		bankrollRepo: bankrollRepo,
		cfg:          cfg,
	}
}

// SetBroadcaster injects the WS hub after both are constructed
// (avoids constructor-cycle issues).
func (s *DealService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateDeal
// ──────────────────────────────────────────────────────────────────────────────

// CreateDeal validates the terms and persists a new deal in DealStatusDraft.
// No funds move until activation.
func (s *DealService) CreateDeal(ctx context.Context, req domain.CreateDealRequest) (*domain.StakingDeal, error) {
	now := time.Now().UTC()
	deal := &domain.StakingDeal{
		ID:                uuid.New(),
		PlayerID:          req.PlayerID,
		InvestorID:        req.InvestorID,
		Percentage:        req.Percentage,
		Markup:            req.Markup,
		ExpenseRule:       req.ExpenseRule,
		Bankroll:          req.Bankroll,
		StopLossPct:       req.StopLossPct,
		DrawdownAlertPct:  req.DrawdownAlertPct,
		TaxWithholdingPct: req.TaxWithholdingPct,
		Status:            domain.DealStatusDraft,
		StartsAt:          req.StartsAt.UTC(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := deal.ValidateTerms(); err != nil {
		return nil, err
	}
	if deal.Bankroll.Sign() <= 0 {
		return nil, domain.ErrNegativeAmount
	}

	if err := s.dealRepo.Create(ctx, deal); err != nil {
		return nil, fmt.Errorf("deal_service.CreateDeal: db: %w", err)
	}
	return deal, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ActivateDeal
// ──────────────────────────────────────────────────────────────────────────────

// ActivateDeal transitions a draft deal to active and commits the deal
// bankroll from the investor's funds. The commitment, audit row, and status
// change happen in one transaction.
func (s *DealService) ActivateDeal(ctx context.Context, dealID uuid.UUID) error {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if deal.Status != domain.DealStatusDraft && deal.Status != domain.DealStatusPaused {
		return domain.ErrDealNotActive
	}

	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return fmt.Errorf("deal_service.ActivateDeal: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	// Resuming from pause re-uses the existing commitment.
	if deal.Status == domain.DealStatusDraft {
		bankroll, bErr := s.bankrollRepo.GetByUserIDForUpdate(ctx, tx, deal.InvestorID)
		if bErr != nil {
			txErr = bErr
			return txErr
		}
		if bankroll.Available().LessThan(deal.Bankroll) {
			txErr = domain.ErrInsufficientBankroll
			return txErr
		}
		if txErr = s.bankrollRepo.Commit(ctx, tx, deal.InvestorID, deal.Bankroll); txErr != nil {
			return txErr
		}

		dealIDCopy := deal.ID
		txn := &domain.BankrollTransaction{
			ID:            uuid.New(),
			BankrollID:    bankroll.ID,
			Type:          domain.TxDealCommit,
			Amount:        deal.Bankroll,
			BalanceBefore: bankroll.Balance,
			BalanceAfter:  bankroll.Balance,
			RefID:         &dealIDCopy,
			Description:   fmt.Sprintf("Committed %s to deal %s", deal.Bankroll.StringFixed(2), deal.ID),
			CreatedAt:     time.Now().UTC(),
		}
		if txErr = s.bankrollRepo.LogTransaction(ctx, tx, txn); txErr != nil {
			return txErr
		}
	}

	if _, txErr = tx.ExecContext(ctx,
		`UPDATE staking_deals SET status = 'active', updated_at = now() WHERE id = $1`,
		deal.ID); txErr != nil {
		return fmt.Errorf("deal_service.ActivateDeal: update status: %w", txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("deal_service.ActivateDeal: commit: %w", txErr)
	}

	s.broadcastStatus(deal.ID, domain.DealStatusActive)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// PauseDeal / CancelDeal / CompleteDeal
// ──────────────────────────────────────────────────────────────────────────────

// PauseDeal halts an active deal (e.g. pending a stop-loss review). Results
// and settlements are rejected while paused; the commitment stays in place.
func (s *DealService) PauseDeal(ctx context.Context, dealID uuid.UUID) error {
	if err := s.dealRepo.UpdateStatus(ctx, dealID, domain.DealStatusPaused, domain.DealStatusActive); err != nil {
		return fmt.Errorf("deal_service.PauseDeal: %w", err)
	}
	s.broadcastStatus(dealID, domain.DealStatusPaused)
	return nil
}

// CancelDeal voids a deal before completion and releases the investor's
// commitment. Posted settlements are never unwound.
func (s *DealService) CancelDeal(ctx context.Context, dealID uuid.UUID) error {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if deal.IsTerminal() {
		return domain.ErrDealAlreadyCompleted
	}

	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return fmt.Errorf("deal_service.CancelDeal: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	if txErr = s.releaseCommitmentTx(ctx, tx, deal); txErr != nil {
		return txErr
	}

	if _, txErr = tx.ExecContext(ctx, `
		UPDATE staking_deals
		SET status = 'cancelled', ends_at = now(), updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed','cancelled')`,
		deal.ID); txErr != nil {
		return fmt.Errorf("deal_service.CancelDeal: update status: %w", txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("deal_service.CancelDeal: commit: %w", txErr)
	}

	s.broadcastStatus(deal.ID, domain.DealStatusCancelled)
	return nil
}

// CompleteDeal closes a deal after its final settlement and releases the
// investor's commitment.
func (s *DealService) CompleteDeal(ctx context.Context, dealID uuid.UUID) error {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if deal.IsTerminal() {
		return domain.ErrDealAlreadyCompleted
	}

	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return fmt.Errorf("deal_service.CompleteDeal: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	if txErr = s.releaseCommitmentTx(ctx, tx, deal); txErr != nil {
		return txErr
	}

	if _, txErr = tx.ExecContext(ctx, `
		UPDATE staking_deals
		SET status = 'completed', ends_at = now(), updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed','cancelled')`,
		deal.ID); txErr != nil {
		return fmt.Errorf("deal_service.CompleteDeal: update status: %w", txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("deal_service.CompleteDeal: commit: %w", txErr)
	}

	s.broadcastStatus(deal.ID, domain.DealStatusCompleted)
	return nil
}

// releaseCommitmentTx releases the deal bankroll commitment if the deal had
// one (drafts that never activated have nothing committed).
func (s *DealService) releaseCommitmentTx(ctx context.Context, tx *sqlx.Tx, deal *domain.StakingDeal) error {
	if deal.Status == domain.DealStatusDraft {
		return nil
	}
	bankroll, err := s.bankrollRepo.GetByUserIDForUpdate(ctx, tx, deal.InvestorID)
	if err != nil {
		return err
	}
	if err := s.bankrollRepo.Release(ctx, tx, deal.InvestorID, deal.Bankroll); err != nil {
		return err
	}

	dealIDCopy := deal.ID
	txn := &domain.BankrollTransaction{
		ID:            uuid.New(),
		BankrollID:    bankroll.ID,
		Type:          domain.TxDealRelease,
		Amount:        deal.Bankroll,
		BalanceBefore: bankroll.Balance,
		BalanceAfter:  bankroll.Balance,
		RefID:         &dealIDCopy,
		Description:   fmt.Sprintf("Released commitment for deal %s", deal.ID),
		CreatedAt:     time.Now().UTC(),
	}
	return s.bankrollRepo.LogTransaction(ctx, tx, txn)
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// GetDeal fetches a deal by ID.
func (s *DealService) GetDeal(ctx context.Context, id uuid.UUID) (*domain.StakingDeal, error) {
	deal, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("deal_service.GetDeal: %w", err)
	}
	return deal, nil
}

// ListDealsByUser returns a user's deals as player or investor.
func (s *DealService) ListDealsByUser(ctx context.Context, userID uuid.UUID, limit, offset int, status string) ([]*domain.StakingDeal, int, error) {
	deals, total, err := s.dealRepo.ListByUser(ctx, userID, limit, offset, status)
	if err != nil {
		return nil, 0, fmt.Errorf("deal_service.ListDealsByUser: %w", err)
	}
	return deals, total, nil
}

// ListDeals returns all deals (back-office).
func (s *DealService) ListDeals(ctx context.Context, limit, offset int, status string) ([]*domain.StakingDeal, int, error) {
	deals, total, err := s.dealRepo.List(ctx, limit, offset, status)
	if err != nil {
		return nil, 0, fmt.Errorf("deal_service.ListDeals: %w", err)
	}
	return deals, total, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func (s *DealService) broadcastStatus(dealID uuid.UUID, status domain.DealStatus) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastDealStatus(ws.DealStatusMessage{
		Type:      ws.MsgTypeDealStatus,
		DealID:    dealID,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}
