package service

import (
	"context"
	"fmt"
	"time"

	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request types
// ──────────────────────────────────────────────────────────────────────────────

// RecordResultRequest carries one tournament result for an active deal.
type RecordResultRequest struct {
	Venue     string          `json:"venue"      binding:"required,max=120"`
	EventName string          `json:"event_name" binding:"required,max=200"`
	BuyIn     decimal.Decimal `json:"buy_in"     binding:"required"`
	Prize     decimal.Decimal `json:"prize"`
	PlayedAt  time.Time       `json:"played_at"  binding:"required"`
}

// RecordExpenseRequest carries one circuit expense for an active deal.
type RecordExpenseRequest struct {
	Category    domain.ExpenseCategory `json:"category"    binding:"required,oneof=travel lodging meals other"`
	Description string                 `json:"description" binding:"max=500"`
	Amount      decimal.Decimal        `json:"amount"      binding:"required"`
	IncurredAt  time.Time              `json:"incurred_at" binding:"required"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ResultService
// ──────────────────────────────────────────────────────────────────────────────

// ResultService records tournament results and expenses against active deals.
// Recording never moves money; balances change only when the period settles.
type ResultService struct {
	db             *sqlx.DB
	dealRepo       *repository.DealRepository
	tournamentRepo *repository.TournamentRepository
}

// NewResultService creates a ResultService.
func NewResultService(
	db *sqlx.DB,
	dealRepo *repository.DealRepository,
	tournamentRepo *repository.TournamentRepository,
) *ResultService {
	return &ResultService{
		db:             db,
		dealRepo:       dealRepo,
		tournamentRepo: tournamentRepo,
	}
}

// RecordResult validates and stores a tournament entry. The deal row is
// locked so a concurrent settlement or cancellation cannot race the insert.
func (s *ResultService) RecordResult(ctx context.Context, dealID uuid.UUID, req RecordResultRequest) (*domain.TournamentEntry, error) {
	entry := &domain.TournamentEntry{
		ID:        uuid.New(),
		DealID:    dealID,
		Venue:     req.Venue,
		EventName: req.EventName,
		BuyIn:     req.BuyIn,
		Prize:     req.Prize,
		PlayedAt:  req.PlayedAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return nil, fmt.Errorf("result_service.RecordResult: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	deal, dErr := s.dealRepo.GetByIDForUpdate(ctx, tx, dealID)
	if dErr != nil {
		txErr = dErr
		return nil, txErr
	}
	if txErr = s.checkWindow(deal, entry.PlayedAt); txErr != nil {
		return nil, txErr
	}

	if txErr = s.tournamentRepo.CreateEntry(ctx, tx, entry); txErr != nil {
		return nil, txErr
	}
	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("result_service.RecordResult: commit: %w", txErr)
	}
	return entry, nil
}

// RecordExpense validates and stores an expense entry under the same deal
// window rules as tournament results.
func (s *ResultService) RecordExpense(ctx context.Context, dealID uuid.UUID, req RecordExpenseRequest) (*domain.ExpenseEntry, error) {
	entry := &domain.ExpenseEntry{
		ID:          uuid.New(),
		DealID:      dealID,
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		IncurredAt:  req.IncurredAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return nil, fmt.Errorf("result_service.RecordExpense: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	deal, dErr := s.dealRepo.GetByIDForUpdate(ctx, tx, dealID)
	if dErr != nil {
		txErr = dErr
		return nil, txErr
	}
	if txErr = s.checkWindow(deal, entry.IncurredAt); txErr != nil {
		return nil, txErr
	}

	if txErr = s.tournamentRepo.CreateExpense(ctx, tx, entry); txErr != nil {
		return nil, txErr
	}
	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("result_service.RecordExpense: commit: %w", txErr)
	}
	return entry, nil
}

// checkWindow rejects entries against inactive deals or dated outside the
// deal's active window.
func (s *ResultService) checkWindow(deal *domain.StakingDeal, at time.Time) error {
	if !deal.IsActive() {
		return domain.ErrDealNotActive
	}
	if at.Before(deal.StartsAt) {
		return domain.ErrEntryOutsidePeriod
	}
	if deal.EndsAt != nil && at.After(*deal.EndsAt) {
		return domain.ErrEntryOutsidePeriod
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// ListResults returns paginated tournament entries for a deal.
func (s *ResultService) ListResults(ctx context.Context, dealID uuid.UUID, limit, offset int) ([]domain.TournamentEntry, int, error) {
	entries, total, err := s.tournamentRepo.ListEntries(ctx, dealID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("result_service.ListResults: %w", err)
	}
	return entries, total, nil
}

// ListExpenses returns paginated expense entries for a deal.
func (s *ResultService) ListExpenses(ctx context.Context, dealID uuid.UUID, limit, offset int) ([]domain.ExpenseEntry, int, error) {
	expenses, total, err := s.tournamentRepo.ListExpenses(ctx, dealID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("result_service.ListExpenses: %w", err)
	}
	return expenses, total, nil
}
