package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/repository"
	"github.com/feltline/stakehouse/internal/ws"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SettlementService runs the settlement calculator over due periods and posts
// the results: the settlement record, its breakdown lines, and the bankroll
// movements for both parties, all in one transaction per deal.
type SettlementService struct {
	db             *sqlx.DB
	dealRepo       *repository.DealRepository
	tournamentRepo *repository.TournamentRepository
	settlementRepo *repository.SettlementRepository
	bankrollRepo   *repository.BankrollRepository
	broadcaster    Broadcaster // injected after the hub is built
	cfg            *config.Config
}

// NewSettlementService builds a SettlementService.
func NewSettlementService(
	db *sqlx.DB,
	dealRepo *repository.DealRepository,
	tournamentRepo *repository.TournamentRepository,
	settlementRepo *repository.SettlementRepository,
	bankrollRepo *repository.BankrollRepository,
	cfg *config.Config,
) *SettlementService {
	return &SettlementService{
		db:             db,
		dealRepo:       dealRepo,
		tournamentRepo: tournamentRepo,
		settlementRepo: settlementRepo,
		bankrollRepo:   bankrollRepo,
		cfg:            cfg,
	}
}

// SetBroadcaster injects the WS hub after both are constructed.
func (s *SettlementService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// ──────────────────────────────────────────────────────────────────────────────
// SettleDueDeals — called by the Scheduler every tick
// ──────────────────────────────────────────────────────────────────────────────

// SettleDueDeals fetches active deals whose current settlement period has
// elapsed and settles each one. A single failing deal does NOT abort the
// others.
func (s *SettlementService) SettleDueDeals(ctx context.Context) error {
	periodLen := time.Duration(s.cfg.Settlement.PeriodDays) * 24 * time.Hour
	cutoff := time.Now().UTC().Add(-periodLen)

	deals, err := s.dealRepo.GetActiveDue(ctx, cutoff, s.cfg.Settlement.MaxDealsPerTick)
	if err != nil {
		return fmt.Errorf("settlement_service.SettleDueDeals: fetch: %w", err)
	}

	for _, deal := range deals {
		if err := s.settleNextPeriod(ctx, deal); err != nil {
			log.Printf("[settlement] ERROR settling deal %s: %v", deal.ID, err)
			// Continue: do not block other deals because one failed.
		}
	}
	return nil
}

// settleNextPeriod computes the deal's next period bounds and settles it.
func (s *SettlementService) settleNextPeriod(ctx context.Context, deal *domain.StakingDeal) error {
	start, end, err := s.nextPeriod(ctx, deal)
	if err != nil {
		return err
	}
	if end.After(time.Now().UTC()) {
		return nil // period still open
	}
	_, err = s.SettlePeriod(ctx, deal.ID, start, end)
	if errors.Is(err, domain.ErrSettlementAlreadyPosted) {
		return nil
	}
	return err
}

// nextPeriod derives the next unsettled period for a deal. Periods are
// back-to-back, PeriodDays long, anchored on the deal start. The start is
// nudged one microsecond past the previous end so an entry dated exactly on a
// boundary settles exactly once.
func (s *SettlementService) nextPeriod(ctx context.Context, deal *domain.StakingDeal) (time.Time, time.Time, error) {
	periodLen := time.Duration(s.cfg.Settlement.PeriodDays) * 24 * time.Hour

	lastEnd, ok, err := s.settlementRepo.GetLastPeriodEnd(ctx, deal.ID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := deal.StartsAt
	if ok {
		start = lastEnd.Add(time.Microsecond)
	}
	return start, start.Add(periodLen), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlePeriod — compute and post one settlement
// ──────────────────────────────────────────────────────────────────────────────

// SettlePeriod runs the calculator over [start, end] for a deal and posts the
// result atomically. Idempotent: a period that is already posted returns
// ErrSettlementAlreadyPosted and moves no money.
func (s *SettlementService) SettlePeriod(ctx context.Context, dealID uuid.UUID, start, end time.Time) (*domain.SettlementCalculation, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsActive() {
		return nil, domain.ErrDealNotActive
	}

	calc, err := s.compute(ctx, deal, start, end)
	if err != nil {
		return nil, err
	}
	if err := s.post(ctx, deal, calc); err != nil {
		return nil, err
	}

	log.Printf("[settlement] deal %s settled %s..%s: net=%s payout=%s player=%s breach=%v",
		deal.ID, start.Format(time.DateOnly), end.Format(time.DateOnly),
		calc.NetProfit.StringFixed(2), calc.FinalPayout.StringFixed(2),
		calc.PlayerNet.StringFixed(2), calc.StopLossBreached)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastSettlementPosted(ws.SettlementPostedMessage{
			Type:             ws.MsgTypeSettlementPosted,
			SettlementID:     calc.ID,
			DealID:           deal.ID,
			PeriodStart:      calc.PeriodStart,
			PeriodEnd:        calc.PeriodEnd,
			NetProfit:        calc.NetProfit,
			FinalPayout:      calc.FinalPayout,
			PlayerNet:        calc.PlayerNet,
			StopLossBreached: calc.StopLossBreached,
			Timestamp:        time.Now().UTC(),
		}, deal.PlayerID, deal.InvestorID)
	}
	return calc, nil
}

// Preview runs the calculator over [start, end] without persisting anything.
// Used by the dashboard to show what a settlement would look like mid-period.
func (s *SettlementService) Preview(ctx context.Context, dealID uuid.UUID, start, end time.Time) (*domain.SettlementCalculation, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return s.compute(ctx, deal, start, end)
}

// ──────────────────────────────────────────────────────────────────────────────
// compute — assemble inputs and run the pure calculator
// ──────────────────────────────────────────────────────────────────────────────

func (s *SettlementService) compute(ctx context.Context, deal *domain.StakingDeal, start, end time.Time) (*domain.SettlementCalculation, error) {
	entries, err := s.tournamentRepo.GetEntriesInPeriod(ctx, deal.ID, start, end)
	if err != nil {
		return nil, err
	}
	expenses, err := s.tournamentRepo.GetExpensesInPeriod(ctx, deal.ID, start, end)
	if err != nil {
		return nil, err
	}
	priorLoss, err := s.settlementRepo.GetCumulativeInvestorLoss(ctx, deal.ID)
	if err != nil {
		return nil, err
	}

	period := domain.SettlementPeriod{
		Start:             start,
		End:               end,
		Tournaments:       entries,
		Expenses:          expenses,
		Fees:              s.feeTerms(),
		PriorInvestorLoss: priorLoss,
	}

	// Deals without their own withholding terms inherit the platform default.
	dealTerms := *deal
	if dealTerms.TaxWithholdingPct.IsZero() && s.cfg.Settlement.DefaultTaxPct > 0 {
		dealTerms.TaxWithholdingPct = decimal.NewFromFloat(s.cfg.Settlement.DefaultTaxPct)
	}

	calc, err := domain.CalculateSettlement(&dealTerms, period, nil)
	if err != nil {
		if errors.Is(err, domain.ErrAllocationMismatch) {
			// Calculator defect: surface loudly, never post partial numbers.
			log.Printf("[settlement] FATAL invariant failure for deal %s: %v", deal.ID, err)
		}
		return nil, err
	}
	calc.ID = uuid.New()
	calc.CreatedAt = time.Now().UTC()
	return calc, nil
}

// feeTerms builds the platform fee schedule from configuration.
func (s *SettlementService) feeTerms() []domain.FeeTerm {
	var fees []domain.FeeTerm
	if s.cfg.Settlement.ProcessingFee > 0 {
		fees = append(fees, domain.FeeTerm{
			Kind: domain.FeeProcessing,
			Flat: decimal.NewFromFloat(s.cfg.Settlement.ProcessingFee),
		})
	}
	if s.cfg.Settlement.PlatformFeePct > 0 {
		fees = append(fees, domain.FeeTerm{
			Kind:    domain.FeePlatform,
			Percent: decimal.NewFromFloat(s.cfg.Settlement.PlatformFeePct),
		})
	}
	return fees
}

// ──────────────────────────────────────────────────────────────────────────────
// post — atomic persistence and bankroll movement
// ──────────────────────────────────────────────────────────────────────────────

// post writes the settlement and moves both parties' bankrolls in a single
// transaction. The deal row is locked first so concurrent settlement runs for
// the same deal serialize; the settlements unique constraint guarantees that
// the loser of the race posts nothing.
func (s *SettlementService) post(ctx context.Context, deal *domain.StakingDeal, calc *domain.SettlementCalculation) error {
	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return fmt.Errorf("settlement_service.post: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	locked, lErr := s.dealRepo.GetByIDForUpdate(ctx, tx, deal.ID)
	if lErr != nil {
		txErr = lErr
		return txErr
	}
	if !locked.IsActive() {
		txErr = domain.ErrDealNotActive
		return txErr
	}

	if txErr = s.settlementRepo.Create(ctx, tx, calc); txErr != nil {
		return txErr
	}

	if txErr = s.moveFunds(ctx, tx, deal.InvestorID, calc.FinalPayout, calc.ID,
		fmt.Sprintf("Settlement %s: investor payout", calc.ID)); txErr != nil {
		return txErr
	}
	if txErr = s.moveFunds(ctx, tx, deal.PlayerID, calc.PlayerNet, calc.ID,
		fmt.Sprintf("Settlement %s: player net", calc.ID)); txErr != nil {
		return txErr
	}

	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("settlement_service.post: commit: %w", txErr)
	}
	return nil
}

// moveFunds applies a signed settlement amount to a user's bankroll with an
// audit row. A zero amount writes nothing.
func (s *SettlementService) moveFunds(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal, settlementID uuid.UUID, desc string) error {
	if amount.IsZero() {
		return nil
	}

	bankroll, err := s.bankrollRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return err
	}
	if err := s.bankrollRepo.AddBalance(ctx, tx, userID, amount); err != nil {
		return err
	}

	txType := domain.TxSettlementCredit
	if amount.IsNegative() {
		txType = domain.TxSettlementDebit
	}
	refID := settlementID
	txn := &domain.BankrollTransaction{
		ID:            uuid.New(),
		BankrollID:    bankroll.ID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: bankroll.Balance,
		BalanceAfter:  bankroll.Balance.Add(amount),
		RefID:         &refID,
		Description:   desc,
		CreatedAt:     time.Now().UTC(),
	}
	return s.bankrollRepo.LogTransaction(ctx, tx, txn)
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// GetSettlement fetches one settlement with its full breakdown.
func (s *SettlementService) GetSettlement(ctx context.Context, id uuid.UUID) (*domain.SettlementCalculation, error) {
	calc, err := s.settlementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.GetSettlement: %w", err)
	}
	return calc, nil
}

// ListSettlements returns a deal's posted settlements, newest first.
func (s *SettlementService) ListSettlements(ctx context.Context, dealID uuid.UUID, limit, offset int) ([]*domain.SettlementCalculation, int, error) {
	settlements, total, err := s.settlementRepo.ListByDeal(ctx, dealID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("settlement_service.ListSettlements: %w", err)
	}
	return settlements, total, nil
}
