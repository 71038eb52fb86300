package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/feltline/stakehouse/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SettlementRepository handles settlement records and their breakdown lines.
type SettlementRepository struct {
	db *sqlx.DB
}

// NewSettlementRepository creates a new SettlementRepository.
func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Create persists a settlement with its tournament and expense breakdown lines
// inside a transaction. The settlements table has a UNIQUE(deal_id,
// period_start, period_end) constraint; a duplicate insert maps to
// ErrSettlementAlreadyPosted so retried runs stay idempotent.
func (r *SettlementRepository) Create(ctx context.Context, tx *sqlx.Tx, s *domain.SettlementCalculation) error {
	query := `
		INSERT INTO settlements
			(id, deal_id, period_start, period_end,
			 total_winnings, total_buy_ins, total_expenses, net_profit,
			 percentage, markup,
			 investor_share, player_share,
			 investor_expenses, player_expenses, gross_investor_share,
			 total_fees, tax_withheld, final_payout, player_net,
			 stop_loss_breached, created_at)
		VALUES
			(:id, :deal_id, :period_start, :period_end,
			 :total_winnings, :total_buy_ins, :total_expenses, :net_profit,
			 :percentage, :markup,
			 :investor_share, :player_share,
			 :investor_expenses, :player_expenses, :gross_investor_share,
			 :total_fees, :tax_withheld, :final_payout, :player_net,
			 :stop_loss_breached, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, s); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSettlementAlreadyPosted
		}
		return fmt.Errorf("settlement_repo.Create: %w", err)
	}

	for i := range s.Tournaments {
		line := s.Tournaments[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settlement_tournaments
				(settlement_id, entry_id, event_name, buy_in, prize, net_result,
				 investor_allocation, player_allocation)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			s.ID, line.EntryID, line.EventName, line.BuyIn, line.Prize,
			line.NetResult, line.InvestorAllocation, line.PlayerAllocation)
		if err != nil {
			return fmt.Errorf("settlement_repo.Create tournament line: %w", err)
		}
	}

	for i := range s.Expenses {
		line := s.Expenses[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settlement_expenses
				(settlement_id, entry_id, category, total_amount,
				 investor_portion, player_portion)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			s.ID, line.EntryID, line.Category, line.TotalAmount,
			line.InvestorPortion, line.PlayerPortion)
		if err != nil {
			return fmt.Errorf("settlement_repo.Create expense line: %w", err)
		}
	}

	for i := range s.Fees {
		fee := s.Fees[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settlement_fees (settlement_id, kind, amount)
			VALUES ($1, $2, $3)`,
			s.ID, fee.Kind, fee.Amount)
		if err != nil {
			return fmt.Errorf("settlement_repo.Create fee line: %w", err)
		}
	}
	return nil
}

// GetByID fetches a settlement with its breakdown lines.
func (r *SettlementRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SettlementCalculation, error) {
	var s domain.SettlementCalculation
	err := r.db.GetContext(ctx, &s, `SELECT * FROM settlements WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSettlementNotFound
		}
		return nil, fmt.Errorf("settlement_repo.GetByID: %w", err)
	}
	if err := r.loadLines(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByDealAndPeriod fetches the settlement posted for an exact period, if any.
func (r *SettlementRepository) GetByDealAndPeriod(ctx context.Context, dealID uuid.UUID, start, end time.Time) (*domain.SettlementCalculation, error) {
	var s domain.SettlementCalculation
	err := r.db.GetContext(ctx, &s, `
		SELECT * FROM settlements
		WHERE deal_id = $1 AND period_start = $2 AND period_end = $3`,
		dealID, start, end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSettlementNotFound
		}
		return nil, fmt.Errorf("settlement_repo.GetByDealAndPeriod: %w", err)
	}
	if err := r.loadLines(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByDeal returns a deal's settlements newest first, without breakdown lines.
func (r *SettlementRepository) ListByDeal(ctx context.Context, dealID uuid.UUID, limit, offset int) ([]*domain.SettlementCalculation, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM settlements WHERE deal_id = $1`, dealID); err != nil {
		return nil, 0, fmt.Errorf("settlement_repo.ListByDeal count: %w", err)
	}
	var settlements []*domain.SettlementCalculation
	err := r.db.SelectContext(ctx, &settlements, `
		SELECT * FROM settlements
		WHERE deal_id = $1
		ORDER BY period_end DESC
		LIMIT $2 OFFSET $3`,
		dealID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("settlement_repo.ListByDeal select: %w", err)
	}
	return settlements, total, nil
}

// GetLastPeriodEnd returns the latest posted period end for a deal, or
// (zero, false) when the deal has never settled.
func (r *SettlementRepository) GetLastPeriodEnd(ctx context.Context, dealID uuid.UUID) (time.Time, bool, error) {
	var last sql.NullTime
	err := r.db.GetContext(ctx, &last,
		`SELECT MAX(period_end) FROM settlements WHERE deal_id = $1`, dealID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("settlement_repo.GetLastPeriodEnd: %w", err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	return last.Time, true, nil
}

// GetCumulativeInvestorLoss sums the magnitude of the investor's losing
// periods for a deal. Winning periods do not offset the sum; the stop-loss
// tracks gross losses absorbed, not net position.
func (r *SettlementRepository) GetCumulativeInvestorLoss(ctx context.Context, dealID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(-gross_investor_share), 0)
		FROM settlements
		WHERE deal_id = $1 AND gross_investor_share < 0`,
		dealID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("settlement_repo.GetCumulativeInvestorLoss: %w", err)
	}
	return total, nil
}

// FinanceReport aggregates settlement totals over a reporting window.
type FinanceReport struct {
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	SettlementCount  int             `json:"settlement_count"       db:"settlement_count"`
	TotalWinnings    decimal.Decimal `json:"total_winnings"         db:"total_winnings"`
	TotalBuyIns      decimal.Decimal `json:"total_buy_ins"          db:"total_buy_ins"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"         db:"total_expenses"`
	TotalNetProfit   decimal.Decimal `json:"total_net_profit"       db:"total_net_profit"`
	TotalFees        decimal.Decimal `json:"total_fees"             db:"total_fees"`
	TotalTaxWithheld decimal.Decimal `json:"total_tax_withheld"     db:"total_tax_withheld"`
	InvestorPayouts  decimal.Decimal `json:"investor_payouts"       db:"investor_payouts"`
	StopLossBreaches int             `json:"stop_loss_breaches"     db:"stop_loss_breaches"`
}

// GetFinanceReport sums settlements posted within [from, to) for the
// back-office period report.
func (r *SettlementRepository) GetFinanceReport(ctx context.Context, from, to time.Time) (*FinanceReport, error) {
	report := FinanceReport{From: from, To: to}
	err := r.db.GetContext(ctx, &report, `
		SELECT
			COUNT(*)                                            AS settlement_count,
			COALESCE(SUM(total_winnings), 0)                    AS total_winnings,
			COALESCE(SUM(total_buy_ins), 0)                     AS total_buy_ins,
			COALESCE(SUM(total_expenses), 0)                    AS total_expenses,
			COALESCE(SUM(net_profit), 0)                        AS total_net_profit,
			COALESCE(SUM(total_fees), 0)                        AS total_fees,
			COALESCE(SUM(tax_withheld), 0)                      AS total_tax_withheld,
			COALESCE(SUM(final_payout), 0)                      AS investor_payouts,
			COUNT(*) FILTER (WHERE stop_loss_breached)          AS stop_loss_breaches
		FROM settlements
		WHERE created_at >= $1 AND created_at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("settlement_repo.GetFinanceReport: %w", err)
	}
	return &report, nil
}

// loadLines populates the breakdown slices of a settlement.
func (r *SettlementRepository) loadLines(ctx context.Context, s *domain.SettlementCalculation) error {
	err := r.db.SelectContext(ctx, &s.Tournaments, `
		SELECT entry_id, event_name, buy_in, prize, net_result,
		       investor_allocation, player_allocation
		FROM settlement_tournaments
		WHERE settlement_id = $1`,
		s.ID)
	if err != nil {
		return fmt.Errorf("settlement_repo.loadLines tournaments: %w", err)
	}
	err = r.db.SelectContext(ctx, &s.Expenses, `
		SELECT entry_id, category, total_amount, investor_portion, player_portion
		FROM settlement_expenses
		WHERE settlement_id = $1`,
		s.ID)
	if err != nil {
		return fmt.Errorf("settlement_repo.loadLines expenses: %w", err)
	}
	err = r.db.SelectContext(ctx, &s.Fees, `
		SELECT kind, amount FROM settlement_fees WHERE settlement_id = $1`,
		s.ID)
	if err != nil {
		return fmt.Errorf("settlement_repo.loadLines fees: %w", err)
	}
	return nil
}
