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

// BankrollService moves user funds in and out of the platform. Every balance
// change locks the bankroll row and writes an audit transaction in the same
// database transaction.
type BankrollService struct {
	db           *sqlx.DB
	bankrollRepo *repository.BankrollRepository
}

// NewBankrollService creates a BankrollService.
func NewBankrollService(db *sqlx.DB, bankrollRepo *repository.BankrollRepository) *BankrollService {
	return &BankrollService{db: db, bankrollRepo: bankrollRepo}
}

// Deposit credits funds to a user's bankroll.
func (s *BankrollService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Bankroll, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrNegativeAmount
	}
	return s.move(ctx, userID, amount, domain.TxDeposit, "Deposit")
}

// Withdraw debits funds from a user's bankroll. Funds committed to active
// deals are not withdrawable.
func (s *BankrollService) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Bankroll, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrNegativeAmount
	}
	return s.move(ctx, userID, amount.Neg(), domain.TxWithdraw, "Withdrawal")
}

// AdminAdjust applies a signed correction to a user's bankroll with an audit
// trail naming the reason. Back-office only.
func (s *BankrollService) AdminAdjust(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string) (*domain.Bankroll, error) {
	if amount.IsZero() {
		return nil, domain.ErrNegativeAmount
	}
	return s.move(ctx, userID, amount, domain.TxAdjustment, fmt.Sprintf("Adjustment: %s", reason))
}

// move applies a signed delta under a row lock. Negative deltas must fit
// within the available (uncommitted) balance.
func (s *BankrollService) move(ctx context.Context, userID uuid.UUID, delta decimal.Decimal, txType domain.TxType, desc string) (*domain.Bankroll, error) {
	tx, txErr := s.db.BeginTxx(ctx, nil)
	if txErr != nil {
		return nil, fmt.Errorf("bankroll_service.move: begin tx: %w", txErr)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	bankroll, bErr := s.bankrollRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if bErr != nil {
		txErr = bErr
		return nil, txErr
	}
	if delta.IsNegative() && bankroll.Available().LessThan(delta.Neg()) {
		txErr = domain.ErrInsufficientBankroll
		return nil, txErr
	}

	if txErr = s.bankrollRepo.AddBalance(ctx, tx, userID, delta); txErr != nil {
		return nil, txErr
	}

	txn := &domain.BankrollTransaction{
		ID:            uuid.New(),
		BankrollID:    bankroll.ID,
		Type:          txType,
		Amount:        delta,
		BalanceBefore: bankroll.Balance,
		BalanceAfter:  bankroll.Balance.Add(delta),
		Description:   desc,
		CreatedAt:     time.Now().UTC(),
	}
	if txErr = s.bankrollRepo.LogTransaction(ctx, tx, txn); txErr != nil {
		return nil, txErr
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("bankroll_service.move: commit: %w", txErr)
	}

	bankroll.Balance = txn.BalanceAfter
	return bankroll, nil
}

// GetBankroll returns a user's bankroll.
func (s *BankrollService) GetBankroll(ctx context.Context, userID uuid.UUID) (*domain.Bankroll, error) {
	return s.bankrollRepo.GetByUserID(ctx, userID)
}

// GetTransactions returns a user's audit trail, newest first.
func (s *BankrollService) GetTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.BankrollTransaction, error) {
	return s.bankrollRepo.GetTransactions(ctx, userID, limit, offset)
}
