package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/feltline/stakehouse/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// BankrollRepository handles all database operations for Bankrolls and their
// audit transactions.
type BankrollRepository struct {
	db *sqlx.DB
}

// NewBankrollRepository creates a new BankrollRepository.
func NewBankrollRepository(db *sqlx.DB) *BankrollRepository {
	return &BankrollRepository{db: db}
}

// Create inserts a fresh bankroll row for a user (registration time).
func (r *BankrollRepository) Create(ctx context.Context, tx *sqlx.Tx, b *domain.Bankroll) error {
	query := `
		INSERT INTO bankrolls
			(id, user_id, balance, committed, created_at, updated_at)
		VALUES
			(:id, :user_id, :balance, :committed, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, b); err != nil {
		return fmt.Errorf("bankroll_repo.Create: %w", err)
	}
	return nil
}

// GetByUserID fetches the bankroll belonging to a specific user.
func (r *BankrollRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Bankroll, error) {
	var b domain.Bankroll
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bankrolls WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBankrollNotFound
		}
		return nil, fmt.Errorf("bankroll_repo.GetByUserID: %w", err)
	}
	return &b, nil
}

// GetByUserIDForUpdate fetches and locks a bankroll row within a transaction.
// Every money movement locks the row first so concurrent settlements and
// deposits serialize.
func (r *BankrollRepository) GetByUserIDForUpdate(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*domain.Bankroll, error) {
	var b domain.Bankroll
	err := tx.GetContext(ctx, &b, `SELECT * FROM bankrolls WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBankrollNotFound
		}
		return nil, fmt.Errorf("bankroll_repo.GetByUserIDForUpdate: %w", err)
	}
	return &b, nil
}

// AddBalance applies a signed delta to a bankroll's balance inside a
// transaction (positive = credit, negative = debit). The caller must have
// locked the row via GetByUserIDForUpdate and verified sufficiency.
func (r *BankrollRepository) AddBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bankrolls SET balance = balance + $1, updated_at = now() WHERE user_id = $2`,
		delta, userID)
	if err != nil {
		return fmt.Errorf("bankroll_repo.AddBalance: %w", err)
	}
	return nil
}

// Commit increments the committed field (funds locked into a deal).
func (r *BankrollRepository) Commit(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bankrolls SET committed = committed + $1, updated_at = now() WHERE user_id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("bankroll_repo.Commit: %w", err)
	}
	return nil
}

// Release decrements the committed field (deal completed or cancelled).
func (r *BankrollRepository) Release(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE bankrolls SET committed = GREATEST(committed - $1, 0), updated_at = now() WHERE user_id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("bankroll_repo.Release: %w", err)
	}
	return nil
}

// LogTransaction inserts an audit record inside a transaction.
func (r *BankrollRepository) LogTransaction(ctx context.Context, tx *sqlx.Tx, txn *domain.BankrollTransaction) error {
	query := `
		INSERT INTO bankroll_transactions
			(id, bankroll_id, type, amount, balance_before, balance_after, ref_id, description, created_at)
		VALUES
			(:id, :bankroll_id, :type, :amount, :balance_before, :balance_after, :ref_id, :description, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, txn); err != nil {
		return fmt.Errorf("bankroll_repo.LogTransaction: %w", err)
	}
	return nil
}

// GetTransactions returns paginated transaction history for a user's bankroll.
func (r *BankrollRepository) GetTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.BankrollTransaction, error) {
	var txns []*domain.BankrollTransaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT bt.*
		FROM bankroll_transactions bt
		JOIN bankrolls b ON b.id = bt.bankroll_id
		WHERE b.user_id = $1
		ORDER BY bt.created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bankroll_repo.GetTransactions: %w", err)
	}
	return txns, nil
}
