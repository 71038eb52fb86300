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
)

// TournamentRepository handles tournament entries and expense entries.
type TournamentRepository struct {
	db *sqlx.DB
}

// NewTournamentRepository creates a new TournamentRepository.
func NewTournamentRepository(db *sqlx.DB) *TournamentRepository {
	return &TournamentRepository{db: db}
}

// ── Tournament entries ────────────────────────────────────────────────────────

// CreateEntry inserts a tournament result row inside a transaction.
func (r *TournamentRepository) CreateEntry(ctx context.Context, tx *sqlx.Tx, e *domain.TournamentEntry) error {
	query := `
		INSERT INTO tournament_entries
			(id, deal_id, venue, event_name, buy_in, prize, played_at, created_at)
		VALUES
			(:id, :deal_id, :venue, :event_name, :buy_in, :prize, :played_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("tournament_repo.CreateEntry: %w", err)
	}
	return nil
}

// GetEntryByID fetches a single tournament entry.
func (r *TournamentRepository) GetEntryByID(ctx context.Context, id uuid.UUID) (*domain.TournamentEntry, error) {
	var e domain.TournamentEntry
	err := r.db.GetContext(ctx, &e, `SELECT * FROM tournament_entries WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResultNotFound
		}
		return nil, fmt.Errorf("tournament_repo.GetEntryByID: %w", err)
	}
	return &e, nil
}

// GetEntriesInPeriod returns a deal's tournament entries played within
// [from, to] inclusive, in play order.
func (r *TournamentRepository) GetEntriesInPeriod(ctx context.Context, dealID uuid.UUID, from, to time.Time) ([]domain.TournamentEntry, error) {
	var entries []domain.TournamentEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM tournament_entries
		WHERE deal_id = $1 AND played_at >= $2 AND played_at <= $3
		ORDER BY played_at ASC`,
		dealID, from, to)
	if err != nil {
		return nil, fmt.Errorf("tournament_repo.GetEntriesInPeriod: %w", err)
	}
	return entries, nil
}

// GetEntriesByDeal returns the full tournament history of a deal in play order.
// Used by risk evaluation, which needs the whole cumulative curve.
func (r *TournamentRepository) GetEntriesByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.TournamentEntry, error) {
	var entries []domain.TournamentEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM tournament_entries
		WHERE deal_id = $1
		ORDER BY played_at ASC`,
		dealID)
	if err != nil {
		return nil, fmt.Errorf("tournament_repo.GetEntriesByDeal: %w", err)
	}
	return entries, nil
}

// ListEntries returns paginated tournament entries for a deal, newest first.
func (r *TournamentRepository) ListEntries(ctx context.Context, dealID uuid.UUID, limit, offset int) ([]domain.TournamentEntry, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM tournament_entries WHERE deal_id = $1`, dealID); err != nil {
		return nil, 0, fmt.Errorf("tournament_repo.ListEntries count: %w", err)
	}
	var entries []domain.TournamentEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM tournament_entries
		WHERE deal_id = $1
		ORDER BY played_at DESC
		LIMIT $2 OFFSET $3`,
		dealID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("tournament_repo.ListEntries select: %w", err)
	}
	return entries, total, nil
}

// ── Expense entries ───────────────────────────────────────────────────────────

// CreateExpense inserts an expense row inside a transaction.
func (r *TournamentRepository) CreateExpense(ctx context.Context, tx *sqlx.Tx, e *domain.ExpenseEntry) error {
	query := `
		INSERT INTO expense_entries
			(id, deal_id, category, description, amount, incurred_at, created_at)
		VALUES
			(:id, :deal_id, :category, :description, :amount, :incurred_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("tournament_repo.CreateExpense: %w", err)
	}
	return nil
}

// GetExpenseByID fetches a single expense entry.
func (r *TournamentRepository) GetExpenseByID(ctx context.Context, id uuid.UUID) (*domain.ExpenseEntry, error) {
	var e domain.ExpenseEntry
	err := r.db.GetContext(ctx, &e, `SELECT * FROM expense_entries WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrExpenseNotFound
		}
		return nil, fmt.Errorf("tournament_repo.GetExpenseByID: %w", err)
	}
	return &e, nil
}

// GetExpensesInPeriod returns a deal's expenses incurred within [from, to]
// inclusive, in time order.
func (r *TournamentRepository) GetExpensesInPeriod(ctx context.Context, dealID uuid.UUID, from, to time.Time) ([]domain.ExpenseEntry, error) {
	var expenses []domain.ExpenseEntry
	err := r.db.SelectContext(ctx, &expenses, `
		SELECT * FROM expense_entries
		WHERE deal_id = $1 AND incurred_at >= $2 AND incurred_at <= $3
		ORDER BY incurred_at ASC`,
		dealID, from, to)
	if err != nil {
		return nil, fmt.Errorf("tournament_repo.GetExpensesInPeriod: %w", err)
	}
	return expenses, nil
}

// ListExpenses returns paginated expenses for a deal, newest first.
func (r *TournamentRepository) ListExpenses(ctx context.Context, dealID uuid.UUID, limit, offset int) ([]domain.ExpenseEntry, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM expense_entries WHERE deal_id = $1`, dealID); err != nil {
		return nil, 0, fmt.Errorf("tournament_repo.ListExpenses count: %w", err)
	}
	var expenses []domain.ExpenseEntry
	err := r.db.SelectContext(ctx, &expenses, `
		SELECT * FROM expense_entries
		WHERE deal_id = $1
		ORDER BY incurred_at DESC
		LIMIT $2 OFFSET $3`,
		dealID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("tournament_repo.ListExpenses select: %w", err)
	}
	return expenses, total, nil
}
