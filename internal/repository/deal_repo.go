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
	"github.com/lib/pq"
)

// DealRepository handles all database operations for StakingDeals.
type DealRepository struct {
	db *sqlx.DB
}

// NewDealRepository creates a new DealRepository.
func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

// Create inserts a new staking deal row.
func (r *DealRepository) Create(ctx context.Context, d *domain.StakingDeal) error {
	query := `
		INSERT INTO staking_deals
			(id, player_id, investor_id, percentage, markup, expense_rule, bankroll,
			 stop_loss_pct, drawdown_alert_pct, tax_withholding_pct, status,
			 starts_at, ends_at, created_at, updated_at)
		VALUES
			(:id, :player_id, :investor_id, :percentage, :markup, :expense_rule, :bankroll,
			 :stop_loss_pct, :drawdown_alert_pct, :tax_withholding_pct, :status,
			 :starts_at, :ends_at, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, d)
	if err != nil {
		return fmt.Errorf("deal_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a deal by its primary key.
func (r *DealRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.StakingDeal, error) {
	var d domain.StakingDeal
	err := r.db.GetContext(ctx, &d, `SELECT * FROM staking_deals WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDealNotFound
		}
		return nil, fmt.Errorf("deal_repo.GetByID: %w", err)
	}
	return &d, nil
}

// GetByIDForUpdate fetches a deal and locks its row within a transaction.
// Settlement runs lock the deal first so concurrent runs serialize.
func (r *DealRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.StakingDeal, error) {
	var d domain.StakingDeal
	err := tx.GetContext(ctx, &d, `SELECT * FROM staking_deals WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDealNotFound
		}
		return nil, fmt.Errorf("deal_repo.GetByIDForUpdate: %w", err)
	}
	return &d, nil
}

// GetActiveDue returns active deals whose latest settlement period ended before
// the cutoff (or that were never settled and started before it), limited to
// batchSize rows.
func (r *DealRepository) GetActiveDue(ctx context.Context, cutoff time.Time, batchSize int) ([]*domain.StakingDeal, error) {
	var deals []*domain.StakingDeal
	err := r.db.SelectContext(ctx, &deals, `
		SELECT d.*
		FROM staking_deals d
		LEFT JOIN LATERAL (
			SELECT MAX(period_end) AS last_end
			FROM settlements s
			WHERE s.deal_id = d.id
		) ls ON true
		WHERE d.status = 'active'
		  AND COALESCE(ls.last_end, d.starts_at) <= $1
		ORDER BY COALESCE(ls.last_end, d.starts_at) ASC
		LIMIT $2`,
		cutoff, batchSize)
	if err != nil {
		return nil, fmt.Errorf("deal_repo.GetActiveDue: %w", err)
	}
	return deals, nil
}

// ListByUser returns a paginated slice of deals where the user is player or
// investor, filtered by optional status. status="" returns all statuses.
// Returns (deals, totalCount, error).
func (r *DealRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int, status string) ([]*domain.StakingDeal, int, error) {
	var deals []*domain.StakingDeal
	var total int

	if status != "" {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM staking_deals
			 WHERE (player_id = $1 OR investor_id = $1) AND status = $2`,
			userID, status); err != nil {
			return nil, 0, fmt.Errorf("deal_repo.ListByUser count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &deals,
			`SELECT * FROM staking_deals
			 WHERE (player_id = $1 OR investor_id = $1) AND status = $2
			 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
			userID, status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("deal_repo.ListByUser select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM staking_deals WHERE player_id = $1 OR investor_id = $1`,
			userID); err != nil {
			return nil, 0, fmt.Errorf("deal_repo.ListByUser count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &deals,
			`SELECT * FROM staking_deals
			 WHERE player_id = $1 OR investor_id = $1
			 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			userID, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("deal_repo.ListByUser select: %w", err)
		}
	}
	return deals, total, nil
}

// List returns a paginated slice of all deals filtered by optional status.
// Used by the back-office.
func (r *DealRepository) List(ctx context.Context, limit, offset int, status string) ([]*domain.StakingDeal, int, error) {
	var deals []*domain.StakingDeal
	var total int

	if status != "" {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM staking_deals WHERE status = $1`, status); err != nil {
			return nil, 0, fmt.Errorf("deal_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &deals,
			`SELECT * FROM staking_deals WHERE status = $1
			 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("deal_repo.List select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM staking_deals`); err != nil {
			return nil, 0, fmt.Errorf("deal_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &deals,
			`SELECT * FROM staking_deals ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset); err != nil {
			return nil, 0, fmt.Errorf("deal_repo.List select: %w", err)
		}
	}
	return deals, total, nil
}

// UpdateStatus transitions a deal between lifecycle states. The allowed `from`
// states are enforced in SQL so a stale caller cannot clobber a newer state.
func (r *DealRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.DealStatus, from ...domain.DealStatus) error {
	query := `UPDATE staking_deals SET status = $1, updated_at = now() WHERE id = $2`
	args := []interface{}{string(to), id}
	if len(from) > 0 {
		states := make([]string, len(from))
		for i, s := range from {
			states[i] = string(s)
		}
		query += ` AND status = ANY($3)`
		args = append(args, pq.Array(states))
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deal_repo.UpdateStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDealNotFound
	}
	return nil
}
