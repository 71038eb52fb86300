package repository

import (
	"context"
	"fmt"

	"github.com/feltline/stakehouse/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AlertRepository handles risk alert persistence.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts an alert row. A partial unique index on (deal_id, kind)
// WHERE NOT acknowledged keeps one open alert per kind per deal; duplicates
// are reported via the ok return so the risk loop can skip re-broadcasting.
func (r *AlertRepository) Create(ctx context.Context, a *domain.RiskAlert) (bool, error) {
	query := `
		INSERT INTO risk_alerts
			(id, deal_id, kind, threshold, observed, message, acknowledged, created_at)
		VALUES
			(:id, :deal_id, :kind, :threshold, :observed, :message, false, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("alert_repo.Create: %w", err)
	}
	return true, nil
}

// GetOpen returns unacknowledged alerts, newest first.
func (r *AlertRepository) GetOpen(ctx context.Context, limit, offset int) ([]*domain.RiskAlert, error) {
	var alerts []*domain.RiskAlert
	err := r.db.SelectContext(ctx, &alerts, `
		SELECT * FROM risk_alerts
		WHERE NOT acknowledged
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("alert_repo.GetOpen: %w", err)
	}
	return alerts, nil
}

// GetByDeal returns all alerts for a deal, newest first.
func (r *AlertRepository) GetByDeal(ctx context.Context, dealID uuid.UUID) ([]*domain.RiskAlert, error) {
	var alerts []*domain.RiskAlert
	err := r.db.SelectContext(ctx, &alerts, `
		SELECT * FROM risk_alerts
		WHERE deal_id = $1
		ORDER BY created_at DESC`,
		dealID)
	if err != nil {
		return nil, fmt.Errorf("alert_repo.GetByDeal: %w", err)
	}
	return alerts, nil
}

// Acknowledge marks an alert as handled (back-office action).
func (r *AlertRepository) Acknowledge(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE risk_alerts SET acknowledged = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("alert_repo.Acknowledge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}
