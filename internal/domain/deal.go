// Package domain defines the core business entities and types for the
// stakehouse poker staking and settlement system.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// DealStatus represents the lifecycle state of a staking deal.
type DealStatus string

const (
	DealStatusDraft     DealStatus = "draft"     // terms agreed, not yet funded
	DealStatusActive    DealStatus = "active"    // accepting results and expenses
	DealStatusPaused    DealStatus = "paused"    // temporarily halted (e.g. stop-loss review)
	DealStatusCompleted DealStatus = "completed" // final settlement posted
	DealStatusCancelled DealStatus = "cancelled" // voided before completion
)

// ExpenseRule enumerates how period expenses are allocated between the
// investor and the player.
type ExpenseRule string

const (
	ExpenseSplitProportional ExpenseRule = "proportional"    // investor pays percentage share
	ExpensePlayerCovers      ExpenseRule = "player_covers"   // player absorbs all expenses
	ExpenseInvestorCovers    ExpenseRule = "investor_covers" // investor absorbs all expenses
)

// IsValid returns true if the rule is one of the three enumerated modes.
func (r ExpenseRule) IsValid() bool {
	return r == ExpenseSplitProportional || r == ExpensePlayerCovers || r == ExpenseInvestorCovers
}

// FeeKind identifies a fee deducted from the investor's gross share.
type FeeKind string

const (
	FeeProcessing FeeKind = "processing"
	FeeAdmin      FeeKind = "admin"
	FeePlatform   FeeKind = "platform"
)

// FeeTerm describes one fee applied to the investor's gross share at
// settlement time. Exactly one of Flat or Percent should be non-zero; when
// both are set the flat amount wins.
type FeeTerm struct {
	Kind    FeeKind         `json:"kind"    db:"kind"`
	Flat    decimal.Decimal `json:"flat"    db:"flat"`    // absolute amount
	Percent decimal.Decimal `json:"percent" db:"percent"` // % of gross share (0–100)
}

// AmountOn returns the fee amount for a given gross investor share.
// Percentage fees on a non-positive gross yield zero; flat fees always apply.
func (f FeeTerm) AmountOn(gross decimal.Decimal) decimal.Decimal {
	if !f.Flat.IsZero() {
		return f.Flat
	}
	if gross.Sign() <= 0 {
		return decimal.Zero
	}
	return gross.Mul(f.Percent).Div(decimal.NewFromInt(100))
}

// ──────────────────────────────────────────────────────────────────────────────
// StakingDeal
// ──────────────────────────────────────────────────────────────────────────────

// StakingDeal represents the agreed terms between a player and an investor.
// The percentage is the investor's raw share of net results; markup is the
// multiplier the investor pays for taking on variance risk. Expense handling
// and loss terms are fixed at creation and only read at calculation time.
type StakingDeal struct {
	ID                uuid.UUID        `json:"id"                  db:"id"`
	PlayerID          uuid.UUID        `json:"player_id"           db:"player_id"`
	InvestorID        uuid.UUID        `json:"investor_id"         db:"investor_id"`
	Percentage        decimal.Decimal  `json:"percentage"          db:"percentage"` // 0–100
	Markup            decimal.Decimal  `json:"markup"              db:"markup"`     // > 0, typically ≥ 1.0
	ExpenseRule       ExpenseRule      `json:"expense_rule"        db:"expense_rule"`
	Bankroll          decimal.Decimal  `json:"bankroll"            db:"bankroll"` // capital committed by the investor
	StopLossPct       *decimal.Decimal `json:"stop_loss_pct"       db:"stop_loss_pct"`       // cap on cumulative losses, % of Bankroll
	DrawdownAlertPct  *decimal.Decimal `json:"drawdown_alert_pct"  db:"drawdown_alert_pct"`  // alert threshold, % of Bankroll
	TaxWithholdingPct decimal.Decimal  `json:"tax_withholding_pct" db:"tax_withholding_pct"` // 0–100
	Status            DealStatus       `json:"status"              db:"status"`
	StartsAt          time.Time        `json:"starts_at"           db:"starts_at"`
	EndsAt            *time.Time       `json:"ends_at"             db:"ends_at"`
	CreatedAt         time.Time        `json:"created_at"          db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"          db:"updated_at"`
}

// IsActive returns true while the deal accepts results, expenses, and settlements.
func (d *StakingDeal) IsActive() bool {
	return d.Status == DealStatusActive
}

// IsTerminal returns true once the deal can no longer change.
func (d *StakingDeal) IsTerminal() bool {
	return d.Status == DealStatusCompleted || d.Status == DealStatusCancelled
}

// ValidateTerms rejects malformed deal terms before any calculation runs.
// Percentage must be within [0,100], markup strictly positive, and the
// expense rule one of the enumerated modes.
func (d *StakingDeal) ValidateTerms() error {
	hundred := decimal.NewFromInt(100)
	if d.Percentage.IsNegative() || d.Percentage.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	if d.Markup.Sign() <= 0 {
		return ErrInvalidMarkup
	}
	if !d.ExpenseRule.IsValid() {
		return ErrInvalidExpenseRule
	}
	if d.TaxWithholdingPct.IsNegative() || d.TaxWithholdingPct.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	return nil
}

// StopLossCap returns the absolute cumulative-loss cap for the investor, or
// (zero, false) when no stop-loss is configured.
func (d *StakingDeal) StopLossCap() (decimal.Decimal, bool) {
	if d.StopLossPct == nil || d.StopLossPct.IsZero() || d.Bankroll.IsZero() {
		return decimal.Zero, false
	}
	return d.Bankroll.Mul(*d.StopLossPct).Div(decimal.NewFromInt(100)), true
}

// DrawdownAlertLevel returns the absolute drawdown threshold that should raise
// an alert, or (zero, false) when none is configured.
func (d *StakingDeal) DrawdownAlertLevel() (decimal.Decimal, bool) {
	if d.DrawdownAlertPct == nil || d.DrawdownAlertPct.IsZero() || d.Bankroll.IsZero() {
		return decimal.Zero, false
	}
	return d.Bankroll.Mul(*d.DrawdownAlertPct).Div(decimal.NewFromInt(100)), true
}

// ──────────────────────────────────────────────────────────────────────────────
// CreateDealRequest — value object used by DealService
// ──────────────────────────────────────────────────────────────────────────────

// CreateDealRequest carries the validated inputs for creating a deal.
type CreateDealRequest struct {
	PlayerID          uuid.UUID
	InvestorID        uuid.UUID
	Percentage        decimal.Decimal
	Markup            decimal.Decimal
	ExpenseRule       ExpenseRule
	Bankroll          decimal.Decimal
	StopLossPct       *decimal.Decimal
	DrawdownAlertPct  *decimal.Decimal
	TaxWithholdingPct decimal.Decimal
	StartsAt          time.Time
}

// DealResponse is the API-safe view of a deal.
type DealResponse struct {
	ID                uuid.UUID        `json:"id"`
	PlayerID          uuid.UUID        `json:"player_id"`
	InvestorID        uuid.UUID        `json:"investor_id"`
	Percentage        decimal.Decimal  `json:"percentage"`
	Markup            decimal.Decimal  `json:"markup"`
	ExpenseRule       ExpenseRule      `json:"expense_rule"`
	Bankroll          decimal.Decimal  `json:"bankroll"`
	StopLossPct       *decimal.Decimal `json:"stop_loss_pct,omitempty"`
	DrawdownAlertPct  *decimal.Decimal `json:"drawdown_alert_pct,omitempty"`
	TaxWithholdingPct decimal.Decimal  `json:"tax_withholding_pct"`
	Status            DealStatus       `json:"status"`
	StartsAt          time.Time        `json:"starts_at"`
	EndsAt            *time.Time       `json:"ends_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// ToResponse converts a StakingDeal to its API response form.
func (d *StakingDeal) ToResponse() DealResponse {
	return DealResponse{
		ID:                d.ID,
		PlayerID:          d.PlayerID,
		InvestorID:        d.InvestorID,
		Percentage:        d.Percentage,
		Markup:            d.Markup,
		ExpenseRule:       d.ExpenseRule,
		Bankroll:          d.Bankroll,
		StopLossPct:       d.StopLossPct,
		DrawdownAlertPct:  d.DrawdownAlertPct,
		TaxWithholdingPct: d.TaxWithholdingPct,
		Status:            d.Status,
		StartsAt:          d.StartsAt,
		EndsAt:            d.EndsAt,
		CreatedAt:         d.CreatedAt,
	}
}
