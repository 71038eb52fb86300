package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// TournamentEntry
// ──────────────────────────────────────────────────────────────────────────────

// TournamentEntry records one tournament played under a deal: the buy-in paid
// and the prize won (zero when busted before the money).
type TournamentEntry struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	DealID    uuid.UUID       `json:"deal_id"    db:"deal_id"`
	Venue     string          `json:"venue"      db:"venue"`
	EventName string          `json:"event_name" db:"event_name"`
	BuyIn     decimal.Decimal `json:"buy_in"     db:"buy_in"`
	Prize     decimal.Decimal `json:"prize"      db:"prize"`
	PlayedAt  time.Time       `json:"played_at"  db:"played_at"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Net returns prize − buy-in for this entry. Negative for a losing tournament.
func (t *TournamentEntry) Net() decimal.Decimal {
	return t.Prize.Sub(t.BuyIn)
}

// Validate rejects negative monetary fields.
func (t *TournamentEntry) Validate() error {
	if t.BuyIn.IsNegative() || t.Prize.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ExpenseEntry
// ──────────────────────────────────────────────────────────────────────────────

// ExpenseCategory groups expense entries for reporting.
type ExpenseCategory string

const (
	ExpenseTravel  ExpenseCategory = "travel"
	ExpenseLodging ExpenseCategory = "lodging"
	ExpenseMeals   ExpenseCategory = "meals"
	ExpenseOther   ExpenseCategory = "other"
)

// ExpenseEntry records one circuit expense incurred under a deal during a
// settlement period.
type ExpenseEntry struct {
	ID          uuid.UUID       `json:"id"          db:"id"`
	DealID      uuid.UUID       `json:"deal_id"     db:"deal_id"`
	Category    ExpenseCategory `json:"category"    db:"category"`
	Description string          `json:"description" db:"description"`
	Amount      decimal.Decimal `json:"amount"      db:"amount"`
	IncurredAt  time.Time       `json:"incurred_at" db:"incurred_at"`
	CreatedAt   time.Time       `json:"created_at"  db:"created_at"`
}

// Validate rejects negative amounts.
func (e *ExpenseEntry) Validate() error {
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementPeriod — calculation input
// ──────────────────────────────────────────────────────────────────────────────

// SettlementPeriod bundles one reporting period's results for a single deal.
// Period bounds are inclusive on both ends. PriorInvestorLoss is the
// cumulative loss already allocated to the investor since deal inception,
// needed for stop-loss evaluation.
type SettlementPeriod struct {
	Start             time.Time
	End               time.Time
	Tournaments       []TournamentEntry
	Expenses          []ExpenseEntry
	Fees              []FeeTerm
	PriorInvestorLoss decimal.Decimal
}

// Validate checks the period bounds and that every entry is dated within them.
func (p *SettlementPeriod) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	for i := range p.Tournaments {
		if err := p.Tournaments[i].Validate(); err != nil {
			return err
		}
		if !p.contains(p.Tournaments[i].PlayedAt) {
			return ErrEntryOutsidePeriod
		}
	}
	for i := range p.Expenses {
		if err := p.Expenses[i].Validate(); err != nil {
			return err
		}
		if !p.contains(p.Expenses[i].IncurredAt) {
			return ErrEntryOutsidePeriod
		}
	}
	return nil
}

// contains reports whether t falls within [Start, End] inclusive.
func (p *SettlementPeriod) contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}
