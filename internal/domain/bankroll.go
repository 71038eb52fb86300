package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Bankroll
// ──────────────────────────────────────────────────────────────────────────────

// Bankroll holds a user's funds. Committed tracks the portion locked into
// active staking deals; it is released when a deal completes or cancels.
type Bankroll struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	UserID    uuid.UUID       `json:"user_id"    db:"user_id"`
	Balance   decimal.Decimal `json:"balance"    db:"balance"`
	Committed decimal.Decimal `json:"committed"  db:"committed"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Available returns the balance free to commit to new deals.
func (b *Bankroll) Available() decimal.Decimal {
	return b.Balance.Sub(b.Committed)
}

// ──────────────────────────────────────────────────────────────────────────────
// BankrollTransaction
// ──────────────────────────────────────────────────────────────────────────────

// TxType enumerates bankroll transaction types for auditing.
type TxType string

const (
	TxDeposit          TxType = "deposit"
	TxWithdraw         TxType = "withdraw"
	TxDealCommit       TxType = "deal_commit"   // funds locked into a new deal
	TxDealRelease      TxType = "deal_release"  // commitment released on completion
	TxSettlementCredit TxType = "settlement_credit"
	TxSettlementDebit  TxType = "settlement_debit"
	TxTaxWithholding   TxType = "tax_withholding"
	TxFee              TxType = "fee"
	TxAdjustment       TxType = "adjustment" // manual back-office correction
)

// BankrollTransaction is an immutable audit record for every balance change.
type BankrollTransaction struct {
	ID            uuid.UUID       `json:"id"             db:"id"`
	BankrollID    uuid.UUID       `json:"bankroll_id"    db:"bankroll_id"`
	Type          TxType          `json:"type"           db:"type"`
	Amount        decimal.Decimal `json:"amount"         db:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"  db:"balance_after"`
	RefID         *uuid.UUID      `json:"ref_id"         db:"ref_id"` // deal or settlement ID
	Description   string          `json:"description"    db:"description"`
	CreatedAt     time.Time       `json:"created_at"     db:"created_at"`
}
