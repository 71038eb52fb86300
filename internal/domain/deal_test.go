package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/feltline/stakehouse/internal/domain"
	"github.com/shopspring/decimal"
)

// ── Deal terms validation ─────────────────────────────────────────────────────

func TestStakingDeal_ValidateTerms(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*domain.StakingDeal)
		wantErr error
	}{
		{"valid", func(d *domain.StakingDeal) {}, nil},
		{"pct negative", func(d *domain.StakingDeal) {
			d.Percentage = decimal.NewFromInt(-1)
		}, domain.ErrInvalidPercentage},
		{"pct over 100", func(d *domain.StakingDeal) {
			d.Percentage = decimal.NewFromFloat(100.01)
		}, domain.ErrInvalidPercentage},
		{"markup zero", func(d *domain.StakingDeal) {
			d.Markup = decimal.Zero
		}, domain.ErrInvalidMarkup},
		{"markup negative", func(d *domain.StakingDeal) {
			d.Markup = decimal.NewFromFloat(-1.2)
		}, domain.ErrInvalidMarkup},
		{"bad expense rule", func(d *domain.StakingDeal) {
			d.ExpenseRule = domain.ExpenseRule("split_even")
		}, domain.ErrInvalidExpenseRule},
		{"tax over 100", func(d *domain.StakingDeal) {
			d.TaxWithholdingPct = decimal.NewFromInt(101)
		}, domain.ErrInvalidPercentage},
	}
	for _, tc := range cases {
		deal := testDeal(20, 1.2)
		tc.mutate(deal)
		err := deal.ValidateTerms()
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: ValidateTerms() = %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestStakingDeal_Lifecycle(t *testing.T) {
	deal := testDeal(20, 1.2)
	if !deal.IsActive() {
		t.Error("deal with DealStatusActive should be active")
	}
	deal.Status = domain.DealStatusCompleted
	if deal.IsActive() {
		t.Error("completed deal should not be active")
	}
	if !deal.IsTerminal() {
		t.Error("completed deal should be terminal")
	}
	deal.Status = domain.DealStatusPaused
	if deal.IsTerminal() {
		t.Error("paused deal should not be terminal")
	}
}

func TestDealStatus_StoredValues(t *testing.T) {
	// Repositories filter with these literals; the DB stores them as-is.
	want := map[domain.DealStatus]string{
		domain.DealStatusDraft:     "draft",
		domain.DealStatusActive:    "active",
		domain.DealStatusPaused:    "paused",
		domain.DealStatusCompleted: "completed",
		domain.DealStatusCancelled: "cancelled",
	}
	for status, s := range want {
		if string(status) != s {
			t.Errorf("status stored as %q, want %q", string(status), s)
		}
	}
}

// ── Derived thresholds ────────────────────────────────────────────────────────

func TestStakingDeal_StopLossCap(t *testing.T) {
	deal := testDeal(20, 1.2) // bankroll 50 000
	if _, ok := deal.StopLossCap(); ok {
		t.Error("no stop-loss configured, ok should be false")
	}

	pct := decimal.NewFromInt(10)
	deal.StopLossPct = &pct
	limit, ok := deal.StopLossCap()
	if !ok {
		t.Fatal("stop-loss configured, ok should be true")
	}
	if !limit.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("StopLossCap() = %s, want 5000", limit)
	}
}

func TestStakingDeal_DrawdownAlertLevel(t *testing.T) {
	deal := testDeal(20, 1.2)
	pct := decimal.NewFromInt(5)
	deal.DrawdownAlertPct = &pct
	level, ok := deal.DrawdownAlertLevel()
	if !ok || !level.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("DrawdownAlertLevel() = %s/%v, want 2500/true", level, ok)
	}
}

// ── Fee terms ─────────────────────────────────────────────────────────────────

func TestFeeTerm_AmountOn(t *testing.T) {
	gross := decimal.NewFromInt(5000)

	flat := domain.FeeTerm{Kind: domain.FeeProcessing, Flat: decimal.NewFromInt(25)}
	if !flat.AmountOn(gross).Equal(decimal.NewFromInt(25)) {
		t.Errorf("flat fee = %s, want 25", flat.AmountOn(gross))
	}

	pct := domain.FeeTerm{Kind: domain.FeePlatform, Percent: decimal.NewFromInt(2)}
	if !pct.AmountOn(gross).Equal(decimal.NewFromInt(100)) {
		t.Errorf("2%% fee = %s, want 100", pct.AmountOn(gross))
	}

	// Percentage fees never apply to a losing period.
	loss := decimal.NewFromInt(-5000)
	if !pct.AmountOn(loss).IsZero() {
		t.Errorf("2%% fee on loss = %s, want 0", pct.AmountOn(loss))
	}
}

// ── Entry validation ──────────────────────────────────────────────────────────

func TestTournamentEntry_Validate(t *testing.T) {
	e := entry(1000, 0)
	if err := e.Validate(); err != nil {
		t.Errorf("busted entry should be valid, got %v", err)
	}
	e.BuyIn = decimal.NewFromInt(-1)
	if err := e.Validate(); !errors.Is(err, domain.ErrNegativeAmount) {
		t.Errorf("negative buy-in: %v, want ErrNegativeAmount", err)
	}
}

func TestBankroll_Available(t *testing.T) {
	b := &domain.Bankroll{
		Balance:   decimal.NewFromInt(10000),
		Committed: decimal.NewFromInt(4000),
	}
	if !b.Available().Equal(decimal.NewFromInt(6000)) {
		t.Errorf("Available() = %s, want 6000", b.Available())
	}
}

// ── Error predicates ──────────────────────────────────────────────────────────

func TestErrorPredicates(t *testing.T) {
	if !domain.IsNotFound(domain.ErrDealNotFound) {
		t.Error("ErrDealNotFound should satisfy IsNotFound")
	}
	if !domain.IsValidation(domain.ErrInvalidMarkup) {
		t.Error("ErrInvalidMarkup should satisfy IsValidation")
	}
	if !domain.IsConflict(domain.ErrSettlementAlreadyPosted) {
		t.Error("ErrSettlementAlreadyPosted should satisfy IsConflict")
	}
	if !domain.IsAuthError(domain.ErrTokenExpired) {
		t.Error("ErrTokenExpired should satisfy IsAuthError")
	}
	if domain.IsNotFound(domain.ErrInvalidMarkup) {
		t.Error("validation error should not satisfy IsNotFound")
	}
}

func TestErrorPredicates_WrappedSentinels(t *testing.T) {
	// Services wrap sentinels with %w; handlers must still recognise them.
	wrapped := fmt.Errorf("settlement_service.Preview: %w", domain.ErrInvalidPeriod)
	if !errors.Is(wrapped, domain.ErrInvalidPeriod) {
		t.Error("wrapped ErrInvalidPeriod should match errors.Is")
	}
	if !domain.IsValidation(wrapped) {
		t.Error("wrapped ErrInvalidPeriod should satisfy IsValidation")
	}
}
