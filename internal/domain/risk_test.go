package domain_test

import (
	"math"
	"testing"

	"github.com/feltline/stakehouse/internal/domain"
	"github.com/shopspring/decimal"
)

// ── Risk-of-ruin formula ──────────────────────────────────────────────────────

// RoR = exp(−2·mu·B / sigma²). For mu=200, sigma=3000, B=50 000:
//
//	exponent = −2 × 200 × 50 000 / 9 000 000 ≈ −2.2222
//	RoR ≈ 0.1084
func TestRiskOfRuin_Formula(t *testing.T) {
	got := domain.RiskOfRuin(200, 3000, 50000)
	want := math.Exp(-2.0 * 200 * 50000 / (3000 * 3000))
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("RiskOfRuin = %v, want %v", got, want)
	}
	if got < 0.10 || got > 0.12 {
		t.Errorf("RiskOfRuin = %v, expected ≈0.108", got)
	}
}

func TestRiskOfRuin_Boundaries(t *testing.T) {
	if got := domain.RiskOfRuin(-50, 3000, 50000); got != 1 {
		t.Errorf("losing player: RoR = %v, want 1", got)
	}
	if got := domain.RiskOfRuin(0, 3000, 50000); got != 1 {
		t.Errorf("breakeven player: RoR = %v, want 1", got)
	}
	if got := domain.RiskOfRuin(200, 0, 50000); got != 0 {
		t.Errorf("zero variance winner: RoR = %v, want 0", got)
	}
	if got := domain.RiskOfRuin(200, 3000, 0); got != 1 {
		t.Errorf("no bankroll: RoR = %v, want 1", got)
	}
}

// ── Drawdown statistics ───────────────────────────────────────────────────────

// Cumulative curve: +5000, −3000 (cum 2000), −4000 (cum −2000).
// Peak 5000, drawdown = 5000 − (−2000) = 7000.
func TestComputeRiskStats_Drawdown(t *testing.T) {
	deal := testDeal(20, 1.2)
	entries := []domain.TournamentEntry{
		entry(1000, 6000),
		entry(3000, 0),
		entry(4000, 0),
	}

	stats := domain.ComputeRiskStats(deal, entries)
	if !stats.CumulativeNet.Equal(decimal.NewFromInt(-2000)) {
		t.Errorf("CumulativeNet = %s, want -2000", stats.CumulativeNet)
	}
	if !stats.PeakNet.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("PeakNet = %s, want 5000", stats.PeakNet)
	}
	if !stats.Drawdown.Equal(decimal.NewFromInt(7000)) {
		t.Errorf("Drawdown = %s, want 7000", stats.Drawdown)
	}
}

func TestComputeRiskStats_Thresholds(t *testing.T) {
	stopLoss := decimal.NewFromInt(10) // cap 5000 on 50 000 bankroll
	alert := decimal.NewFromInt(5)     // alert at 2500
	deal := testDeal(20, 1.2)
	deal.StopLossPct = &stopLoss
	deal.DrawdownAlertPct = &alert

	// Drawdown 3000: alert fires, stop-loss does not.
	stats := domain.ComputeRiskStats(deal, []domain.TournamentEntry{entry(3000, 0)})
	if !stats.DrawdownAlerted {
		t.Error("drawdown 3000 over alert level 2500: expected DrawdownAlerted")
	}
	if stats.StopLossBreach {
		t.Error("drawdown 3000 under cap 5000: StopLossBreach should be false")
	}

	// Drawdown 6000: both fire.
	stats = domain.ComputeRiskStats(deal, []domain.TournamentEntry{entry(6000, 0)})
	if !stats.StopLossBreach {
		t.Error("drawdown 6000 over cap 5000: expected StopLossBreach")
	}
}

func TestComputeRiskStats_Empty(t *testing.T) {
	deal := testDeal(20, 1.2)
	stats := domain.ComputeRiskStats(deal, nil)
	if stats.SampleSize != 0 {
		t.Errorf("SampleSize = %d, want 0", stats.SampleSize)
	}
	if !stats.Drawdown.IsZero() {
		t.Errorf("Drawdown = %s, want 0", stats.Drawdown)
	}
	// No observed win rate: ruin is assumed certain.
	if stats.RiskOfRuin != 1 {
		t.Errorf("RiskOfRuin with no data = %v, want 1", stats.RiskOfRuin)
	}
}
