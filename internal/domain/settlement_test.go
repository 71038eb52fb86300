package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/feltline/stakehouse/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	periodStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
)

func testDeal(pct, markup float64) *domain.StakingDeal {
	return &domain.StakingDeal{
		ID:          uuid.New(),
		PlayerID:    uuid.New(),
		InvestorID:  uuid.New(),
		Percentage:  decimal.NewFromFloat(pct),
		Markup:      decimal.NewFromFloat(markup),
		ExpenseRule: domain.ExpenseSplitProportional,
		Bankroll:    decimal.NewFromInt(50000),
		Status:      domain.DealStatusActive,
		StartsAt:    periodStart,
	}
}

func entry(buyIn, prize int64) domain.TournamentEntry {
	return domain.TournamentEntry{
		ID:        uuid.New(),
		EventName: "Main Event",
		BuyIn:     decimal.NewFromInt(buyIn),
		Prize:     decimal.NewFromInt(prize),
		PlayedAt:  periodStart.Add(24 * time.Hour),
	}
}

func expense(amount int64, cat domain.ExpenseCategory) domain.ExpenseEntry {
	return domain.ExpenseEntry{
		ID:         uuid.New(),
		Category:   cat,
		Amount:     decimal.NewFromInt(amount),
		IncurredAt: periodStart.Add(48 * time.Hour),
	}
}

// ── Worked examples ───────────────────────────────────────────────────────────

// TestCalculateSettlement_MarkupSplit validates the core allocation maths.
//
//	Scenario: one tournament, buy-in 1 200, prize 24 000, 20% at 1.2 markup.
//	  net            = 24 000 − 1 200      = 22 800
//	  investor base  = 22 800 × 0.20       =  4 560
//	  investor final = 4 560 × 1.2         =  5 472
//	  player         = 22 800 − 5 472      = 17 328
func TestCalculateSettlement_MarkupSplit(t *testing.T) {
	deal := testDeal(20, 1.2)
	period := domain.SettlementPeriod{
		Start:       periodStart,
		End:         periodEnd,
		Tournaments: []domain.TournamentEntry{entry(1200, 24000)},
	}

	calc, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("CalculateSettlement() error = %v", err)
	}

	wantInvestor := decimal.NewFromInt(5472)
	wantPlayer := decimal.NewFromInt(17328)
	if !calc.InvestorShare.Equal(wantInvestor) {
		t.Errorf("InvestorShare = %s, want %s", calc.InvestorShare, wantInvestor)
	}
	if !calc.PlayerShare.Equal(wantPlayer) {
		t.Errorf("PlayerShare = %s, want %s", calc.PlayerShare, wantPlayer)
	}
	if !calc.NetProfit.Equal(decimal.NewFromInt(22800)) {
		t.Errorf("NetProfit = %s, want 22800", calc.NetProfit)
	}
	// No expenses, fees, or tax: payout equals the share.
	if !calc.FinalPayout.Equal(wantInvestor) {
		t.Errorf("FinalPayout = %s, want %s", calc.FinalPayout, wantInvestor)
	}
}

// TestCalculateSettlement_ProportionalExpense splits an 850 expense 20/80.
//
//	investor portion = 850 × 0.20 = 170
//	player portion   = 850 − 170  = 680
func TestCalculateSettlement_ProportionalExpense(t *testing.T) {
	deal := testDeal(20, 1.2)
	period := domain.SettlementPeriod{
		Start:       periodStart,
		End:         periodEnd,
		Tournaments: []domain.TournamentEntry{entry(1200, 24000)},
		Expenses:    []domain.ExpenseEntry{expense(850, domain.ExpenseTravel)},
	}

	calc, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("CalculateSettlement() error = %v", err)
	}

	if !calc.InvestorExpenses.Equal(decimal.NewFromInt(170)) {
		t.Errorf("InvestorExpenses = %s, want 170", calc.InvestorExpenses)
	}
	if !calc.PlayerExpenses.Equal(decimal.NewFromInt(680)) {
		t.Errorf("PlayerExpenses = %s, want 680", calc.PlayerExpenses)
	}
	// gross = 5472 − 170 = 5302
	if !calc.GrossInvestorShare.Equal(decimal.NewFromInt(5302)) {
		t.Errorf("GrossInvestorShare = %s, want 5302", calc.GrossInvestorShare)
	}
	// player net = 17328 − 680 = 16648
	if !calc.PlayerNet.Equal(decimal.NewFromInt(16648)) {
		t.Errorf("PlayerNet = %s, want 16648", calc.PlayerNet)
	}
}

func TestCalculateSettlement_ExpenseRules(t *testing.T) {
	period := domain.SettlementPeriod{
		Start:       periodStart,
		End:         periodEnd,
		Tournaments: []domain.TournamentEntry{entry(1000, 5000)},
		Expenses:    []domain.ExpenseEntry{expense(600, domain.ExpenseLodging)},
	}

	cases := []struct {
		rule         domain.ExpenseRule
		wantInvestor int64
		wantPlayer   int64
	}{
		{domain.ExpensePlayerCovers, 0, 600},
		{domain.ExpenseInvestorCovers, 600, 0},
		{domain.ExpenseSplitProportional, 120, 480}, // 20% of 600
	}
	for _, tc := range cases {
		deal := testDeal(20, 1.0)
		deal.ExpenseRule = tc.rule

		calc, err := domain.CalculateSettlement(deal, period, nil)
		if err != nil {
			t.Fatalf("%s: error = %v", tc.rule, err)
		}
		if !calc.InvestorExpenses.Equal(decimal.NewFromInt(tc.wantInvestor)) {
			t.Errorf("%s: InvestorExpenses = %s, want %d", tc.rule, calc.InvestorExpenses, tc.wantInvestor)
		}
		if !calc.PlayerExpenses.Equal(decimal.NewFromInt(tc.wantPlayer)) {
			t.Errorf("%s: PlayerExpenses = %s, want %d", tc.rule, calc.PlayerExpenses, tc.wantPlayer)
		}
	}
}

// ── Fees and tax ──────────────────────────────────────────────────────────────

// TestCalculateSettlement_FeesThenTax checks deduction ordering.
//
//	gross = 5 472, flat fee 50, 2% platform fee then 15% withholding:
//	  platform fee = 5 472 × 0.02          = 109.44
//	  after fees   = 5 472 − 50 − 109.44   = 5 312.56
//	  tax          = 5 312.56 × 0.15       = 796.88 (rounded)
//	  payout       = 5 312.56 − 796.88     = 4 515.68
func TestCalculateSettlement_FeesThenTax(t *testing.T) {
	deal := testDeal(20, 1.2)
	deal.TaxWithholdingPct = decimal.NewFromInt(15)
	period := domain.SettlementPeriod{
		Start:       periodStart,
		End:         periodEnd,
		Tournaments: []domain.TournamentEntry{entry(1200, 24000)},
		Fees: []domain.FeeTerm{
			{Kind: domain.FeeProcessing, Flat: decimal.NewFromInt(50)},
			{Kind: domain.FeePlatform, Percent: decimal.NewFromInt(2)},
		},
	}

	calc, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("CalculateSettlement() error = %v", err)
	}

	wantFees := decimal.NewFromFloat(159.44)
	if !calc.TotalFees.Equal(wantFees) {
		t.Errorf("TotalFees = %s, want %s", calc.TotalFees, wantFees)
	}
	wantTax := decimal.NewFromFloat(796.88)
	if !calc.TaxWithheld.Equal(wantTax) {
		t.Errorf("TaxWithheld = %s, want %s", calc.TaxWithheld, wantTax)
	}
	wantPayout := decimal.NewFromFloat(4515.68)
	if !calc.FinalPayout.Equal(wantPayout) {
		t.Errorf("FinalPayout = %s, want %s", calc.FinalPayout, wantPayout)
	}
}

func TestCalculateSettlement_NoTaxOnLoss(t *testing.T) {
	deal := testDeal(50, 1.0)
	deal.TaxWithholdingPct = decimal.NewFromInt(15)
	period := domain.SettlementPeriod{
		Start:       periodStart,
		End:         periodEnd,
		Tournaments: []domain.TournamentEntry{entry(5000, 0)},
	}

	calc, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("CalculateSettlement() error = %v", err)
	}
	if !calc.TaxWithheld.IsZero() {
		t.Errorf("TaxWithheld on a losing period = %s, want 0", calc.TaxWithheld)
	}
	if !calc.FinalPayout.Equal(decimal.NewFromInt(-2500)) {
		t.Errorf("FinalPayout = %s, want -2500", calc.FinalPayout)
	}
}

// ── Boundaries ────────────────────────────────────────────────────────────────

func TestCalculateSettlement_ZeroPercent(t *testing.T) {
	deal := testDeal(0, 1.5)
	period := domain.SettlementPeriod{
		Start:       periodStart,
		End:         periodEnd,
		Tournaments: []domain.TournamentEntry{entry(1000, 9000)},
	}

	calc, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("CalculateSettlement() error = %v", err)
	}
	if !calc.InvestorShare.IsZero() {
		t.Errorf("InvestorShare at 0%% = %s, want 0", calc.InvestorShare)
	}
	if !calc.PlayerShare.Equal(calc.NetProfit) {
		t.Errorf("PlayerShare = %s, want full net %s", calc.PlayerShare, calc.NetProfit)
	}
}

func TestCalculateSettlement_FullPercentNoMarkup(t *testing.T) {
	deal := testDeal(100, 1.0)
	period := domain.SettlementPeriod{
		Start:       periodStart,
		End:         periodEnd,
		Tournaments: []domain.TournamentEntry{entry(1000, 9000)},
	}

	calc, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("CalculateSettlement() error = %v", err)
	}
	if !calc.InvestorShare.Equal(calc.NetProfit) {
		t.Errorf("InvestorShare at 100%%/1.0 = %s, want %s", calc.InvestorShare, calc.NetProfit)
	}
	if !calc.PlayerShare.IsZero() {
		t.Errorf("PlayerShare = %s, want 0", calc.PlayerShare)
	}
}

func TestCalculateSettlement_ValidationErrors(t *testing.T) {
	okPeriod := domain.SettlementPeriod{Start: periodStart, End: periodEnd}

	badPct := testDeal(120, 1.0)
	if _, err := domain.CalculateSettlement(badPct, okPeriod, nil); !errors.Is(err, domain.ErrInvalidPercentage) {
		t.Errorf("pct=120: error = %v, want ErrInvalidPercentage", err)
	}

	badMarkup := testDeal(20, 0)
	if _, err := domain.CalculateSettlement(badMarkup, okPeriod, nil); !errors.Is(err, domain.ErrInvalidMarkup) {
		t.Errorf("markup=0: error = %v, want ErrInvalidMarkup", err)
	}

	deal := testDeal(20, 1.2)
	inverted := domain.SettlementPeriod{Start: periodEnd, End: periodStart}
	if _, err := domain.CalculateSettlement(deal, inverted, nil); !errors.Is(err, domain.ErrInvalidPeriod) {
		t.Errorf("inverted period: error = %v, want ErrInvalidPeriod", err)
	}

	outside := domain.SettlementPeriod{
		Start: periodStart,
		End:   periodEnd,
		Tournaments: []domain.TournamentEntry{{
			ID:       uuid.New(),
			BuyIn:    decimal.NewFromInt(100),
			Prize:    decimal.Zero,
			PlayedAt: periodEnd.Add(time.Hour),
		}},
	}
	if _, err := domain.CalculateSettlement(deal, outside, nil); !errors.Is(err, domain.ErrEntryOutsidePeriod) {
		t.Errorf("late entry: error = %v, want ErrEntryOutsidePeriod", err)
	}
}

// ── Properties ────────────────────────────────────────────────────────────────

// Same inputs must always produce the same output: the calculator has no
// hidden state.
func TestCalculateSettlement_Deterministic(t *testing.T) {
	deal := testDeal(25, 1.1)
	deal.TaxWithholdingPct = decimal.NewFromInt(10)
	period := domain.SettlementPeriod{
		Start: periodStart,
		End:   periodEnd,
		Tournaments: []domain.TournamentEntry{
			entry(1200, 24000),
			entry(3500, 0),
			entry(550, 1375),
		},
		Expenses: []domain.ExpenseEntry{expense(850, domain.ExpenseTravel)},
		Fees:     []domain.FeeTerm{{Kind: domain.FeePlatform, Percent: decimal.NewFromInt(1)}},
	}

	first, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !first.FinalPayout.Equal(second.FinalPayout) ||
		!first.PlayerNet.Equal(second.PlayerNet) ||
		!first.TotalFees.Equal(second.TotalFees) {
		t.Errorf("repeated runs diverged: payout %s vs %s, player %s vs %s",
			first.FinalPayout, second.FinalPayout, first.PlayerNet, second.PlayerNet)
	}
}

// A higher markup must never decrease the investor allocation on a winning
// period, and the per-line sum invariant must survive every markup.
func TestCalculateSettlement_MarkupMonotonic(t *testing.T) {
	period := domain.SettlementPeriod{
		Start:       periodStart,
		End:         periodEnd,
		Tournaments: []domain.TournamentEntry{entry(1200, 24000)},
	}

	prev := decimal.NewFromInt(-1 << 30)
	for _, markup := range []float64{1.0, 1.05, 1.1, 1.2, 1.33, 1.5, 2.0} {
		calc, err := domain.CalculateSettlement(testDeal(20, markup), period, nil)
		if err != nil {
			t.Fatalf("markup %.2f: %v", markup, err)
		}
		if calc.InvestorShare.LessThan(prev) {
			t.Errorf("markup %.2f: InvestorShare %s < previous %s", markup, calc.InvestorShare, prev)
		}
		prev = calc.InvestorShare

		sum := calc.InvestorShare.Add(calc.PlayerShare)
		if !sum.Equal(calc.NetProfit) {
			t.Errorf("markup %.2f: shares sum %s != net %s", markup, sum, calc.NetProfit)
		}
	}
}

// Breakdown lines must reconcile with the totals exactly, including odd
// amounts that force rounding on the investor line.
func TestCalculateSettlement_BreakdownReconciles(t *testing.T) {
	deal := testDeal(33.33, 1.17)
	period := domain.SettlementPeriod{
		Start: periodStart,
		End:   periodEnd,
		Tournaments: []domain.TournamentEntry{
			entry(777, 1001),
			entry(1234, 0),
			entry(999, 2500),
		},
		Expenses: []domain.ExpenseEntry{
			expense(333, domain.ExpenseMeals),
			expense(457, domain.ExpenseLodging),
		},
	}

	calc, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("CalculateSettlement() error = %v", err)
	}

	investorSum := decimal.Zero
	for _, line := range calc.Tournaments {
		if !line.InvestorAllocation.Add(line.PlayerAllocation).Equal(line.NetResult) {
			t.Errorf("line %s: %s + %s != %s", line.EntryID,
				line.InvestorAllocation, line.PlayerAllocation, line.NetResult)
		}
		investorSum = investorSum.Add(line.InvestorAllocation)
	}
	if !investorSum.Equal(calc.InvestorShare) {
		t.Errorf("Σ investor lines = %s, want InvestorShare %s", investorSum, calc.InvestorShare)
	}

	expenseSum := decimal.Zero
	for _, line := range calc.Expenses {
		if !line.InvestorPortion.Add(line.PlayerPortion).Equal(line.TotalAmount) {
			t.Errorf("expense %s: %s + %s != %s", line.EntryID,
				line.InvestorPortion, line.PlayerPortion, line.TotalAmount)
		}
		expenseSum = expenseSum.Add(line.TotalAmount)
	}
	if !expenseSum.Equal(calc.TotalExpenses) {
		t.Errorf("Σ expense lines = %s, want TotalExpenses %s", expenseSum, calc.TotalExpenses)
	}
}

// ── Stop-loss ─────────────────────────────────────────────────────────────────

// TestCalculateSettlement_StopLossCap caps the investor's period loss.
//
//	Bankroll 50 000, stop-loss 10% → cap 5 000. 50% share, no markup.
//	One −14 000 tournament → raw investor loss 7 000, capped at 5 000;
//	the 2 000 excess shifts to the player.
func TestCalculateSettlement_StopLossCap(t *testing.T) {
	stopLoss := decimal.NewFromInt(10)
	deal := testDeal(50, 1.0)
	deal.StopLossPct = &stopLoss
	period := domain.SettlementPeriod{
		Start:       periodStart,
		End:         periodEnd,
		Tournaments: []domain.TournamentEntry{entry(14000, 0)},
	}

	calc, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("CalculateSettlement() error = %v", err)
	}
	if !calc.StopLossBreached {
		t.Error("expected StopLossBreached = true")
	}
	if !calc.GrossInvestorShare.Equal(decimal.NewFromInt(-5000)) {
		t.Errorf("GrossInvestorShare = %s, want -5000", calc.GrossInvestorShare)
	}
	// player: −7000 raw, −2000 shifted excess → −9000
	if !calc.PlayerNet.Equal(decimal.NewFromInt(-9000)) {
		t.Errorf("PlayerNet = %s, want -9000", calc.PlayerNet)
	}
}

func TestCalculateSettlement_StopLossHeadroomConsumed(t *testing.T) {
	stopLoss := decimal.NewFromInt(10)
	deal := testDeal(50, 1.0)
	deal.StopLossPct = &stopLoss
	period := domain.SettlementPeriod{
		Start:             periodStart,
		End:               periodEnd,
		Tournaments:       []domain.TournamentEntry{entry(4000, 0)},
		PriorInvestorLoss: decimal.NewFromInt(4500), // only 500 headroom left of 5000
	}

	calc, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("CalculateSettlement() error = %v", err)
	}
	if !calc.StopLossBreached {
		t.Error("expected StopLossBreached = true")
	}
	if !calc.GrossInvestorShare.Equal(decimal.NewFromInt(-500)) {
		t.Errorf("GrossInvestorShare = %s, want -500", calc.GrossInvestorShare)
	}
}

func TestCalculateSettlement_NoStopLossConfigured(t *testing.T) {
	deal := testDeal(50, 1.0)
	period := domain.SettlementPeriod{
		Start:       periodStart,
		End:         periodEnd,
		Tournaments: []domain.TournamentEntry{entry(14000, 0)},
	}

	calc, err := domain.CalculateSettlement(deal, period, nil)
	if err != nil {
		t.Fatalf("CalculateSettlement() error = %v", err)
	}
	if calc.StopLossBreached {
		t.Error("no stop-loss configured, breach flag should be false")
	}
	if !calc.GrossInvestorShare.Equal(decimal.NewFromInt(-7000)) {
		t.Errorf("GrossInvestorShare = %s, want -7000", calc.GrossInvestorShare)
	}
}
