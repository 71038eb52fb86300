package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Breakdown line items
// ──────────────────────────────────────────────────────────────────────────────

// TournamentResult is one breakdown line of a settlement: the allocation of a
// single tournament's net result between investor and player.
// Invariant: InvestorAllocation + PlayerAllocation == NetResult.
type TournamentResult struct {
	EntryID            uuid.UUID       `json:"entry_id"            db:"entry_id"`
	EventName          string          `json:"event_name"          db:"event_name"`
	BuyIn              decimal.Decimal `json:"buy_in"              db:"buy_in"`
	Prize              decimal.Decimal `json:"prize"               db:"prize"`
	NetResult          decimal.Decimal `json:"net_result"          db:"net_result"`
	InvestorAllocation decimal.Decimal `json:"investor_allocation" db:"investor_allocation"`
	PlayerAllocation   decimal.Decimal `json:"player_allocation"   db:"player_allocation"`
}

// ExpenseAllocation is one breakdown line splitting an expense between the
// parties per the deal's expense rule.
// Invariant: InvestorPortion + PlayerPortion == TotalAmount.
type ExpenseAllocation struct {
	EntryID         uuid.UUID       `json:"entry_id"         db:"entry_id"`
	Category        ExpenseCategory `json:"category"         db:"category"`
	TotalAmount     decimal.Decimal `json:"total_amount"     db:"total_amount"`
	InvestorPortion decimal.Decimal `json:"investor_portion" db:"investor_portion"`
	PlayerPortion   decimal.Decimal `json:"player_portion"   db:"player_portion"`
}

// FeeCharge records one fee actually deducted from the investor's gross share.
type FeeCharge struct {
	Kind   FeeKind         `json:"kind"   db:"kind"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementCalculation
// ──────────────────────────────────────────────────────────────────────────────

// SettlementCalculation is the derived, immutable record of one settlement run
// for one deal over one period. It reads the deal's terms as of calculation
// time and never mutates the deal.
//
// Invariants (checked after every calculation):
//
//	PlayerShare + InvestorShare == NetProfit          (before expenses and fees)
//	FinalPayout == GrossInvestorShare − ΣFees − TaxWithheld
type SettlementCalculation struct {
	ID          uuid.UUID `json:"id"           db:"id"`
	DealID      uuid.UUID `json:"deal_id"      db:"deal_id"`
	PeriodStart time.Time `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time `json:"period_end"   db:"period_end"`

	TotalWinnings decimal.Decimal `json:"total_winnings" db:"total_winnings"` // Σ prizes
	TotalBuyIns   decimal.Decimal `json:"total_buy_ins"  db:"total_buy_ins"`
	TotalExpenses decimal.Decimal `json:"total_expenses" db:"total_expenses"`
	NetProfit     decimal.Decimal `json:"net_profit"     db:"net_profit"` // winnings − buy-ins

	Percentage decimal.Decimal `json:"percentage" db:"percentage"` // deal terms at calc time
	Markup     decimal.Decimal `json:"markup"     db:"markup"`

	InvestorShare decimal.Decimal `json:"investor_share" db:"investor_share"` // Σ tournament allocations
	PlayerShare   decimal.Decimal `json:"player_share"   db:"player_share"`   // NetProfit − InvestorShare

	InvestorExpenses   decimal.Decimal `json:"investor_expenses"    db:"investor_expenses"`
	PlayerExpenses     decimal.Decimal `json:"player_expenses"      db:"player_expenses"`
	GrossInvestorShare decimal.Decimal `json:"gross_investor_share" db:"gross_investor_share"`

	Fees        []FeeCharge     `json:"fees"         db:"-"`
	TotalFees   decimal.Decimal `json:"total_fees"   db:"total_fees"`
	TaxWithheld decimal.Decimal `json:"tax_withheld" db:"tax_withheld"`

	FinalPayout decimal.Decimal `json:"final_payout" db:"final_payout"` // to the investor
	PlayerNet   decimal.Decimal `json:"player_net"   db:"player_net"`   // PlayerShare − PlayerExpenses

	StopLossBreached bool      `json:"stop_loss_breached" db:"stop_loss_breached"`
	CreatedAt        time.Time `json:"created_at"         db:"created_at"`

	Tournaments []TournamentResult  `json:"tournaments" db:"-"`
	Expenses    []ExpenseAllocation `json:"expenses"    db:"-"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Stop-loss policy
// ──────────────────────────────────────────────────────────────────────────────

// StopLossPolicy decides how a period's investor share is adjusted when the
// deal configures a cumulative loss cap. Implementations must be pure.
type StopLossPolicy interface {
	// Apply receives the deal, the cumulative investor loss prior to this
	// period (a non-negative magnitude), and the period's computed gross
	// investor share. It returns the adjusted share and whether the cap was
	// breached during this period.
	Apply(deal *StakingDeal, priorLoss, grossShare decimal.Decimal) (decimal.Decimal, bool)
}

// CapOnlyPolicy caps the investor's cumulative loss at the configured
// stop-loss level and flags the breach. It never reduces markup and never
// halts the deal; halting is an operational decision left to the caller.
type CapOnlyPolicy struct{}

// Apply implements StopLossPolicy.
func (CapOnlyPolicy) Apply(deal *StakingDeal, priorLoss, grossShare decimal.Decimal) (decimal.Decimal, bool) {
	limit, ok := deal.StopLossCap()
	if !ok || grossShare.Sign() >= 0 {
		return grossShare, false
	}

	periodLoss := grossShare.Neg()
	headroom := limit.Sub(priorLoss)
	if headroom.IsNegative() {
		headroom = decimal.Zero
	}
	if periodLoss.LessThanOrEqual(headroom) {
		return grossShare, false
	}
	// Loss beyond the cap stays with the player.
	return headroom.Neg(), true
}

// ──────────────────────────────────────────────────────────────────────────────
// CalculateSettlement — the core pure computation
// ──────────────────────────────────────────────────────────────────────────────

// CalculateSettlement transforms (deal terms, period results) into a
// SettlementCalculation. It is deterministic and has no side effects; calling
// it twice with equal inputs yields identical output.
//
// Per tournament:
//
//	net            = prize − buyIn
//	investorBase   = net × (percentage / 100)
//	investorFinal  = investorBase × markup      (player absorbs the premium)
//	playerAlloc    = net − investorFinal
//
// Expenses follow the deal's ExpenseRule. Fees and tax withholding are
// deducted from the gross investor share in that order. All intermediate
// arithmetic is exact decimal; monetary outputs are rounded to two decimal
// places only where a line item or total becomes output.
//
// policy may be nil, in which case CapOnlyPolicy is used.
func CalculateSettlement(deal *StakingDeal, period SettlementPeriod, policy StopLossPolicy) (*SettlementCalculation, error) {
	if err := deal.ValidateTerms(); err != nil {
		return nil, err
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = CapOnlyPolicy{}
	}

	hundred := decimal.NewFromInt(100)
	pctFrac := deal.Percentage.Div(hundred)

	calc := &SettlementCalculation{
		DealID:      deal.ID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Percentage:  deal.Percentage,
		Markup:      deal.Markup,
	}

	// ── Step 1+2: tournament allocations ─────────────────────────────────────
	for i := range period.Tournaments {
		t := &period.Tournaments[i]
		net := t.Net()

		investor := net.Mul(pctFrac).Mul(deal.Markup).Round(2)
		player := net.Sub(investor)

		calc.Tournaments = append(calc.Tournaments, TournamentResult{
			EntryID:            t.ID,
			EventName:          t.EventName,
			BuyIn:              t.BuyIn,
			Prize:              t.Prize,
			NetResult:          net,
			InvestorAllocation: investor,
			PlayerAllocation:   player,
		})

		calc.TotalWinnings = calc.TotalWinnings.Add(t.Prize)
		calc.TotalBuyIns = calc.TotalBuyIns.Add(t.BuyIn)
		calc.InvestorShare = calc.InvestorShare.Add(investor)
	}
	calc.NetProfit = calc.TotalWinnings.Sub(calc.TotalBuyIns)
	calc.PlayerShare = calc.NetProfit.Sub(calc.InvestorShare)

	// ── Step 3: expense allocations ──────────────────────────────────────────
	for i := range period.Expenses {
		e := &period.Expenses[i]

		var investorPortion decimal.Decimal
		switch deal.ExpenseRule {
		case ExpenseSplitProportional:
			investorPortion = e.Amount.Mul(pctFrac).Round(2)
		case ExpensePlayerCovers:
			investorPortion = decimal.Zero
		case ExpenseInvestorCovers:
			investorPortion = e.Amount
		}
		playerPortion := e.Amount.Sub(investorPortion)

		calc.Expenses = append(calc.Expenses, ExpenseAllocation{
			EntryID:         e.ID,
			Category:        e.Category,
			TotalAmount:     e.Amount,
			InvestorPortion: investorPortion,
			PlayerPortion:   playerPortion,
		})

		calc.TotalExpenses = calc.TotalExpenses.Add(e.Amount)
		calc.InvestorExpenses = calc.InvestorExpenses.Add(investorPortion)
		calc.PlayerExpenses = calc.PlayerExpenses.Add(playerPortion)
	}

	// ── Step 4: gross investor share, stop-loss adjustment ───────────────────
	gross := calc.InvestorShare.Sub(calc.InvestorExpenses)
	adjusted, breached := policy.Apply(deal, period.PriorInvestorLoss, gross)
	shifted := gross.Sub(adjusted) // loss beyond cap, moved to the player
	calc.GrossInvestorShare = adjusted
	calc.StopLossBreached = breached
	calc.PlayerNet = calc.PlayerShare.Sub(calc.PlayerExpenses).Add(shifted)

	// ── Step 5: fees, then tax withholding ───────────────────────────────────
	for _, fee := range period.Fees {
		amount := fee.AmountOn(calc.GrossInvestorShare).Round(2)
		if amount.IsZero() {
			continue
		}
		calc.Fees = append(calc.Fees, FeeCharge{Kind: fee.Kind, Amount: amount})
		calc.TotalFees = calc.TotalFees.Add(amount)
	}

	afterFees := calc.GrossInvestorShare.Sub(calc.TotalFees)
	if afterFees.Sign() > 0 && !deal.TaxWithholdingPct.IsZero() {
		calc.TaxWithheld = afterFees.Mul(deal.TaxWithholdingPct).Div(hundred).Round(2)
	}
	calc.FinalPayout = afterFees.Sub(calc.TaxWithheld).Round(2)

	// ── Step 6: arithmetic-consistency invariants ────────────────────────────
	if err := calc.checkInvariants(); err != nil {
		return nil, err
	}
	return calc, nil
}

// checkInvariants re-verifies the sum invariants after computation. A failure
// here is a defect in the calculator itself, never a caller error, so the
// message names the failing line to allow diagnosis without re-deriving.
func (c *SettlementCalculation) checkInvariants() error {
	for _, t := range c.Tournaments {
		if !t.InvestorAllocation.Add(t.PlayerAllocation).Equal(t.NetResult) {
			return fmt.Errorf("%w: tournament %s: %s + %s != %s",
				ErrAllocationMismatch, t.EntryID,
				t.InvestorAllocation, t.PlayerAllocation, t.NetResult)
		}
	}
	for _, e := range c.Expenses {
		if !e.InvestorPortion.Add(e.PlayerPortion).Equal(e.TotalAmount) {
			return fmt.Errorf("%w: expense %s: %s + %s != %s",
				ErrAllocationMismatch, e.EntryID,
				e.InvestorPortion, e.PlayerPortion, e.TotalAmount)
		}
	}
	if !c.PlayerShare.Add(c.InvestorShare).Equal(c.NetProfit) {
		return fmt.Errorf("%w: shares: %s + %s != net profit %s",
			ErrAllocationMismatch, c.PlayerShare, c.InvestorShare, c.NetProfit)
	}
	return nil
}
