package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Risk alerts
// ──────────────────────────────────────────────────────────────────────────────

// AlertKind classifies risk alerts raised against a deal.
type AlertKind string

const (
	AlertDrawdown   AlertKind = "drawdown"     // cumulative loss crossed the alert threshold
	AlertStopLoss   AlertKind = "stop_loss"    // cumulative loss reached the stop-loss cap
	AlertRiskOfRuin AlertKind = "risk_of_ruin" // estimated ruin probability above tolerance
)

// RiskAlert is a persisted alert row, raised once per (deal, kind) until
// acknowledged in the back-office.
type RiskAlert struct {
	ID           uuid.UUID       `json:"id"            db:"id"`
	DealID       uuid.UUID       `json:"deal_id"       db:"deal_id"`
	Kind         AlertKind       `json:"kind"          db:"kind"`
	Threshold    decimal.Decimal `json:"threshold"     db:"threshold"`
	Observed     decimal.Decimal `json:"observed"      db:"observed"`
	Message      string          `json:"message"       db:"message"`
	Acknowledged bool            `json:"acknowledged"  db:"acknowledged"`
	CreatedAt    time.Time       `json:"created_at"    db:"created_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Risk statistics
// ──────────────────────────────────────────────────────────────────────────────

// DealRiskStats summarises a deal's realised performance for risk evaluation.
// Monetary fields are exact decimals; the ruin estimate is a probability and
// uses float math, never fed back into money calculations.
type DealRiskStats struct {
	DealID          uuid.UUID       `json:"deal_id"`
	SampleSize      int             `json:"sample_size"` // settled tournaments
	CumulativeNet   decimal.Decimal `json:"cumulative_net"`
	PeakNet         decimal.Decimal `json:"peak_net"`
	Drawdown        decimal.Decimal `json:"drawdown"` // peak − current, ≥ 0
	MeanNet         float64         `json:"mean_net"`
	StdDevNet       float64         `json:"std_dev_net"`
	RiskOfRuin      float64         `json:"risk_of_ruin"` // 0–1
	StopLossBreach  bool            `json:"stop_loss_breach"`
	DrawdownAlerted bool            `json:"drawdown_alerted"`
}

// RiskOfRuin returns the classical diffusion-approximation ruin probability
// for a bankroll B facing i.i.d. tournament results with mean win rate mu and
// standard deviation sigma per tournament:
//
//	RoR = exp(−2·mu·B / sigma²)
//
// A non-positive win rate means ruin is certain given enough volume, and a
// zero sigma with positive mu means ruin is impossible. The result is clamped
// to [0, 1].
func RiskOfRuin(mu, sigma, bankroll float64) float64 {
	if bankroll <= 0 {
		return 1
	}
	if mu <= 0 {
		return 1
	}
	if sigma <= 0 {
		return 0
	}
	ror := math.Exp(-2 * mu * bankroll / (sigma * sigma))
	if ror > 1 {
		return 1
	}
	return ror
}

// ComputeRiskStats derives drawdown and ruin statistics from a deal's
// tournament history, ordered by play time. Drawdown is measured on the
// cumulative net curve against its running peak (peak floored at zero so a
// deal that only loses shows its full loss as drawdown).
func ComputeRiskStats(deal *StakingDeal, entries []TournamentEntry) DealRiskStats {
	stats := DealRiskStats{DealID: deal.ID, SampleSize: len(entries)}

	var sum, sumSq float64
	cumulative := decimal.Zero
	peak := decimal.Zero
	for i := range entries {
		net := entries[i].Net()
		cumulative = cumulative.Add(net)
		if cumulative.GreaterThan(peak) {
			peak = cumulative
		}
		f, _ := net.Float64()
		sum += f
		sumSq += f * f
	}
	stats.CumulativeNet = cumulative
	stats.PeakNet = peak
	stats.Drawdown = peak.Sub(cumulative)

	if n := float64(len(entries)); n > 0 {
		stats.MeanNet = sum / n
		if n > 1 {
			variance := (sumSq - sum*sum/n) / (n - 1)
			if variance > 0 {
				stats.StdDevNet = math.Sqrt(variance)
			}
		}
	}

	bankroll, _ := deal.Bankroll.Float64()
	stats.RiskOfRuin = RiskOfRuin(stats.MeanNet, stats.StdDevNet, bankroll)

	if limit, ok := deal.StopLossCap(); ok && stats.Drawdown.GreaterThanOrEqual(limit) {
		stats.StopLossBreach = true
	}
	if level, ok := deal.DrawdownAlertLevel(); ok && stats.Drawdown.GreaterThanOrEqual(level) {
		stats.DrawdownAlerted = true
	}
	return stats
}
