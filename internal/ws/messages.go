// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs pushed to connected dashboards.
package ws

import (
	"time"

	"github.com/feltline/stakehouse/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeSettlementPosted MsgType = "settlement_posted"
	MsgTypeRiskAlert        MsgType = "risk_alert"
	MsgTypeDealStatus       MsgType = "deal_status"
)

// ──────────────────────────────────────────────────────────────────────────────
// SettlementPostedMessage — sent to the deal's player and investor after a
// settlement commits.
// ──────────────────────────────────────────────────────────────────────────────

// SettlementPostedMessage carries the headline numbers of a posted settlement.
// The full breakdown is fetched over HTTP; the push only invalidates the view.
type SettlementPostedMessage struct {
	Type             MsgType         `json:"type"`
	SettlementID     uuid.UUID       `json:"settlement_id"`
	DealID           uuid.UUID       `json:"deal_id"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	FinalPayout      decimal.Decimal `json:"final_payout"`
	PlayerNet        decimal.Decimal `json:"player_net"`
	StopLossBreached bool            `json:"stop_loss_breached"`
	Timestamp        time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// RiskAlertMessage — broadcast when the risk loop raises a new alert.
// ──────────────────────────────────────────────────────────────────────────────

// RiskAlertMessage notifies dashboards of a drawdown, stop-loss, or
// risk-of-ruin alert.
type RiskAlertMessage struct {
	Type      MsgType          `json:"type"`
	AlertID   uuid.UUID        `json:"alert_id"`
	DealID    uuid.UUID        `json:"deal_id"`
	Kind      domain.AlertKind `json:"kind"`
	Threshold decimal.Decimal  `json:"threshold"`
	Observed  decimal.Decimal  `json:"observed"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// DealStatusMessage — broadcast on deal lifecycle transitions.
// ──────────────────────────────────────────────────────────────────────────────

// DealStatusMessage tells clients a deal changed state (activated, paused,
// completed, cancelled).
type DealStatusMessage struct {
	Type      MsgType           `json:"type"`
	DealID    uuid.UUID         `json:"deal_id"`
	Status    domain.DealStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}
