package handler

import (
	"net/http"
	"time"

	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/repository"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/feltline/stakehouse/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	dealSvc        *service.DealService
	riskSvc        *service.RiskService
	settlementRepo *repository.SettlementRepository
	hub            *ws.Hub
	cfg            *config.Config
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	dealSvc *service.DealService,
	riskSvc *service.RiskService,
	settlementRepo *repository.SettlementRepository,
	hub *ws.Hub,
	cfg *config.Config,
) *DashboardHandler {
	return &DashboardHandler{
		dealSvc:        dealSvc,
		riskSvc:        riskSvc,
		settlementRepo: settlementRepo,
		hub:            hub,
		cfg:            cfg,
	}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	// ── Deal counts and committed capital ────────────────────────────────────
	activeDeals, activeCount, err := h.dealSvc.ListDeals(ctx, 500, 0, "active")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	var committedCapital decimal.Decimal
	breached := 0
	for _, d := range activeDeals {
		committedCapital = committedCapital.Add(d.Bankroll)
	}

	_, pausedCount, _ := h.dealSvc.ListDeals(ctx, 1, 0, "paused")
	_, draftCount, _ := h.dealSvc.ListDeals(ctx, 1, 0, "draft")

	// ── Settlement volume, trailing 30 days ──────────────────────────────────
	var settlements gin.H
	if report, rErr := h.settlementRepo.GetFinanceReport(ctx, now.AddDate(0, 0, -30), now); rErr == nil {
		breached = report.StopLossBreaches
		settlements = gin.H{
			"count":            report.SettlementCount,
			"net_profit":       report.TotalNetProfit,
			"investor_payouts": report.InvestorPayouts,
			"fees_collected":   report.TotalFees,
			"tax_withheld":     report.TotalTaxWithheld,
		}
	}

	// ── Open risk alerts ─────────────────────────────────────────────────────
	alerts, _ := h.riskSvc.ListOpenAlerts(ctx, 100, 0)

	// ── WS connections ───────────────────────────────────────────────────────
	var wsConnections int
	if h.hub != nil {
		wsConnections = h.hub.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp": now,
		"deals": gin.H{
			"active":            activeCount,
			"paused":            pausedCount,
			"draft":             draftCount,
			"committed_capital": committedCapital,
		},
		"settlements_30d":     settlements,
		"stop_loss_breaches":  breached,
		"open_alerts":         len(alerts),
		"ws_connections":      wsConnections,
		"settlement_interval": h.cfg.Settlement.Interval.String(),
	})
}
