package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DealAdminHandler serves /admin/deals endpoints.
type DealAdminHandler struct {
	dealSvc       *service.DealService
	settlementSvc *service.SettlementService
	riskSvc       *service.RiskService
	cfg           *config.Config
}

// NewDealAdminHandler creates a DealAdminHandler.
func NewDealAdminHandler(
	dealSvc *service.DealService,
	settlementSvc *service.SettlementService,
	riskSvc *service.RiskService,
	cfg *config.Config,
) *DealAdminHandler {
	return &DealAdminHandler{
		dealSvc:       dealSvc,
		settlementSvc: settlementSvc,
		riskSvc:       riskSvc,
		cfg:           cfg,
	}
}

// List godoc
// GET /admin/deals?status=active&page=1&limit=50
func (h *DealAdminHandler) List(c *gin.Context) {
	status := c.Query("status")
	page, limit := adminPagination(c)

	deals, total, err := h.dealSvc.ListDeals(c.Request.Context(), limit, (page-1)*limit, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, deals, total, page, limit)
}

// Detail godoc
// GET /admin/deals/:id
// Returns the deal plus its settlement history, risk stats, and alerts.
func (h *DealAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid deal id")
		return
	}

	ctx := c.Request.Context()
	deal, err := h.dealSvc.GetDeal(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	settlements, _, _ := h.settlementSvc.ListSettlements(ctx, id, 50, 0)
	stats, _ := h.riskSvc.GetDealStats(ctx, id)
	alerts, _ := h.riskSvc.ListDealAlerts(ctx, id)

	respondSuccess(c, http.StatusOK, gin.H{
		"deal":        deal,
		"settlements": settlements,
		"risk_stats":  stats,
		"alerts":      alerts,
	})
}

// Pause godoc
// POST /admin/deals/:id/pause
func (h *DealAdminHandler) Pause(c *gin.Context) {
	h.transition(c, h.dealSvc.PauseDeal, domain.DealStatusPaused)
}

// Cancel godoc
// POST /admin/deals/:id/cancel
func (h *DealAdminHandler) Cancel(c *gin.Context) {
	h.transition(c, h.dealSvc.CancelDeal, domain.DealStatusCancelled)
}

// Complete godoc
// POST /admin/deals/:id/complete
func (h *DealAdminHandler) Complete(c *gin.Context) {
	h.transition(c, h.dealSvc.CompleteDeal, domain.DealStatusCompleted)
}

// ForceSettle godoc
// POST /admin/deals/:id/settle
// Body: {"start":"...","end":"..."} (RFC3339). Posts the settlement for an
// explicit window, outside the scheduler cadence.
func (h *DealAdminHandler) ForceSettle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid deal id")
		return
	}

	var body struct {
		Start time.Time `json:"start" binding:"required"`
		End   time.Time `json:"end"   binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	calc, err := h.settlementSvc.SettlePeriod(c.Request.Context(), id, body.Start.UTC(), body.End.UTC())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSettlementAlreadyPosted):
			respondError(c, http.StatusConflict, "ERR_ALREADY_POSTED", err.Error())
		case errors.Is(err, domain.ErrDealNotActive):
			respondError(c, http.StatusConflict, "ERR_DEAL_NOT_ACTIVE", err.Error())
		case errors.Is(err, domain.ErrInvalidPeriod):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_PERIOD", err.Error())
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusCreated, calc)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (h *DealAdminHandler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) error, to domain.DealStatus) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid deal id")
		return
	}
	if err = fn(c.Request.Context(), id); err != nil {
		switch {
		case domain.IsConflict(err):
			respondError(c, http.StatusConflict, "ERR_BAD_STATE", err.Error())
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"deal_id": id, "status": to})
}
