package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/feltline/stakehouse/internal/api/middleware"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SettlementHandler serves settlement history, previews, and risk statistics.
type SettlementHandler struct {
	settlementSvc *service.SettlementService
	riskSvc       *service.RiskService
	dealSvc       *service.DealService
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settlementSvc *service.SettlementService, riskSvc *service.RiskService, dealSvc *service.DealService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc, riskSvc: riskSvc, dealSvc: dealSvc}
}

// ListSettlements godoc
// GET /api/deals/:id/settlements?page=1&limit=20 [JWT]
func (h *SettlementHandler) ListSettlements(c *gin.Context) {
	deal, ok := h.loadDeal(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	settlements, total, err := h.settlementSvc.ListSettlements(c.Request.Context(), deal.ID, limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch settlements")
		return
	}
	respondList(c, settlements, total, page, limit)
}

// GetSettlement godoc
// GET /api/settlements/:id [JWT]
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	settlementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_SETTLEMENT_ID", "invalid settlement id")
		return
	}

	calc, err := h.settlementSvc.GetSettlement(c.Request.Context(), settlementID)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		} else {
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch settlement")
		}
		return
	}

	// Party check runs against the owning deal.
	if _, ok := h.authorize(c, calc.DealID); !ok {
		return
	}
	respondSuccess(c, http.StatusOK, calc)
}

// Preview godoc
// GET /api/deals/:id/settlements/preview?start=...&end=... [JWT]
// Runs the calculator over the window without posting anything. Defaults to
// the deal start through now when the window is omitted.
func (h *SettlementHandler) Preview(c *gin.Context) {
	deal, ok := h.loadDeal(c)
	if !ok {
		return
	}

	start := deal.StartsAt
	end := time.Now().UTC()
	var err error
	if v := c.Query("start"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DATE", "start must be RFC3339")
			return
		}
	}
	if v := c.Query("end"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DATE", "end must be RFC3339")
			return
		}
	}

	calc, err := h.settlementSvc.Preview(c.Request.Context(), deal.ID, start, end)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPeriod):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_PERIOD", err.Error())
		case domain.IsValidation(err):
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not compute preview")
		}
		return
	}
	respondSuccess(c, http.StatusOK, calc)
}

// GetRiskStats godoc
// GET /api/deals/:id/risk [JWT]
func (h *SettlementHandler) GetRiskStats(c *gin.Context) {
	deal, ok := h.loadDeal(c)
	if !ok {
		return
	}

	stats, err := h.riskSvc.GetDealStats(c.Request.Context(), deal.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not compute risk stats")
		return
	}
	respondSuccess(c, http.StatusOK, stats)
}

// ListAlerts godoc
// GET /api/deals/:id/alerts [JWT]
func (h *SettlementHandler) ListAlerts(c *gin.Context) {
	deal, ok := h.loadDeal(c)
	if !ok {
		return
	}

	alerts, err := h.riskSvc.ListDealAlerts(c.Request.Context(), deal.ID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch alerts")
		return
	}
	respondSuccess(c, http.StatusOK, alerts)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (h *SettlementHandler) loadDeal(c *gin.Context) (*domain.StakingDeal, bool) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_DEAL_ID", "invalid deal id")
		return nil, false
	}
	return h.authorize(c, dealID)
}

func (h *SettlementHandler) authorize(c *gin.Context, dealID uuid.UUID) (*domain.StakingDeal, bool) {
	deal, err := h.dealSvc.GetDeal(c.Request.Context(), dealID)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		} else {
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch deal")
		}
		return nil, false
	}

	userID := middleware.GetUserID(c)
	role := domain.UserRole(middleware.GetRole(c))
	if userID != deal.PlayerID && userID != deal.InvestorID && !role.CanAccessBackoffice() {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "access denied")
		return nil, false
	}
	return deal, true
}
