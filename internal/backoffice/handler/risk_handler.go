package handler

import (
	"errors"
	"net/http"

	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RiskAdminHandler serves /admin/risk endpoints.
type RiskAdminHandler struct {
	riskSvc *service.RiskService
	cfg     *config.Config
}

// NewRiskAdminHandler creates a RiskAdminHandler.
func NewRiskAdminHandler(riskSvc *service.RiskService, cfg *config.Config) *RiskAdminHandler {
	return &RiskAdminHandler{riskSvc: riskSvc, cfg: cfg}
}

// OpenAlerts godoc
// GET /admin/risk/alerts?page=1&limit=50
func (h *RiskAdminHandler) OpenAlerts(c *gin.Context) {
	page, limit := adminPagination(c)

	alerts, err := h.riskSvc.ListOpenAlerts(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, alerts, len(alerts), page, limit)
}

// Acknowledge godoc
// POST /admin/risk/alerts/:id/ack
func (h *RiskAdminHandler) Acknowledge(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid alert id")
		return
	}
	if err = h.riskSvc.AcknowledgeAlert(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"alert_id": id, "acknowledged": true})
}

// DealStats godoc
// GET /admin/risk/deals/:id
func (h *RiskAdminHandler) DealStats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid deal id")
		return
	}

	stats, err := h.riskSvc.GetDealStats(c.Request.Context(), id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, stats)
}

// EvaluateNow godoc
// POST /admin/risk/evaluate
// Runs a full risk sweep immediately instead of waiting for the next tick.
func (h *RiskAdminHandler) EvaluateNow(c *gin.Context) {
	if err := h.riskSvc.EvaluateDeals(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"evaluated": true})
}
