package handler

import (
	"errors"
	"net/http"

	"github.com/feltline/stakehouse/internal/api/middleware"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ResultHandler serves tournament result and expense recording endpoints.
type ResultHandler struct {
	resultSvc *service.ResultService
	dealSvc   *service.DealService
}

// NewResultHandler creates a ResultHandler.
func NewResultHandler(resultSvc *service.ResultService, dealSvc *service.DealService) *ResultHandler {
	return &ResultHandler{resultSvc: resultSvc, dealSvc: dealSvc}
}

// RecordResult godoc
// POST /api/deals/:id/results [JWT]
// Body: {"venue":"...","event_name":"...","buy_in":"1500.00","prize":"0","played_at":"..."}
// Only the deal's player may record results.
func (h *ResultHandler) RecordResult(c *gin.Context) {
	deal, ok := h.loadForWrite(c)
	if !ok {
		return
	}

	var req service.RecordResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	entry, err := h.resultSvc.RecordResult(c.Request.Context(), deal.ID, req)
	if err != nil {
		h.writeRecordError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, entry)
}

// RecordExpense godoc
// POST /api/deals/:id/expenses [JWT]
// Body: {"category":"travel","description":"...","amount":"420.00","incurred_at":"..."}
func (h *ResultHandler) RecordExpense(c *gin.Context) {
	deal, ok := h.loadForWrite(c)
	if !ok {
		return
	}

	var req service.RecordExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	entry, err := h.resultSvc.RecordExpense(c.Request.Context(), deal.ID, req)
	if err != nil {
		h.writeRecordError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, entry)
}

// ListResults godoc
// GET /api/deals/:id/results?page=1&limit=20 [JWT]
func (h *ResultHandler) ListResults(c *gin.Context) {
	deal, ok := h.loadForRead(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	entries, total, err := h.resultSvc.ListResults(c.Request.Context(), deal.ID, limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch results")
		return
	}
	respondList(c, entries, total, page, limit)
}

// ListExpenses godoc
// GET /api/deals/:id/expenses?page=1&limit=20 [JWT]
func (h *ResultHandler) ListExpenses(c *gin.Context) {
	deal, ok := h.loadForRead(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	expenses, total, err := h.resultSvc.ListExpenses(c.Request.Context(), deal.ID, limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch expenses")
		return
	}
	respondList(c, expenses, total, page, limit)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// loadForWrite fetches the deal and requires the caller to be its player.
func (h *ResultHandler) loadForWrite(c *gin.Context) (*domain.StakingDeal, bool) {
	deal, ok := h.load(c)
	if !ok {
		return nil, false
	}
	if middleware.GetUserID(c) != deal.PlayerID {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "only the player can record entries")
		return nil, false
	}
	return deal, true
}

// loadForRead fetches the deal and requires the caller to be a party or staff.
func (h *ResultHandler) loadForRead(c *gin.Context) (*domain.StakingDeal, bool) {
	deal, ok := h.load(c)
	if !ok {
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

func (h *ResultHandler) load(c *gin.Context) (*domain.StakingDeal, bool) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_DEAL_ID", "invalid deal id")
		return nil, false
	}
	deal, err := h.dealSvc.GetDeal(c.Request.Context(), dealID)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		} else {
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch deal")
		}
		return nil, false
	}
	return deal, true
}

func (h *ResultHandler) writeRecordError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrDealNotActive):
		respondError(c, http.StatusConflict, "ERR_DEAL_NOT_ACTIVE", err.Error())
	case errors.Is(err, domain.ErrEntryOutsidePeriod):
		respondError(c, http.StatusUnprocessableEntity, "ERR_OUTSIDE_WINDOW", err.Error())
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not record entry")
	}
}
