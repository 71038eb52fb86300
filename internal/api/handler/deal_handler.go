package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/feltline/stakehouse/internal/api/middleware"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DealHandler serves staking deal creation and lifecycle endpoints.
type DealHandler struct {
	dealSvc *service.DealService
}

// NewDealHandler creates a DealHandler.
func NewDealHandler(dealSvc *service.DealService) *DealHandler {
	return &DealHandler{dealSvc: dealSvc}
}

// CreateDeal godoc
// POST /api/deals [JWT]
// Body: {"player_id":"uuid","investor_id":"uuid","percentage":"50","markup":"1.2",
//
//	"expense_rule":"proportional","bankroll":"50000.00","starts_at":"..."}
func (h *DealHandler) CreateDeal(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		PlayerID          string     `json:"player_id"           binding:"required"`
		InvestorID        string     `json:"investor_id"         binding:"required"`
		Percentage        string     `json:"percentage"          binding:"required"`
		Markup            string     `json:"markup"              binding:"required"`
		ExpenseRule       string     `json:"expense_rule"        binding:"required"`
		Bankroll          string     `json:"bankroll"            binding:"required"`
		StopLossPct       *string    `json:"stop_loss_pct"`
		DrawdownAlertPct  *string    `json:"drawdown_alert_pct"`
		TaxWithholdingPct string     `json:"tax_withholding_pct"`
		StartsAt          *time.Time `json:"starts_at"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	playerID, err := uuid.Parse(body.PlayerID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_PLAYER_ID", "invalid player_id format")
		return
	}
	investorID, err := uuid.Parse(body.InvestorID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_INVESTOR_ID", "invalid investor_id format")
		return
	}
	if userID != playerID && userID != investorID {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "you must be a party to the deal")
		return
	}
	if playerID == investorID {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "player and investor must differ")
		return
	}

	req := domain.CreateDealRequest{PlayerID: playerID, InvestorID: investorID}
	if req.Percentage, err = parseDecimal(body.Percentage); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "percentage must be a decimal string")
		return
	}
	if req.Markup, err = parseDecimal(body.Markup); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "markup must be a decimal string")
		return
	}
	if req.Bankroll, err = parseDecimal(body.Bankroll); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "bankroll must be a decimal string")
		return
	}
	req.ExpenseRule = domain.ExpenseRule(body.ExpenseRule)
	if req.StopLossPct, err = parseOptionalDecimal(body.StopLossPct); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "stop_loss_pct must be a decimal string")
		return
	}
	if req.DrawdownAlertPct, err = parseOptionalDecimal(body.DrawdownAlertPct); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "drawdown_alert_pct must be a decimal string")
		return
	}
	if body.TaxWithholdingPct != "" {
		if req.TaxWithholdingPct, err = parseDecimal(body.TaxWithholdingPct); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "tax_withholding_pct must be a decimal string")
			return
		}
	}
	req.StartsAt = time.Now().UTC()
	if body.StartsAt != nil {
		req.StartsAt = body.StartsAt.UTC()
	}

	deal, err := h.dealSvc.CreateDeal(c.Request.Context(), req)
	if err != nil {
		if domain.IsValidation(err) {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_TERMS", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not create deal")
		return
	}
	respondSuccess(c, http.StatusCreated, deal.ToResponse())
}

// Activate godoc
// POST /api/deals/:id/activate [JWT]
// Only the investor may activate: activation commits their funds.
func (h *DealHandler) Activate(c *gin.Context) {
	deal, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	if middleware.GetUserID(c) != deal.InvestorID {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "only the investor can activate a deal")
		return
	}

	if err := h.dealSvc.ActivateDeal(c.Request.Context(), deal.ID); err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientBankroll):
			respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BANKROLL", err.Error())
		case errors.Is(err, domain.ErrDealNotActive), errors.Is(err, domain.ErrDealAlreadyCompleted):
			respondError(c, http.StatusConflict, "ERR_BAD_STATE", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not activate deal")
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": domain.DealStatusActive})
}

// Pause godoc
// POST /api/deals/:id/pause [JWT]
func (h *DealHandler) Pause(c *gin.Context) {
	h.transition(c, h.dealSvc.PauseDeal, domain.DealStatusPaused)
}

// Cancel godoc
// POST /api/deals/:id/cancel [JWT]
func (h *DealHandler) Cancel(c *gin.Context) {
	h.transition(c, h.dealSvc.CancelDeal, domain.DealStatusCancelled)
}

// Complete godoc
// POST /api/deals/:id/complete [JWT]
func (h *DealHandler) Complete(c *gin.Context) {
	h.transition(c, h.dealSvc.CompleteDeal, domain.DealStatusCompleted)
}

// GetDeal godoc
// GET /api/deals/:id [JWT]
func (h *DealHandler) GetDeal(c *gin.Context) {
	deal, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, deal.ToResponse())
}

// ListMyDeals godoc
// GET /api/deals/my?status=active&page=1&limit=20 [JWT]
func (h *DealHandler) ListMyDeals(c *gin.Context) {
	userID := middleware.GetUserID(c)
	status := c.Query("status")
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	deals, total, err := h.dealSvc.ListDealsByUser(c.Request.Context(), userID, limit, offset, status)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list deals")
		return
	}
	out := make([]domain.DealResponse, 0, len(deals))
	for _, d := range deals {
		out = append(out, d.ToResponse())
	}
	respondList(c, out, total, page, limit)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// transition runs a lifecycle change after a party check.
func (h *DealHandler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) error, to domain.DealStatus) {
	deal, ok := h.loadAuthorized(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), deal.ID); err != nil {
		switch {
		case domain.IsConflict(err):
			respondError(c, http.StatusConflict, "ERR_BAD_STATE", err.Error())
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not update deal")
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": to})
}

// loadAuthorized fetches the deal in :id and checks the caller is a party to
// it (or back-office staff). Writes the error response itself on failure.
func (h *DealHandler) loadAuthorized(c *gin.Context) (*domain.StakingDeal, bool) {
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

	userID := middleware.GetUserID(c)
	role := domain.UserRole(middleware.GetRole(c))
	if userID != deal.PlayerID && userID != deal.InvestorID && !role.CanAccessBackoffice() {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "access denied")
		return nil, false
	}
	return deal, true
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func parseOptionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
