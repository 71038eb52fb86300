package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/feltline/stakehouse/internal/api/middleware"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankrollHandler serves balance, transaction history, deposit, and
// withdrawal endpoints.
type BankrollHandler struct {
	bankrollSvc *service.BankrollService
}

// NewBankrollHandler creates a BankrollHandler.
func NewBankrollHandler(bankrollSvc *service.BankrollService) *BankrollHandler {
	return &BankrollHandler{bankrollSvc: bankrollSvc}
}

// GetBalance godoc
// GET /api/bankroll [JWT]
func (h *BankrollHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	bankroll, err := h.bankrollSvc.GetBankroll(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_BANKROLL_NOT_FOUND", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"balance":   bankroll.Balance,
		"committed": bankroll.Committed,
		"available": bankroll.Available(),
	})
}

// GetTransactions godoc
// GET /api/bankroll/transactions?page=1&limit=20 [JWT]
func (h *BankrollHandler) GetTransactions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)

	txns, err := h.bankrollSvc.GetTransactions(c.Request.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch transactions")
		return
	}
	respondList(c, txns, len(txns), page, limit)
}

// Deposit godoc
// POST /api/bankroll/deposit [JWT]
// Body: {"amount":"1000.00"}
func (h *BankrollHandler) Deposit(c *gin.Context) {
	h.move(c, h.bankrollSvc.Deposit)
}

// Withdraw godoc
// POST /api/bankroll/withdraw [JWT]
// Body: {"amount":"1000.00"}
func (h *BankrollHandler) Withdraw(c *gin.Context) {
	h.move(c, h.bankrollSvc.Withdraw)
}

// ── helpers ──────────────────────────────────────────────────────────────────

type moveFunc func(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Bankroll, error)

func (h *BankrollHandler) move(c *gin.Context, fn moveFunc) {
	userID := middleware.GetUserID(c)

	var body struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || amount.Sign() <= 0 {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	bankroll, err := fn(c.Request.Context(), userID, amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientBankroll):
			respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BANKROLL", err.Error())
		case errors.Is(err, domain.ErrBankrollNotFound):
			respondError(c, http.StatusNotFound, "ERR_BANKROLL_NOT_FOUND", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not process request")
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"balance":   bankroll.Balance,
		"committed": bankroll.Committed,
		"available": bankroll.Available(),
	})
}
