package handler

import (
	"net/http"
	"time"

	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FinanceHandler serves /admin/finance endpoints.
type FinanceHandler struct {
	settlementRepo *repository.SettlementRepository
	bankrollRepo   *repository.BankrollRepository
	cfg            *config.Config
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(
	settlementRepo *repository.SettlementRepository,
	bankrollRepo *repository.BankrollRepository,
	cfg *config.Config,
) *FinanceHandler {
	return &FinanceHandler{settlementRepo: settlementRepo, bankrollRepo: bankrollRepo, cfg: cfg}
}

// Report godoc
// GET /admin/finance/report?from=2026-07-01&to=2026-07-31
// Aggregates posted settlements over the window: volume, payouts, fees, tax.
func (h *FinanceHandler) Report(c *gin.Context) {
	ctx := c.Request.Context()

	fromStr := c.Query("from")
	toStr := c.Query("to")

	var from, to time.Time
	var err error
	if fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DATE", "from must be YYYY-MM-DD")
			return
		}
	} else {
		from = time.Now().UTC().AddDate(0, -1, 0).Truncate(24 * time.Hour) // default: last 30 days
	}
	if toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DATE", "to must be YYYY-MM-DD")
			return
		}
		to = to.Add(24 * time.Hour) // inclusive
	} else {
		to = time.Now().UTC()
	}

	report, err := h.settlementRepo.GetFinanceReport(ctx, from, to)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

// UserTransactions godoc
// GET /admin/finance/users/:id/transactions?page=1&limit=50
func (h *FinanceHandler) UserTransactions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}
	page, limit := adminPagination(c)

	txns, err := h.bankrollRepo.GetTransactions(c.Request.Context(), id, limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, txns, len(txns), page, limit)
}
