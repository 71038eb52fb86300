package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/repository"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserAdminHandler serves /admin/users endpoints.
type UserAdminHandler struct {
	userRepo    *repository.UserRepository
	bankrollSvc *service.BankrollService
	cfg         *config.Config
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(
	userRepo *repository.UserRepository,
	bankrollSvc *service.BankrollService,
	cfg *config.Config,
) *UserAdminHandler {
	return &UserAdminHandler{userRepo: userRepo, bankrollSvc: bankrollSvc, cfg: cfg}
}

// List godoc
// GET /admin/users?page=1&limit=50
func (h *UserAdminHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	users, total, err := h.userRepo.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, users, total, page, limit)
}

// Detail godoc
// GET /admin/users/:id
func (h *UserAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}

	ctx := c.Request.Context()
	user, err := h.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	bankroll, _ := h.bankrollSvc.GetBankroll(ctx, id)
	txns, _ := h.bankrollSvc.GetTransactions(ctx, id, 50, 0)

	respondSuccess(c, http.StatusOK, gin.H{
		"user":         user,
		"bankroll":     bankroll,
		"transactions": txns,
	})
}

// Suspend godoc
// POST /admin/users/:id/suspend
func (h *UserAdminHandler) Suspend(c *gin.Context) {
	h.setActive(c, false)
}

// Activate godoc
// POST /admin/users/:id/activate
func (h *UserAdminHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *UserAdminHandler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}
	if err = h.userRepo.SetActive(c.Request.Context(), id, active); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user_id": id, "is_active": active})
}

// AdjustBalance godoc
// POST /admin/users/:id/balance
// Body: {"amount": "500", "note": "goodwill credit"}
func (h *UserAdminHandler) AdjustBalance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}
	var body struct {
		Amount string `json:"amount" binding:"required"`
		Note   string `json:"note"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a decimal string")
		return
	}

	note := body.Note
	if note == "" {
		note = "manual correction"
	}
	// The audit row records which staff account made the change.
	if adminID := adminUserID(c); adminID != uuid.Nil {
		note = fmt.Sprintf("%s (by %s)", note, adminID)
	}
	bankroll, err := h.bankrollSvc.AdminAdjust(c.Request.Context(), id, amount, note)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBankrollNotFound):
			respondError(c, http.StatusNotFound, "ERR_BANKROLL_NOT_FOUND", err.Error())
		case errors.Is(err, domain.ErrNegativeAmount):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be non-zero")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		}
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"user_id":     id,
		"amount":      amount,
		"new_balance": bankroll.Balance,
	})
}

// SetRole godoc
// POST /admin/users/:id/role
// Body: {"role": "finance"}
func (h *UserAdminHandler) SetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}
	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	role := domain.UserRole(body.Role)
	validRoles := map[domain.UserRole]bool{
		domain.RolePlayer:   true,
		domain.RoleInvestor: true,
		domain.RoleAdmin:    true,
		domain.RoleFinance:  true,
		domain.RoleReadOnly: true,
	}
	if !validRoles[role] {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ROLE", "unknown role")
		return
	}
	if err = h.userRepo.UpdateRole(c.Request.Context(), id, role); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user_id": id, "role": role})
}
