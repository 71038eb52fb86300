package handler

import (
	"errors"
	"net/http"

	"github.com/feltline/stakehouse/internal/api/middleware"
	"github.com/feltline/stakehouse/internal/domain"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/gin-gonic/gin"
)

// UserHandler serves registration, login, token refresh, and the profile view.
type UserHandler struct {
	authSvc     *service.AuthService
	bankrollSvc *service.BankrollService
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(authSvc *service.AuthService, bankrollSvc *service.BankrollService) *UserHandler {
	return &UserHandler{authSvc: authSvc, bankrollSvc: bankrollSvc}
}

// Register godoc
// POST /api/auth/register
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.Register(c.Request.Context(), req)
	switch {
	case err == nil:
		respondSuccess(c, http.StatusCreated, resp)
	case errors.Is(err, domain.ErrEmailTaken):
		respondError(c, http.StatusConflict, "ERR_EMAIL_TAKEN", err.Error())
	case errors.Is(err, domain.ErrUsernameTaken):
		respondError(c, http.StatusConflict, "ERR_USERNAME_TAKEN", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "registration failed")
	}
}

// Login godoc
// POST /api/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"    binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.Login(c.Request.Context(), body.Email, body.Password)
	switch {
	case err == nil:
		respondSuccess(c, http.StatusOK, resp)
	case errors.Is(err, domain.ErrUserInactive):
		respondError(c, http.StatusForbidden, "ERR_ACCOUNT_DISABLED", err.Error())
	case domain.IsAuthError(err):
		// Wrong email and wrong password are reported identically.
		respondError(c, http.StatusUnauthorized, "ERR_INVALID_CREDENTIALS", domain.ErrInvalidCredentials.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "login failed")
	}
}

// Refresh godoc
// POST /api/auth/refresh
func (h *UserHandler) Refresh(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	access, refresh, err := h.authSvc.RefreshToken(c.Request.Context(), body.RefreshToken)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "ERR_INVALID_TOKEN", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// Me godoc
// GET /api/me [JWT required]
// Combines identity claims with the caller's bankroll snapshot so the
// dashboard needs a single request after login.
func (h *UserHandler) Me(c *gin.Context) {
	userID := middleware.GetUserID(c)
	bankroll, err := h.bankrollSvc.GetBankroll(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_BANKROLL_NOT_FOUND", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"user_id":   userID,
		"role":      middleware.GetRole(c),
		"balance":   bankroll.Balance,
		"committed": bankroll.Committed,
		"available": bankroll.Available(),
	})
}
