// Package backoffice wires the staff-only admin API: deal oversight, user
// administration, risk review, and finance reporting.
package backoffice

import (
	"net/http"
	"strings"

	"github.com/feltline/stakehouse/internal/backoffice/handler"
	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/repository"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/feltline/stakehouse/internal/ws"
	"github.com/gin-gonic/gin"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc        *service.AuthService
	DealSvc        *service.DealService
	SettlementSvc  *service.SettlementService
	RiskSvc        *service.RiskService
	BankrollSvc    *service.BankrollService
	UserRepo       *repository.UserRepository
	SettlementRepo *repository.SettlementRepository
	BankrollRepo   *repository.BankrollRepository
	Hub            *ws.Hub
	Cfg            *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine on the back-office port.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.DealSvc, deps.RiskSvc, deps.SettlementRepo, deps.Hub, deps.Cfg)
	dealH := handler.NewDealAdminHandler(deps.DealSvc, deps.SettlementSvc, deps.RiskSvc, deps.Cfg)
	userH := handler.NewUserAdminHandler(deps.UserRepo, deps.BankrollSvc, deps.Cfg)
	riskH := handler.NewRiskAdminHandler(deps.RiskSvc, deps.Cfg)
	financeH := handler.NewFinanceHandler(deps.SettlementRepo, deps.BankrollRepo, deps.Cfg)

	jwtMW := adminJWTMiddleware(deps.AuthSvc)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Deals
		d := admin.Group("/deals")
		{
			d.GET("", dealH.List)
			d.GET("/:id", dealH.Detail)
			d.POST("/:id/pause", dealH.Pause)
			d.POST("/:id/cancel", dealH.Cancel)
			d.POST("/:id/complete", dealH.Complete)
			d.POST("/:id/settle", dealH.ForceSettle)
		}

		// Users
		u := admin.Group("/users")
		{
			u.GET("", userH.List)
			u.GET("/:id", userH.Detail)
			u.POST("/:id/suspend", userH.Suspend)
			u.POST("/:id/activate", userH.Activate)
			u.POST("/:id/balance", userH.AdjustBalance)
			u.POST("/:id/role", userH.SetRole)
		}

		// Risk
		risk := admin.Group("/risk")
		{
			risk.GET("/alerts", riskH.OpenAlerts)
			risk.POST("/alerts/:id/ack", riskH.Acknowledge)
			risk.GET("/deals/:id", riskH.DealStats)
			risk.POST("/evaluate", riskH.EvaluateNow)
		}

		// Finance
		fin := admin.Group("/finance")
		{
			fin.GET("/report", financeH.Report)
			fin.GET("/users/:id/transactions", financeH.UserTransactions)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !allowed[clientIP] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires a back-office role
// (admin, finance, readonly).
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims.TokenType != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		backofficeRoles := map[string]bool{
			"admin":    true,
			"finance":  true,
			"readonly": true,
		}
		if !backofficeRoles[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
