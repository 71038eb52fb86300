// Package api wires the public HTTP surface: routing, CORS, rate limits, and
// the WebSocket upgrade endpoint.
package api

import (
	"net/http"

	"github.com/feltline/stakehouse/internal/api/handler"
	"github.com/feltline/stakehouse/internal/api/middleware"
	"github.com/feltline/stakehouse/internal/config"
	"github.com/feltline/stakehouse/internal/service"
	"github.com/feltline/stakehouse/internal/ws"
	"github.com/gin-gonic/gin"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc       *service.AuthService
	DealSvc       *service.DealService
	ResultSvc     *service.ResultService
	SettlementSvc *service.SettlementService
	RiskSvc       *service.RiskService
	BankrollSvc   *service.BankrollService
	Hub           *ws.Hub
	Cfg           *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	userH := handler.NewUserHandler(deps.AuthSvc, deps.BankrollSvc)
	dealH := handler.NewDealHandler(deps.DealSvc)
	resultH := handler.NewResultHandler(deps.ResultSvc, deps.DealSvc)
	settleH := handler.NewSettlementHandler(deps.SettlementSvc, deps.RiskSvc, deps.DealSvc)
	bankrollH := handler.NewBankrollHandler(deps.BankrollSvc)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(10)  // 10 req/s per IP for auth endpoints
	writeRL := middleware.RateLimitMiddleware(30) // 30 req/s per IP for recording endpoints

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/register", userH.Register)
			auth.POST("/login", userH.Login)
			auth.POST("/refresh", userH.Refresh)
		}

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			// Profile
			authed.GET("/me", userH.Me)

			// Deals
			deals := authed.Group("/deals")
			{
				deals.POST("", dealH.CreateDeal)
				deals.GET("/my", dealH.ListMyDeals)
				deals.GET("/:id", dealH.GetDeal)
				deals.POST("/:id/activate", dealH.Activate)
				deals.POST("/:id/pause", dealH.Pause)
				deals.POST("/:id/cancel", dealH.Cancel)
				deals.POST("/:id/complete", dealH.Complete)

				// Results and expenses
				recording := deals.Group("")
				recording.Use(writeRL)
				{
					recording.POST("/:id/results", resultH.RecordResult)
					recording.POST("/:id/expenses", resultH.RecordExpense)
				}
				deals.GET("/:id/results", resultH.ListResults)
				deals.GET("/:id/expenses", resultH.ListExpenses)

				// Settlements and risk
				deals.GET("/:id/settlements", settleH.ListSettlements)
				deals.GET("/:id/settlements/preview", settleH.Preview)
				deals.GET("/:id/risk", settleH.GetRiskStats)
				deals.GET("/:id/alerts", settleH.ListAlerts)
			}

			// Settlements by id
			authed.GET("/settlements/:id", settleH.GetSettlement)

			// Bankroll
			bankroll := authed.Group("/bankroll")
			{
				bankroll.GET("", bankrollH.GetBalance)
				bankroll.GET("/transactions", bankrollH.GetTransactions)
				bankroll.POST("/deposit", bankrollH.Deposit)
				bankroll.POST("/withdraw", bankrollH.Withdraw)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In DEBUG mode all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := map[string]bool{
				"https://feltline.app":     true,
				"https://www.feltline.app": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
