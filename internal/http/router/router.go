package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ecodvor/scrap-backend/internal/config"
	"github.com/ecodvor/scrap-backend/internal/http/handlers"
	"github.com/ecodvor/scrap-backend/internal/http/middleware"
	"github.com/ecodvor/scrap-backend/internal/models"
	"github.com/ecodvor/scrap-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	requestHandler *handlers.RequestHandler,
	walletHandler *handlers.WalletHandler,
	statsHandler *handlers.StatsHandler,
	catalogHandler *handlers.CatalogHandler,
	photoHandler *handlers.PhotoHandler,
	adminHandler *handlers.AdminHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/catalog/prices", catalogHandler.ListPrices)
	api.GET("/photos/*path", photoHandler.Serve(cfg.PhotoStoragePath))

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/requests/open", requestHandler.ListOpen)
		protected.GET("/requests/my", requestHandler.ListMy)
		protected.GET("/requests/:id", middleware.UUIDValidator("id"), requestHandler.Get)
		protected.POST("/requests/:id/cancel", middleware.UUIDValidator("id"), requestHandler.Cancel)

		seller := protected.Group("/")
		seller.Use(middleware.RequireRole(models.RoleSeller, models.RoleAdmin))
		{
			seller.POST("/requests", requestHandler.Create)
			seller.POST("/requests/:id/photo", middleware.UUIDValidator("id"), photoHandler.Upload)
		}

		worker := protected.Group("/")
		worker.Use(middleware.RequireRole(models.RoleWorker, models.RoleAdmin))
		{
			worker.POST("/requests/:id/accept", middleware.UUIDValidator("id"), requestHandler.Accept)
			worker.POST("/requests/:id/complete", middleware.UUIDValidator("id"), requestHandler.Complete)
			worker.GET("/stats", statsHandler.GetMyStats)
		}

		protected.GET("/wallet/balance", walletHandler.GetBalance)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/ledger/pending", adminHandler.ListPendingTransactions)
			admin.POST("/ledger/reconcile", adminHandler.Reconcile)
		}
	}

	return r
}
