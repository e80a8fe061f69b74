package api

import (
	v1 "github.com/flexprice/mealsub/internal/api/v1"
	"github.com/flexprice/mealsub/internal/config"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/rest/middleware"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Subscription *v1.SubscriptionHandler
	DailyOrder   *v1.DailyOrderHandler
	Wallet       *v1.WalletHandler
	Settings     *v1.SettingsHandler
	Jobs         *v1.JobsHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.SentryScopeMiddleware,
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)

	public := router.Group("/v1")
	public.Use(middleware.UserMiddleware(cfg, logger))

	subscriptions := public.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.GET("/:id/payments", handlers.Subscription.ListPayments)
		subscriptions.POST("/:id/pause", handlers.Subscription.PauseSubscription)
		subscriptions.POST("/:id/resume", handlers.Subscription.ResumeSubscription)
		subscriptions.POST("/:id/freeze", handlers.Subscription.FreezeSubscription)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		subscriptions.POST("/:id/refund", handlers.Subscription.RefundSubscription)
		subscriptions.PUT("/:id/auto-renew", handlers.Subscription.UpdateAutoRenew)
		subscriptions.POST("/:id/swap", handlers.DailyOrder.SwapMeal)
	}

	dailyOrders := public.Group("/daily-orders")
	{
		dailyOrders.GET("", handlers.DailyOrder.ListDailyOrders)
		dailyOrders.GET("/:id", handlers.DailyOrder.GetDailyOrder)
	}

	wallet := public.Group("/wallet")
	{
		wallet.GET("", handlers.Wallet.GetWallet)
		wallet.POST("/top-up", handlers.Wallet.TopUpWallet)
		wallet.GET("/transactions", handlers.Wallet.ListTransactions)
	}

	public.GET("/settings/subscription", handlers.Settings.GetSubscriptionSettings)

	admin := router.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg, logger), middleware.UserMiddleware(cfg, logger))
	{
		admin.POST("/subscriptions", handlers.Subscription.AdminCreateSubscription)
		admin.DELETE("/subscriptions/:id", handlers.Subscription.DeleteSubscription)
		admin.POST("/subscriptions/:id/settle-cash", handlers.Subscription.SettleCashPayment)

		admin.PUT("/daily-orders/:id/meal-status", handlers.DailyOrder.UpdateMealStatus)
		admin.POST("/daily-orders/:id/meals/:meal_type/deliver", handlers.DailyOrder.MarkMealDelivered)

		admin.GET("/settings", handlers.Settings.ListSettings)
		admin.GET("/settings/:key", handlers.Settings.GetSettingByKey)
		admin.PUT("/settings/:key", handlers.Settings.UpdateSettingByKey)
		admin.DELETE("/settings/:key", handlers.Settings.DeleteSettingByKey)

		admin.POST("/jobs/:name", handlers.Jobs.TriggerJob)
	}

	return router
}
