package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/Aadiprofessional/edusmart-server/config"
	"github.com/Aadiprofessional/edusmart-server/internal/api/handler"
	"github.com/Aadiprofessional/edusmart-server/internal/api/middleware"
)

type Router struct {
	authHandler         *handler.AuthHandler
	subscriptionHandler *handler.SubscriptionHandler
	paymentHandler      *handler.PaymentHandler
	websocketHandler    *handler.WebSocketHandler
	adminChecker        middleware.AdminChecker
	rdb                 *redis.Client
	cfg                 *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	paymentHandler *handler.PaymentHandler,
	websocketHandler *handler.WebSocketHandler,
	adminChecker middleware.AdminChecker,
	rdb *redis.Client,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:         authHandler,
		subscriptionHandler: subscriptionHandler,
		paymentHandler:      paymentHandler,
		websocketHandler:    websocketHandler,
		adminChecker:        adminChecker,
		rdb:                 rdb,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	requireAuth := middleware.Auth(r.cfg.JWT.Secret)
	idempotencyTTL := time.Duration(r.cfg.Idempotency.TTLHours) * time.Hour

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.GET("/me", requireAuth, r.authHandler.Me)
		}

		// 订阅 - 公开目录
		subscriptions := api.Group("/subscriptions")
		{
			subscriptions.GET("/plans", r.subscriptionHandler.ListPlans)
			subscriptions.GET("/addons", r.subscriptionHandler.ListAddons)
		}

		// 订阅 - 需要认证
		subscriptionsAuth := api.Group("/subscriptions")
		subscriptionsAuth.Use(requireAuth)
		{
			subscriptionsAuth.GET("/status", r.subscriptionHandler.GetStatus)
			subscriptionsAuth.POST("/use-response", r.subscriptionHandler.UseResponse)
			subscriptionsAuth.GET("/usage-logs", r.subscriptionHandler.ListUsageLogs)
		}

		// 订阅 - 管理员
		admin := api.Group("/subscriptions/admin")
		admin.Use(requireAuth, middleware.AdminOnly(r.adminChecker))
		{
			admin.GET("/all", r.subscriptionHandler.ListAll)
			admin.POST("/refresh-responses", r.subscriptionHandler.RefreshResponses)
			admin.POST("/plans", r.subscriptionHandler.CreatePlan)
			admin.DELETE("/plans/:id", r.subscriptionHandler.RetirePlan)
			admin.POST("/addons", r.subscriptionHandler.CreateAddon)
			admin.DELETE("/addons/:id", r.subscriptionHandler.RetireAddon)
		}

		// 支付 - 公开（回调靠签名鉴权）
		payment := api.Group("/payment")
		{
			payment.GET("/methods", r.paymentHandler.Methods)
			payment.POST("/notify", r.paymentHandler.Notify)
		}

		// 支付 - 需要认证
		paymentAuth := api.Group("/payment")
		paymentAuth.Use(requireAuth)
		{
			paymentAuth.POST("/create", middleware.Idempotency(r.rdb, idempotencyTTL), r.paymentHandler.Create)
			paymentAuth.GET("/status/:paymentRequestId", r.paymentHandler.Status)
			paymentAuth.POST("/cancel/:paymentRequestId", r.paymentHandler.Cancel)
			paymentAuth.GET("/history", r.paymentHandler.History)
		}
	}

	return engine
}
