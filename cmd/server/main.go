package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aadiprofessional/edusmart-server/config"
	"github.com/Aadiprofessional/edusmart-server/internal/api"
	"github.com/Aadiprofessional/edusmart-server/internal/api/handler"
	"github.com/Aadiprofessional/edusmart-server/internal/database"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/antom"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/cron"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/pubsub"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/queue"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/ws"
	"github.com/Aadiprofessional/edusmart-server/internal/repository"
	"github.com/Aadiprofessional/edusmart-server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化支付网关
	antomCfg, err := antom.NewConfig(&cfg.Antom)
	if err != nil {
		log.Fatalf("Failed to load antom config: %v", err)
	}
	gateway := antom.NewClient(antomCfg)
	log.Printf("Antom client ready, base path: %s", antomCfg.BasePath)

	// 初始化 Queue 和 Pub/Sub
	reconcileQueue := queue.NewQueue(rdb, cfg.Queue.ReconcileQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	addonRepo := repository.NewAddonRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	usageRepo := repository.NewUsageLogRepository(db)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, cfg)
	planService := service.NewPlanService(planRepo, addonRepo)
	ledgerService := service.NewLedgerService(db, userRepo, planRepo, addonRepo, subRepo, paymentRepo, usageRepo, cfg)
	paymentService := service.NewPaymentService(
		userRepo,
		paymentRepo,
		planService,
		ledgerService,
		gateway,
		gateway.Signer(),
		reconcileQueue,
		publisher,
		cfg,
	)

	// 定时任务：月度刷新 + 未入账补偿
	cronService := cron.NewService(ledgerService, paymentService, cfg.Ledger.RefreshCheckHours)
	cronService.Start()

	// WebSocket Hub，由 Redis 订阅驱动推送
	wsHub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go forwardPaymentEvents(ctx, pubsub.NewSubscriber(rdb), wsHub)
	log.Println("WebSocket hub started")

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	subscriptionHandler := handler.NewSubscriptionHandler(ledgerService, planService, cronService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		subscriptionHandler,
		paymentHandler,
		websocketHandler,
		authService,
		rdb,
		cfg,
	)
	engine := router.Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal")

	cancel()
	cronService.Stop()
	wsHub.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server shutdown complete")
}

// forwardPaymentEvents 把 Redis 上的支付事件推给在线用户，断线后重连
func forwardPaymentEvents(ctx context.Context, subscriber *pubsub.Subscriber, hub *ws.Hub) {
	for {
		err := subscriber.Subscribe(ctx, func(event *pubsub.PaymentEvent) {
			if _, err := hub.SendToUser(event.UserID, &ws.Message{Type: event.Type, Data: event}); err != nil {
				log.Printf("Failed to push %s to user %d: %v", event.Type, event.UserID, err)
			}
		})
		if ctx.Err() != nil {
			return
		}
		log.Printf("Payment event subscription dropped: %v", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}
