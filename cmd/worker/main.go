package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Aadiprofessional/edusmart-server/config"
	"github.com/Aadiprofessional/edusmart-server/internal/database"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/antom"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/pubsub"
	"github.com/Aadiprofessional/edusmart-server/internal/pkg/queue"
	"github.com/Aadiprofessional/edusmart-server/internal/repository"
	"github.com/Aadiprofessional/edusmart-server/internal/service"
	"github.com/Aadiprofessional/edusmart-server/internal/worker"
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
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	antomCfg, err := antom.NewConfig(&cfg.Antom)
	if err != nil {
		log.Fatalf("Failed to load antom config: %v", err)
	}
	gateway := antom.NewClient(antomCfg)

	// 初始化 Queue 和 Pub/Sub
	reconcileQueue := queue.NewQueue(rdb, cfg.Queue.ReconcileQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	addonRepo := repository.NewAddonRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	planService := service.NewPlanService(planRepo, addonRepo)
	ledgerService := service.NewLedgerService(
		db,
		userRepo,
		planRepo,
		addonRepo,
		repository.NewSubscriptionRepository(db),
		paymentRepo,
		repository.NewUsageLogRepository(db),
		cfg,
	)
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

	// 创建对账处理器
	reconciler := worker.NewReconciler(paymentService, reconcileQueue, worker.DefaultMaxAttempts)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	maxWorkers := cfg.Queue.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	log.Printf("Worker started, max workers: %d", maxWorkers)

	// 启动 worker 循环
	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
					// 从队列获取任务
					job, err := reconcileQueue.Pop(ctx, 5*time.Second)
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						log.Printf("Worker %d: failed to pop job: %v", workerID, err)
						continue
					}

					if job == nil {
						continue // 超时，继续等待
					}

					log.Printf("Worker %d: reconciling payment %s (attempt %d)", workerID, job.PaymentRequestID, job.Attempt)
					if err := reconciler.Process(ctx, job); err != nil {
						log.Printf("Worker %d: payment %s failed: %v", workerID, job.PaymentRequestID, err)
					}
				}
			}
		}(i)
	}

	wg.Wait()
	log.Println("Worker shutdown complete")
}
