package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jobmate/cancel_go_server/config"
	"github.com/jobmate/cancel_go_server/internal/api"
	"github.com/jobmate/cancel_go_server/internal/api/handler"
	"github.com/jobmate/cancel_go_server/internal/database"
	"github.com/jobmate/cancel_go_server/internal/pkg/cron"
	"github.com/jobmate/cancel_go_server/internal/pkg/pubsub"
	"github.com/jobmate/cancel_go_server/internal/pkg/queue"
	"github.com/jobmate/cancel_go_server/internal/pkg/ws"
	"github.com/jobmate/cancel_go_server/internal/repository"
	"github.com/jobmate/cancel_go_server/internal/service"
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

	// 归档队列，定稿后的问卷由 worker 异步导出
	archiveQueue := queue.NewQueue(rdb, cfg.Queue.CancellationQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// 跨实例事件桥：把 Redis 上的取消事件转给本机在线的向导连接
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.EventMessage) {
			_ = wsHub.SendToUser(msg.UserID, &ws.Message{Type: msg.Type, Data: msg})
		})
		if err != nil {
			log.Printf("Event subscriber stopped: %v", err)
		}
	}()

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	cancelRepo := repository.NewCancellationRepository(db)

	// 初始化 Service
	experimentService := service.NewExperimentService(userRepo, subRepo, cancelRepo, publisher, cfg)
	cancellationService := service.NewCancellationService(subRepo, cancelRepo, archiveQueue, publisher, cfg)

	// 定时任务：过期草稿回退 + 本地归档清理
	cronService := cron.NewService(cancelRepo, subRepo, cfg.Wizard.ExportDir, cfg.Wizard.StaleDraftDays)
	cronService.Start()

	// 初始化 Handler
	cancellationHandler := handler.NewCancellationHandler(cancellationService)
	experimentHandler := handler.NewExperimentHandler(experimentService)
	subscriptionHandler := handler.NewSubscriptionHandler(cancellationService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cancellationService, cfg)

	// 初始化 Router
	router := api.NewRouter(
		cancellationHandler,
		experimentHandler,
		subscriptionHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
