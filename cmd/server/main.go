// Package main 是 API 服务的入口点。
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"dropbox-rag-go/internal/config"
	"dropbox-rag-go/internal/handler"
	"dropbox-rag-go/internal/middleware"
	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/internal/repository"
	"dropbox-rag-go/internal/service"
	"dropbox-rag-go/pkg/database"
	"dropbox-rag-go/pkg/dropbox"
	"dropbox-rag-go/pkg/log"
	"dropbox-rag-go/pkg/queue"
	"dropbox-rag-go/pkg/storage"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化基础设施
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	if err := db.AutoMigrate(&model.DropboxFile{}, &model.DropboxChunk{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	minioClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	producer := queue.NewProducer(cfg.Kafka)
	defer producer.Close()
	dropboxClient := dropbox.NewClient(cfg.Dropbox)

	// 4. 初始化 Repository 与 Service（依赖注入）
	fileRepo := repository.NewFileRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	locker := service.NewRedisSyncLocker(rdb)
	syncService := service.NewSyncService(
		dropboxClient, minioClient, fileRepo, producer, locker,
		cfg.Sync, cfg.Dropbox.RootPath,
	)
	fileService := service.NewFileService(fileRepo, chunkRepo)

	// 5. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	syncHandler := handler.NewSyncHandler(syncService)
	fileHandler := handler.NewFileHandler(fileService)
	webhookHandler := handler.NewWebhookHandler(dropboxClient, syncService)

	apiV1 := r.Group("/api/v1")
	{
		dbx := apiV1.Group("/dropbox")
		{
			dbx.POST("/sync", syncHandler.TriggerSync)
			dbx.GET("/webhook", webhookHandler.Verify)
			dbx.POST("/webhook", webhookHandler.Notify)
		}

		files := apiV1.Group("/dropbox/files")
		{
			files.GET("", fileHandler.ListFiles)
			files.GET("/:id", fileHandler.GetFile)
			files.GET("/:id/chunks", fileHandler.GetChunks)
			files.GET("/:id/watch", fileHandler.WatchFile)
		}
	}

	// 6. 启动 HTTP 服务并支持优雅停机
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Infof("[Server] HTTP 服务启动, 监听端口: %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("[Server] 收到退出信号, 开始优雅停机...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("[Server] 优雅停机失败: %v", err)
	}
	log.Info("[Server] 服务已退出")
}
