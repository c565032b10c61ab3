// Package main 是队列消费者的入口点。
package main

import (
	"context"
	"os/signal"
	"syscall"

	"dropbox-rag-go/internal/config"
	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/internal/pipeline"
	"dropbox-rag-go/internal/repository"
	"dropbox-rag-go/internal/service"
	"dropbox-rag-go/internal/worker"
	"dropbox-rag-go/pkg/database"
	"dropbox-rag-go/pkg/embedding"
	"dropbox-rag-go/pkg/es"
	"dropbox-rag-go/pkg/log"
	"dropbox-rag-go/pkg/queue"
	"dropbox-rag-go/pkg/storage"
	"dropbox-rag-go/pkg/tika"
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
	minioClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	esClient, err := es.NewClient(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)

	receiver := queue.NewReceiver(cfg.Kafka, cfg.Worker.MaxWaitTime())
	defer receiver.Close()

	// 4. 组装处理管道与消费循环
	fileRepo := repository.NewFileRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	chunker := pipeline.NewChunker(cfg.Worker.ChunkSize, cfg.Worker.ChunkOverlap)
	processor, err := pipeline.NewProcessor(
		minioClient, tikaClient, embeddingClient, chunker,
		chunkRepo, esClient, cfg.Worker,
	)
	if err != nil {
		log.Fatalf("处理管道初始化失败: %v", err)
	}
	tracker := service.NewStatusTracker(fileRepo)
	consumer := worker.NewConsumer(receiver, processor, tracker, cfg.Worker.MaxReceiveCount)

	// 5. 运行消费循环直到收到退出信号
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(ctx); err != nil {
		log.Fatalf("消费循环异常退出: %v", err)
	}
	log.Info("[Worker] 服务已退出")
}
