package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"dropbox-rag-go/pkg/log"
)

// NewRedis 初始化 Redis 客户端连接并做一次 Ping 探活。
func NewRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	log.Info("Redis client connected successfully")
	return rdb, nil
}
