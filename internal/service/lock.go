package service

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// syncLockKey 是全局同步互斥锁的键。锁带 TTL，进程崩溃后会自动释放。
const syncLockKey = "dropbox:sync:lock"

// SyncLocker 是同步编排需要的互斥能力。
type SyncLocker interface {
	// TryLock 尝试获取锁，返回是否获取成功。不阻塞等待。
	TryLock(ctx context.Context, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context) error
}

// redisSyncLocker 基于 Redis SETNX 实现的进程间互斥锁。
type redisSyncLocker struct {
	rdb *redis.Client
}

// NewRedisSyncLocker 创建基于 Redis 的同步锁。
func NewRedisSyncLocker(rdb *redis.Client) SyncLocker {
	return &redisSyncLocker{rdb: rdb}
}

func (l *redisSyncLocker) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, syncLockKey, time.Now().Format(time.RFC3339), ttl).Result()
}

func (l *redisSyncLocker) Unlock(ctx context.Context) error {
	return l.rdb.Del(ctx, syncLockKey).Err()
}
