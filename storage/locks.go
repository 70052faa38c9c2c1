package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseMargin 租约剩余不足该值时放弃主动删除，等租约自然过期，
// 避免删掉过期后被他人抢到的同名锁
const releaseMargin = 500 * time.Millisecond

// Lock 带租约的分布式锁。持有者崩溃后租约到期自动释放，
// 不会永久卡死系统。
type Lock struct {
	rdb      *redis.Client
	key      string
	token    string
	ttl      time.Duration
	acquired time.Time
}

// TryLock 非阻塞抢锁，抢到返回锁句柄，否则返回 (nil, nil)
func (s *Store) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.New().String()
	ok, err := s.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lock{rdb: s.rdb, key: key, token: token, ttl: ttl, acquired: time.Now()}, nil
}

// AcquireLock 阻塞抢锁，直到成功或 ctx 取消
func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	for {
		lock, err := s.TryLock(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if lock != nil {
			return lock, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Release 释放锁。只有租约剩余充足时才删除键，且删除前在 WATCH 下
// 核对持有令牌，确保删的一定是自己的锁。
func (l *Lock) Release(ctx context.Context) error {
	if time.Since(l.acquired) > l.ttl-releaseMargin {
		return nil
	}
	err := l.rdb.Watch(ctx, func(tx *redis.Tx) error {
		v, err := tx.Get(ctx, l.key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		if v != l.token {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, l.key)
			return nil
		})
		return err
	}, l.key)
	if err == redis.TxFailedErr {
		// 键已被他人改写，说明锁不再属于自己
		return nil
	}
	return err
}

// GameStartLock 比赛开始的一次性互斥锁：防止多个 worker 的就绪事件
// 同时触发初始化
func (s *Store) GameStartLock(ctx context.Context) (*Lock, error) {
	return s.TryLock(ctx, keyGameStartLock, 30*time.Second)
}

// TeamLockKey 计分用的队伍锁键名
func TeamLockKey(teamID uint32) string {
	return keyTeamLock(teamID)
}
