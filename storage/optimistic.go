package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// WithOptimisticTx 在 WATCH 语义下执行 fn，并发写冲突时重试直到成功
// 或 ctx 取消。这是整个缓存层唯一的并发控制手段，所有缓存变更都
// 必须经由它，不允许各调用点自行拼 WATCH/MULTI。
func (s *Store) WithOptimisticTx(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for {
		err := s.rdb.Watch(ctx, fn, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return err
	}
}

// cacheAside 通用的缓存旁路读：WATCH 哨兵键，冷缓存时把 populate 的
// 全部写入和哨兵置位放进同一个 MULTI 提交，再执行 read；并发回填者
// 之间靠 WATCH 冲突收敛到一份一致的缓存。热缓存时直接 read。
func (s *Store) cacheAside(
	ctx context.Context,
	sentinel string,
	ttl time.Duration,
	populate func(pipe redis.Pipeliner) error,
	read func(tx *redis.Tx) error,
) error {
	return s.WithOptimisticTx(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, sentinel).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if err := populate(pipe); err != nil {
					return err
				}
				pipe.Set(ctx, sentinel, "1", ttl)
				return nil
			}); err != nil {
				return err
			}
		}
		return read(tx)
	}, sentinel)
}
