package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ADCTF/models"
)

// configCacheTTL 配置缓存的兜底过期时间；配置变更路径会主动失效，
// TTL 只挡异常路径
const configCacheTTL = 5 * time.Minute

// Config 读取全局配置（缓存旁路）
func (s *Store) Config(ctx context.Context) (models.GameConfig, error) {
	var raw string
	err := s.cacheAside(ctx, keyConfigCached, configCacheTTL,
		func(pipe redis.Pipeliner) error {
			var cfg models.GameConfig
			if err := s.db.First(&cfg).Error; err != nil {
				return fmt.Errorf("load game config: %w", err)
			}
			blob, err := json.Marshal(cfg)
			if err != nil {
				return err
			}
			pipe.Set(ctx, keyConfig, blob, configCacheTTL)
			return nil
		},
		func(tx *redis.Tx) error {
			v, err := tx.Get(ctx, keyConfig).Result()
			if err != nil {
				return err
			}
			raw = v
			return nil
		},
	)
	if err != nil {
		return models.GameConfig{}, err
	}

	var cfg models.GameConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return models.GameConfig{}, fmt.Errorf("decode cached config: %w", err)
	}
	return cfg, nil
}

func (s *Store) invalidateConfig(ctx context.Context) error {
	return s.rdb.Del(ctx, keyConfigCached, keyConfig).Err()
}

// CurrentRound 当前真实回合号。回合号只有调度器单点写入，读侧直接
// 取计数键，未初始化时回落到配置快照。
func (s *Store) CurrentRound(ctx context.Context) (int, error) {
	v, err := s.rdb.Get(ctx, keyCurrentRound).Result()
	if err == nil {
		return strconv.Atoi(v)
	}
	if err != redis.Nil {
		return 0, err
	}
	cfg, err := s.Config(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.RealRound, nil
}

// IncrementRound 推进回合号并落库，返回新回合。仅允许调度器调用。
func (s *Store) IncrementRound(ctx context.Context) (int, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return 0, err
	}
	newRound := cfg.RealRound + 1

	if err := s.db.Model(&models.GameConfig{}).
		Where("id = ?", cfg.ID).
		Update("real_round", newRound).Error; err != nil {
		return 0, fmt.Errorf("persist round %d: %w", newRound, err)
	}
	if err := s.rdb.Set(ctx, keyCurrentRound, newRound, 0).Err(); err != nil {
		return 0, err
	}
	return newRound, s.invalidateConfig(ctx)
}

// SetGameRunning 标记比赛开始/结束并同步回合计数键
func (s *Store) SetGameRunning(ctx context.Context, running bool) error {
	cfg, err := s.Config(ctx)
	if err != nil {
		return err
	}
	if err := s.db.Model(&models.GameConfig{}).
		Where("id = ?", cfg.ID).
		Update("game_running", running).Error; err != nil {
		return fmt.Errorf("persist game_running: %w", err)
	}
	if running {
		if err := s.rdb.Set(ctx, keyCurrentRound, cfg.RealRound, 0).Err(); err != nil {
			return err
		}
	}
	return s.invalidateConfig(ctx)
}

// SaveScoreboard 发布记分板快照：写缓存键并向订阅方广播
func (s *Store) SaveScoreboard(ctx context.Context, snapshot interface{}) error {
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, keyScoreboard, blob, 0).Err(); err != nil {
		return err
	}
	return s.rdb.Publish(ctx, ChannelScoreboard, blob).Err()
}

// Scoreboard 读取最近一次发布的记分板快照
func (s *Store) Scoreboard(ctx context.Context) (json.RawMessage, error) {
	v, err := s.rdb.Get(ctx, keyScoreboard).Bytes()
	if err == redis.Nil {
		return json.RawMessage("{}"), nil
	}
	return v, err
}
