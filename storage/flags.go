package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm/clause"

	"ADCTF/models"
	"ADCTF/utils"
)

// GenerateFlag 生成一条未保存的 Flag：令牌为服务名首字母前缀加定长
// 随机负载，槽位与辅助数据由调用方（put 管线）补齐。
func (s *Store) GenerateFlag(task models.Task, teamID uint32, round int) models.Flag {
	return models.Flag{
		TeamID: teamID,
		TaskID: task.ID,
		Round:  round,
		Token:  utils.GenerateFlagToken(task.TaskName),
	}
}

// IssueFlag 持久化 Flag（取得 ID）后写入缓存：加入 (team, task, round)
// 索引集合，并建立 token→flag、id→flag 两条查找项。签发完成后该 Flag
// 即可被取回探测和回合推进选中。
func (s *Store) IssueFlag(ctx context.Context, flag *models.Flag) error {
	cfg, err := s.Config(ctx)
	if err != nil {
		return err
	}

	if err := s.db.Create(flag).Error; err != nil {
		return fmt.Errorf("persist flag: %w", err)
	}

	blob, err := json.Marshal(flag)
	if err != nil {
		return err
	}
	ttl := cfg.FlagCacheTTL()
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setKey := keyRoundFlags(flag.TeamID, flag.TaskID, flag.Round)
		pipe.SAdd(ctx, setKey, flag.ID)
		pipe.Expire(ctx, setKey, ttl)
		pipe.Set(ctx, keyFlagByToken(flag.Token), blob, ttl)
		pipe.Set(ctx, keyFlagByID(flag.ID), blob, ttl)
		return nil
	})
	return err
}

// populateFlags 把理论上仍可被窃取的全部 Flag（round ≥ current − lifetime）
// 从持久层回填到缓存管道里
func (s *Store) populateFlags(ctx context.Context, pipe redis.Pipeliner, cfg models.GameConfig, currentRound int) error {
	var flags []models.Flag
	if err := s.db.Where("round >= ?", currentRound-cfg.FlagLifetime).Find(&flags).Error; err != nil {
		return fmt.Errorf("load recent flags: %w", err)
	}

	ttl := cfg.FlagCacheTTL()
	for i := range flags {
		f := &flags[i]
		blob, err := json.Marshal(f)
		if err != nil {
			return err
		}
		setKey := keyRoundFlags(f.TeamID, f.TaskID, f.Round)
		pipe.SAdd(ctx, setKey, f.ID)
		pipe.Expire(ctx, setKey, ttl)
		pipe.Set(ctx, keyFlagByToken(f.Token), blob, ttl)
		pipe.Set(ctx, keyFlagByID(f.ID), blob, ttl)
	}
	return nil
}

// flagCacheAside 近期 Flag 全量缓存的旁路读
func (s *Store) flagCacheAside(ctx context.Context, currentRound int, read func(tx *redis.Tx) error) error {
	cfg, err := s.Config(ctx)
	if err != nil {
		return err
	}
	return s.cacheAside(ctx, keyFlagsCached, cfg.FlagCacheTTL(),
		func(pipe redis.Pipeliner) error {
			return s.populateFlags(ctx, pipe, cfg, currentRound)
		},
		read,
	)
}

// FlagByToken 按令牌查 Flag，未知令牌返回 ErrFlagNotFound
func (s *Store) FlagByToken(ctx context.Context, token string, currentRound int) (models.Flag, error) {
	return s.flagLookup(ctx, keyFlagByToken(token), currentRound)
}

// FlagByID 按 ID 查 Flag
func (s *Store) FlagByID(ctx context.Context, id uint64, currentRound int) (models.Flag, error) {
	return s.flagLookup(ctx, keyFlagByID(id), currentRound)
}

func (s *Store) flagLookup(ctx context.Context, key string, currentRound int) (models.Flag, error) {
	var raw string
	err := s.flagCacheAside(ctx, currentRound, func(tx *redis.Tx) error {
		v, err := tx.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err == redis.Nil {
		return models.Flag{}, ErrFlagNotFound
	}
	if err != nil {
		return models.Flag{}, err
	}

	var flag models.Flag
	if err := json.Unmarshal([]byte(raw), &flag); err != nil {
		return models.Flag{}, fmt.Errorf("decode cached flag: %w", err)
	}
	return flag, nil
}

// RandomFlag 在 (team, task, round) 的签发集合里均匀随机取一条；
// 集合为空返回 (nil, nil)，这是一次良性未命中而非错误，调用方
// （get 管线）应以解释性消息带过。
func (s *Store) RandomFlag(ctx context.Context, teamID, taskID uint32, round, currentRound int) (*models.Flag, error) {
	var raw string
	missing := false
	err := s.flagCacheAside(ctx, currentRound, func(tx *redis.Tx) error {
		id, err := tx.SRandMember(ctx, keyRoundFlags(teamID, taskID, round)).Result()
		if err == redis.Nil {
			missing = true
			return nil
		}
		if err != nil {
			return err
		}
		idNum, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt flag id %q in round set: %w", id, err)
		}
		v, err := tx.Get(ctx, keyFlagByID(idNum)).Result()
		if err == redis.Nil {
			missing = true
			return nil
		}
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if missing {
		return nil, nil
	}

	var flag models.Flag
	if err := json.Unmarshal([]byte(raw), &flag); err != nil {
		return nil, fmt.Errorf("decode cached flag: %w", err)
	}
	return &flag, nil
}

// ValidateTheft 校验并记录一次窃取。失败分四类：未知令牌、过期、
// 自己的 Flag、重复窃取，全部以哨兵错误返回，绝不崩溃。
// 首次窃取的判定依赖对攻击方 stolen 集合的乐观事务：WATCH 下
// SADD 成功即首杀，集合已含该 ID 则判重复；攻守双方的偷取/丢失
// 计数在同一个 MULTI 里一并更新。
func (s *Store) ValidateTheft(ctx context.Context, token string, attackerID uint32, currentRound int) (models.Flag, error) {
	flag, err := s.FlagByToken(ctx, token, currentRound)
	if err != nil {
		return models.Flag{}, err
	}

	cfg, err := s.Config(ctx)
	if err != nil {
		return models.Flag{}, err
	}
	if currentRound-flag.Round > cfg.FlagLifetime {
		return models.Flag{}, ErrFlagTooOld
	}
	if flag.TeamID == attackerID {
		return models.Flag{}, ErrOwnFlag
	}

	stolenKey := keyStolenSet(attackerID)
	firstTheft := false
	err = s.WithOptimisticTx(ctx, func(tx *redis.Tx) error {
		isMember, err := tx.SIsMember(ctx, stolenKey, flag.ID).Result()
		if err != nil {
			return err
		}
		if isMember {
			firstTheft = false
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, stolenKey, flag.ID)
			pipe.Expire(ctx, stolenKey, cfg.FlagCacheTTL())
			return nil
		})
		if err != nil {
			return err
		}
		firstTheft = true
		return nil
	}, stolenKey)
	if err != nil {
		return models.Flag{}, err
	}
	if !firstTheft {
		return models.Flag{}, ErrAlreadyStolen
	}

	// 持久化窃取记录；唯一索引兜底，冲突时静默忽略
	record := models.StolenFlag{AttackerID: attackerID, FlagID: flag.ID}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return models.Flag{}, fmt.Errorf("persist stolen record: %w", err)
	}
	return flag, nil
}
