package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ADCTF/models"
	"ADCTF/rating"
	"ADCTF/storage"
)

const teamLockTTL = 10 * time.Second

// AttackService 受理 Flag 提交：校验窃取、计算评分增量、落账并
// 广播实时事件。可安全地被任意多个提交方并发调用。
type AttackService struct {
	st *storage.Store
}

func NewAttackService(st *storage.Store) *AttackService {
	return &AttackService{st: st}
}

// Submit 处理一次 Flag 提交。所有校验失败都折算成对参赛方友好的
// 消息返回，绝不让 handler 崩溃；内部错误只在日志留痕。
func (a *AttackService) Submit(ctx context.Context, teamToken, flagToken string) models.AttackResult {
	attacker, err := a.st.TeamByToken(ctx, teamToken)
	if err != nil {
		if !errors.Is(err, storage.ErrTeamNotFound) {
			log.Printf("resolve team token: %v", err)
		}
		return models.AttackResult{Success: false, Message: "Invalid team token"}
	}

	cfg, err := a.st.Config(ctx)
	if err != nil {
		return a.internalError(attacker.ID, err)
	}
	if !cfg.GameRunning {
		return models.AttackResult{
			AttackerID: attacker.ID,
			Success:    false,
			Message:    "Game is not running",
		}
	}

	round, err := a.st.CurrentRound(ctx)
	if err != nil {
		return a.internalError(attacker.ID, err)
	}

	flag, err := a.st.ValidateTheft(ctx, flagToken, attacker.ID, round)
	if err != nil {
		return a.rejection(attacker.ID, err)
	}

	result, err := a.settle(ctx, attacker, flag, round, cfg)
	if err != nil {
		return a.internalError(attacker.ID, err)
	}

	a.notify(ctx, result)
	return result
}

// settle 在攻守双方的有序锁内读分、算增量、落账。锁按队伍 ID
// 从小到大获取，与攻守角色无关，两队互攻时不会环形等待。
func (a *AttackService) settle(ctx context.Context, attacker models.Team, flag models.Flag, round int, cfg models.GameConfig) (models.AttackResult, error) {
	first, second := attacker.ID, flag.TeamID
	if first > second {
		first, second = second, first
	}

	lockCtx, cancel := context.WithTimeout(ctx, teamLockTTL)
	defer cancel()

	firstLock, err := a.st.AcquireLock(lockCtx, storage.TeamLockKey(first), teamLockTTL)
	if err != nil {
		return models.AttackResult{}, fmt.Errorf("lock team %d: %w", first, err)
	}
	defer func() {
		if err := firstLock.Release(ctx); err != nil {
			log.Printf("release lock of team %d: %v", first, err)
		}
	}()

	secondLock, err := a.st.AcquireLock(lockCtx, storage.TeamLockKey(second), teamLockTTL)
	if err != nil {
		return models.AttackResult{}, fmt.Errorf("lock team %d: %w", second, err)
	}
	defer func() {
		if err := secondLock.Release(ctx); err != nil {
			log.Printf("release lock of team %d: %v", second, err)
		}
	}()

	attackerScore, err := a.st.TaskScore(ctx, attacker.ID, flag.TaskID, round)
	if err != nil {
		return models.AttackResult{}, err
	}
	victimScore, err := a.st.TaskScore(ctx, flag.TeamID, flag.TaskID, round)
	if err != nil {
		return models.AttackResult{}, err
	}

	attackerDelta, victimDelta := rating.Calculate(attackerScore, victimScore, cfg.Hardness, cfg.Inflation)
	if err := a.st.ApplyAttack(ctx, attacker.ID, flag, round, attackerDelta, victimDelta); err != nil {
		return models.AttackResult{}, err
	}

	return models.AttackResult{
		AttackerID:    attacker.ID,
		VictimID:      flag.TeamID,
		TaskID:        flag.TaskID,
		Success:       true,
		Message:       fmt.Sprintf("Flag accepted! Earned %.2f flag points!", attackerDelta),
		AttackerDelta: attackerDelta,
		VictimDelta:   victimDelta,
	}, nil
}

// rejection 把四类校验失败翻译成参赛方可读的消息
func (a *AttackService) rejection(attackerID uint32, err error) models.AttackResult {
	msg := "Flag is invalid"
	switch {
	case errors.Is(err, storage.ErrFlagNotFound):
		msg = "Flag is invalid or too old"
	case errors.Is(err, storage.ErrFlagTooOld):
		msg = "Flag is too old"
	case errors.Is(err, storage.ErrOwnFlag):
		msg = "Flag is your own"
	case errors.Is(err, storage.ErrAlreadyStolen):
		msg = "Flag already stolen"
	default:
		log.Printf("validate theft: %v", err)
		msg = "Temporary error, try again later"
	}
	return models.AttackResult{AttackerID: attackerID, Success: false, Message: msg}
}

func (a *AttackService) internalError(attackerID uint32, err error) models.AttackResult {
	log.Printf("attack submission failed: %v", err)
	return models.AttackResult{
		AttackerID: attackerID,
		Success:    false,
		Message:    "Temporary error, try again later",
	}
}

// notify 向实时订阅方广播窃取事件，失败只记日志
func (a *AttackService) notify(ctx context.Context, result models.AttackResult) {
	blob, err := json.Marshal(result)
	if err != nil {
		log.Printf("encode attack event: %v", err)
		return
	}
	if err := a.st.Redis().Publish(ctx, storage.ChannelAttacks, blob).Err(); err != nil {
		log.Printf("publish attack event: %v", err)
	}
}
