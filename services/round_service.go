package services

import (
	"context"
	"fmt"
	"log"

	"ADCTF/checker"
	"ADCTF/dto"
	"ADCTF/models"
	"ADCTF/storage"
)

// RoundService 负责比赛生命周期：开赛初始化、回合推进、
// 记分板快照发布与探测任务扇出。
type RoundService struct {
	st   *storage.Store
	pool *checker.Pool
}

func NewRoundService(st *storage.Store, pool *checker.Pool) *RoundService {
	return &RoundService{st: st, pool: pool}
}

// StartGame 开赛：一次性分布式锁防止多个 worker 的就绪事件竞争
// 重复初始化。抢不到锁说明别人已在初始化，直接返回。
func (r *RoundService) StartGame(ctx context.Context) error {
	cfg, err := r.st.Config(ctx)
	if err != nil {
		return err
	}
	if cfg.GameRunning {
		return nil
	}

	lock, err := r.st.GameStartLock(ctx)
	if err != nil {
		return err
	}
	if lock == nil {
		return nil
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			log.Printf("release game start lock: %v", err)
		}
	}()

	if err := r.st.InitRound(ctx, 0); err != nil {
		return fmt.Errorf("init round 0: %w", err)
	}
	if err := r.st.SetGameRunning(ctx, true); err != nil {
		return err
	}
	log.Println("game started")
	return nil
}

// AdvanceRound 推进回合：回合号单点自增，新回合状态行从上一回合
// 结转，随后发布记分板快照。classic 模式在此为每个 (team, task)
// 扇出全量管线；blitz 模式的签发仍在此扇出，取回验证交给各服务
// 按 CheckPeriod 独立调度。不等待上一回合尚未完成的管线。
func (r *RoundService) AdvanceRound(ctx context.Context) error {
	cfg, err := r.st.Config(ctx)
	if err != nil {
		return err
	}
	if !cfg.GameRunning {
		return nil
	}

	round, err := r.st.IncrementRound(ctx)
	if err != nil {
		return err
	}
	if err := r.st.InitRound(ctx, round); err != nil {
		return fmt.Errorf("init round %d: %w", round, err)
	}
	if err := r.PublishScoreboard(ctx, round); err != nil {
		log.Printf("publish scoreboard for round %d: %v", round, err)
	}

	log.Printf("advanced to round %d", round)
	return r.fanOut(ctx, round, cfg.GameMode)
}

// FanOutTask blitz 模式下按单个服务自己的周期扇出取回验证。
// 签发已由回合推进承担，这里只跑 check+get。
func (r *RoundService) FanOutTask(ctx context.Context, taskID uint32) error {
	cfg, err := r.st.Config(ctx)
	if err != nil {
		return err
	}
	if !cfg.GameRunning {
		return nil
	}
	round, err := r.st.CurrentRound(ctx)
	if err != nil {
		return err
	}
	task, err := r.st.TaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	teams, err := r.st.Teams(ctx)
	if err != nil {
		return err
	}
	for _, team := range teams {
		r.pool.Submit(checker.Job{Team: team, Task: task, Round: round, Mode: checker.ModeGet})
	}
	return nil
}

// fanOut 为每个在役 (team, task) 投递一个管线任务。blitz 模式下
// 设置了 CheckPeriod 的服务只签发，取回留给它自己的调度；
// CheckPeriod 为 0 的服务仍跟随回合节奏跑全量。
func (r *RoundService) fanOut(ctx context.Context, round int, gameMode models.GameMode) error {
	teams, err := r.st.Teams(ctx)
	if err != nil {
		return err
	}
	tasks, err := r.st.Tasks(ctx)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		mode := checker.ModeFull
		if gameMode == models.GameModeBlitz && task.CheckPeriod > 0 {
			mode = checker.ModePut
		}
		for _, team := range teams {
			r.pool.Submit(checker.Job{Team: team, Task: task, Round: round, Mode: mode})
		}
	}
	return nil
}

// PublishScoreboard 用指定回合的状态行构建快照，写缓存并广播
func (r *RoundService) PublishScoreboard(ctx context.Context, round int) error {
	teams, err := r.st.Teams(ctx)
	if err != nil {
		return err
	}
	rows, err := r.st.RoundStatuses(ctx, round)
	if err != nil {
		return err
	}

	byTeam := make(map[uint32][]models.TeamTaskStatus)
	for _, row := range rows {
		byTeam[row.TeamID] = append(byTeam[row.TeamID], row)
	}

	board := dto.Scoreboard{Round: round}
	for _, team := range teams {
		row := dto.ScoreboardRow{
			TeamID:      team.ID,
			TeamName:    team.TeamName,
			Highlighted: team.Highlighted,
		}
		for _, st := range byTeam[team.ID] {
			row.TotalScore += st.Score
			row.Tasks = append(row.Tasks, dto.TaskStatusItem{
				TaskID:  st.TaskID,
				Status:  st.Status,
				Score:   st.Score,
				Stolen:  st.StolenCount,
				Lost:    st.LostCount,
				Checks:  st.CheckAttempts,
				Passed:  st.CheckPasses,
				Message: st.PublicMessage,
			})
		}
		board.Rows = append(board.Rows, row)
	}
	return r.st.SaveScoreboard(ctx, board)
}
