package services

import (
	"context"
	"fmt"
	"time"

	"ADCTF/models"
	"ADCTF/scheduler"
	"ADCTF/storage"
)

// RegisterGameSchedules 注册比赛的标准调度：
//
//	start-game    开赛时刻的一次性调度；
//	round-advance 每 round_time 推进一次回合；
//	blitz 模式下另为每个设置了 CheckPeriod 的服务注册独立周期的
//	扇出调度，把签发节奏和验证节奏解耦。
func RegisterGameSchedules(ctx context.Context, sch *scheduler.Scheduler, rs *RoundService, st *storage.Store) error {
	cfg, err := st.Config(ctx)
	if err != nil {
		return err
	}

	if err := sch.Register(ctx, models.Schedule{
		ID:        "start-game",
		StartTime: cfg.StartTime,
	}, rs.StartGame); err != nil {
		return err
	}

	roundInterval := cfg.RoundDuration()
	if err := sch.Register(ctx, models.Schedule{
		ID:        "round-advance",
		StartTime: cfg.StartTime.Add(roundInterval),
		Interval:  &roundInterval,
	}, rs.AdvanceRound); err != nil {
		return err
	}

	if cfg.GameMode != models.GameModeBlitz {
		return nil
	}

	tasks, err := st.Tasks(ctx)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if task.CheckPeriod == 0 {
			continue
		}
		taskID := task.ID
		interval := time.Duration(task.CheckPeriod) * time.Second
		if err := sch.Register(ctx, models.Schedule{
			ID:        fmt.Sprintf("task-check-%d", taskID),
			StartTime: cfg.StartTime.Add(interval),
			Interval:  &interval,
		}, func(ctx context.Context) error {
			return rs.FanOutTask(ctx, taskID)
		}); err != nil {
			return err
		}
	}
	return nil
}
