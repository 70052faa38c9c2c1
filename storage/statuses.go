package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ADCTF/models"
)

// InitRound 为指定回合建立所有 (team, task) 的状态行。回合 0 以
// DefaultScore 起始；之后的回合整行从上一回合复制，保证累计计数
// 不因回合切换而清零。已存在的行保持不动（重启幂等）。
func (s *Store) InitRound(ctx context.Context, round int) error {
	teams, err := s.Teams(ctx)
	if err != nil {
		return err
	}
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, team := range teams {
			for _, task := range tasks {
				var existing models.TeamTaskStatus
				err := tx.Where("team_id = ? AND task_id = ? AND round = ?", team.ID, task.ID, round).
					First(&existing).Error
				if err == nil {
					continue
				}
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}

				row := models.TeamTaskStatus{
					TeamID: team.ID,
					TaskID: task.ID,
					Round:  round,
					Status: models.StatusCheckFailed,
					Score:  task.DefaultScore,
				}
				if round > 0 {
					var prev models.TeamTaskStatus
					err := tx.Where("team_id = ? AND task_id = ? AND round = ?", team.ID, task.ID, round-1).
						First(&prev).Error
					if err == nil {
						row.Status = prev.Status
						row.StolenCount = prev.StolenCount
						row.LostCount = prev.LostCount
						row.CheckPasses = prev.CheckPasses
						row.CheckAttempts = prev.CheckAttempts
						row.Score = prev.Score
						row.PublicMessage = prev.PublicMessage
						row.PrivateMessage = prev.PrivateMessage
						row.Command = prev.Command
					} else if !errors.Is(err, gorm.ErrRecordNotFound) {
						return err
					}
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ApplyVerdict 把一轮探测的聚合结论写进 (team, task, round) 状态行：
// 状态码、最新消息、尝试计数，UP 时再加通过计数。
func (s *Store) ApplyVerdict(ctx context.Context, teamID, taskID uint32, round int, v models.Verdict) error {
	updates := map[string]interface{}{
		"status":          v.Status,
		"public_message":  v.PublicMessage,
		"private_message": v.PrivateMessage,
		"command":         v.Command,
		"check_attempts":  gorm.Expr("check_attempts + 1"),
	}
	if v.OK() {
		updates["check_passes"] = gorm.Expr("check_passes + 1")
	}

	res := s.db.Model(&models.TeamTaskStatus{}).
		Where("team_id = ? AND task_id = ? AND round = ?", teamID, taskID, round).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("apply verdict: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// 行可能尚未随回合初始化建出（迟到的上一回合结论），补建一行
		row := models.TeamTaskStatus{
			TeamID:         teamID,
			TaskID:         taskID,
			Round:          round,
			Status:         v.Status,
			CheckAttempts:  1,
			PublicMessage:  v.PublicMessage,
			PrivateMessage: v.PrivateMessage,
			Command:        v.Command,
		}
		if v.OK() {
			row.CheckPasses = 1
		}
		return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	}
	return nil
}

// TaskScore 读取 (team, task) 在指定回合的当前得分
func (s *Store) TaskScore(ctx context.Context, teamID, taskID uint32, round int) (float64, error) {
	var row models.TeamTaskStatus
	err := s.db.Where("team_id = ? AND task_id = ? AND round = ?", teamID, taskID, round).
		First(&row).Error
	if err != nil {
		return 0, fmt.Errorf("load score for team %d task %d round %d: %w", teamID, taskID, round, err)
	}
	return row.Score, nil
}

// ApplyAttack 落账一次成功窃取：攻守双方的得分增量写到当前回合及
// 其后所有已初始化的回合行（不回溯历史回合），同时推进当回合的
// 偷取/丢失计数。必须在攻守双方的有序锁内调用。
func (s *Store) ApplyAttack(ctx context.Context, attackerID uint32, flag models.Flag, round int, attackerDelta, victimDelta float64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TeamTaskStatus{}).
			Where("team_id = ? AND task_id = ? AND round >= ?", attackerID, flag.TaskID, round).
			Update("score", gorm.Expr("score + ?", attackerDelta)).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.TeamTaskStatus{}).
			Where("team_id = ? AND task_id = ? AND round >= ?", flag.TeamID, flag.TaskID, round).
			Update("score", gorm.Expr("score + ?", victimDelta)).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.TeamTaskStatus{}).
			Where("team_id = ? AND task_id = ? AND round >= ?", attackerID, flag.TaskID, round).
			Update("stolen_count", gorm.Expr("stolen_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.TeamTaskStatus{}).
			Where("team_id = ? AND task_id = ? AND round >= ?", flag.TeamID, flag.TaskID, round).
			Update("lost_count", gorm.Expr("lost_count + 1")).Error
	})
}

// RoundStatuses 取某回合全部状态行（记分板快照用）
func (s *Store) RoundStatuses(ctx context.Context, round int) ([]models.TeamTaskStatus, error) {
	var rows []models.TeamTaskStatus
	err := s.db.Where("round = ?", round).Order("team_id, task_id").Find(&rows).Error
	return rows, err
}
