package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ADCTF/models"
)

// LoadSchedule 读取调度的持久化状态；不存在时创建记录并返回传入的
// 定义，保证 LastRun 在进程重启间延续。
func (s *Store) LoadSchedule(ctx context.Context, def models.Schedule) (models.Schedule, error) {
	var row models.Schedule
	err := s.db.Where("id = ?", def.ID).First(&row).Error
	if err == nil {
		// 起止与周期以代码里的定义为准，只有 LastRun 取持久化值
		def.LastRun = row.LastRun
		return def, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Schedule{}, fmt.Errorf("load schedule %s: %w", def.ID, err)
	}
	if err := s.db.Create(&def).Error; err != nil {
		return models.Schedule{}, fmt.Errorf("create schedule %s: %w", def.ID, err)
	}
	return def, nil
}

// SaveScheduleRun 持久化调度的最近执行时间
func (s *Store) SaveScheduleRun(ctx context.Context, id string, ranAt time.Time) error {
	return s.db.Model(&models.Schedule{}).
		Where("id = ?", id).
		Update("last_run", ranAt).Error
}
