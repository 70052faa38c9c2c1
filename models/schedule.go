package models

import (
	"time"
)

// Schedule 对应 adctf_schedule 表。LastRun 持久化落库，
// 进程重启后既不会重放已生效的调度，也不会漏掉未生效的。
type Schedule struct {
	ID        string    `gorm:"primarykey;size:64"`
	StartTime time.Time `gorm:"not null"`
	EndTime   *time.Time
	// Interval 为空表示一次性调度
	Interval *time.Duration `gorm:"column:interval_ns"`
	LastRun  *time.Time
}

func (Schedule) TableName() string {
	return "adctf_schedule"
}

// ShouldRun 判断当前时刻该调度是否到期。
// 已过期（到达 EndTime，或一次性调度已执行过）返回 false；
// 未到 StartTime 返回 false；从未执行过返回 true；
// 周期性调度满 Interval 后返回 true。
func (s Schedule) ShouldRun(now time.Time) bool {
	if s.EndTime != nil && !now.Before(*s.EndTime) {
		return false
	}
	if s.Interval == nil && s.LastRun != nil {
		return false
	}
	if now.Before(s.StartTime) {
		return false
	}
	if s.LastRun == nil {
		return true
	}
	return !s.LastRun.Add(*s.Interval).After(now)
}
