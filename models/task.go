package models

import (
	"time"
)

// CheckerType 决定探测程序的调用方式
type CheckerType string

const (
	// CheckerTypeExternal 以子进程方式调用外部可执行文件（默认）
	CheckerTypeExternal CheckerType = "external"
	// CheckerTypeEmbedded 调用进程内注册的检查模块，Checker 字段为模块名
	CheckerTypeEmbedded CheckerType = "embedded"
)

// Task 对应 adctf_task 表，描述一个被计分的靶机服务及其探测配置。
type Task struct {
	ID             uint32      `gorm:"primarykey" json:"id"`
	TaskName       string      `gorm:"size:100;unique;not null" json:"task_name"`
	Checker        string      `gorm:"size:255;not null" json:"checker"`
	CheckerEnvPath string      `gorm:"size:255" json:"checker_env_path"`
	CheckerType    CheckerType `gorm:"size:16;not null" json:"checker_type"`
	CheckerTimeout uint        `gorm:"not null" json:"checker_timeout"`
	Gets           uint        `gorm:"not null" json:"gets"`
	Puts           uint        `gorm:"not null" json:"puts"`
	Places         uint        `gorm:"not null" json:"places"`
	// 检查器能力标签：put 是否通过 stdout 返回新的 flag id、
	// 是否产出参赛方可见的公开数据
	CheckerReturnsFlagID      bool    `gorm:"not null" json:"checker_returns_flag_id"`
	CheckerProvidesPublicData bool    `gorm:"not null" json:"checker_provides_public_data"`
	DefaultScore              float64 `gorm:"not null" json:"default_score"`
	// CheckPeriod 为 blitz 模式下该服务独立的 check+get 周期（秒），
	// 0 表示跟随全局回合节奏
	CheckPeriod uint      `gorm:"not null" json:"check_period"`
	Active      bool      `gorm:"not null" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Task) TableName() string {
	return "adctf_task"
}

// Timeout 返回探测的软超时时长
func (t Task) Timeout() time.Duration {
	return time.Duration(t.CheckerTimeout) * time.Second
}
