package models

import (
	"time"
)

// TeamTaskStatus 对应 adctf_team_task_status 表，按 (team, task, round)
// 记录当轮状态。新回合的行从上一回合复制而来，计数器只增不减，
// 因此缺少事件不会把累计值清零。
type TeamTaskStatus struct {
	ID            uint64  `gorm:"primarykey" json:"-"`
	TeamID        uint32  `gorm:"not null;uniqueIndex:idx_team_task_round" json:"team_id"`
	TaskID        uint32  `gorm:"not null;uniqueIndex:idx_team_task_round" json:"task_id"`
	Round         int     `gorm:"not null;uniqueIndex:idx_team_task_round" json:"-"`
	Status        Status  `gorm:"size:16;not null" json:"status"`
	StolenCount   uint    `gorm:"not null" json:"stolen"`
	LostCount     uint    `gorm:"not null" json:"lost"`
	CheckPasses   uint    `gorm:"not null" json:"checks_passed"`
	CheckAttempts uint    `gorm:"not null" json:"checks"`
	Score         float64 `gorm:"not null" json:"score"`
	PublicMessage string  `gorm:"size:1024" json:"message"`
	// PrivateMessage 与 Command 仅限运维查看，不随 JSON 下发
	PrivateMessage string    `gorm:"size:1024" json:"-"`
	Command        string    `gorm:"size:1024" json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

func (TeamTaskStatus) TableName() string {
	return "adctf_team_task_status"
}
