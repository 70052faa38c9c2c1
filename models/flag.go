package models

import (
	"time"
)

// Flag 对应 adctf_flag 表。一条 Flag 一经签发即不可变，
// 通过 ID 或 Token 两种方式被引用。
type Flag struct {
	ID     uint64 `gorm:"primarykey" json:"id"`
	TeamID uint32 `gorm:"not null;index:idx_flag_round" json:"team_id"`
	TaskID uint32 `gorm:"not null;index:idx_flag_round" json:"task_id"`
	Round  int    `gorm:"not null;index:idx_flag_round" json:"round"`
	Token  string `gorm:"size:64;unique;not null" json:"flag"`
	// PublicData 参赛方可见的附加数据（如用户名），PrivateData 为
	// 检查器取回 Flag 所需的辅助数据，均不保证非空
	PublicData  string    `gorm:"size:1024" json:"public_data"`
	PrivateData string    `gorm:"size:1024" json:"private_data"`
	Place       uint      `gorm:"not null" json:"place"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Flag) TableName() string {
	return "adctf_flag"
}

// StolenFlag 对应 adctf_stolen_flag 表，(attacker, flag) 的存在即代表
// 这次窃取已被记录；唯一索引保证并发提交下至多记录一次。
type StolenFlag struct {
	ID         uint64 `gorm:"primarykey"`
	AttackerID uint32 `gorm:"not null;uniqueIndex:idx_attacker_flag"`
	FlagID     uint64 `gorm:"not null;uniqueIndex:idx_attacker_flag"`
	CreatedAt  time.Time
}

func (StolenFlag) TableName() string {
	return "adctf_stolen_flag"
}
