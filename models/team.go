package models

import (
	"time"
)

// Team 对应 adctf_team 表。Token 是队伍提交 Flag 时的身份凭证，
// 创建后不可变更；Active 用于软删除，保留历史记录的引用。
type Team struct {
	ID          uint32    `gorm:"primarykey" json:"id"`
	TeamName    string    `gorm:"size:100;unique;not null" json:"team_name"`
	Host        string    `gorm:"size:255;not null" json:"host"`
	Token       string    `gorm:"size:36;unique;not null" json:"-"`
	Active      bool      `gorm:"not null" json:"active"`
	Highlighted bool      `gorm:"not null" json:"highlighted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Team) TableName() string {
	return "adctf_team"
}
