package models

import (
	"time"
)

// GameMode 决定回合推进方式
type GameMode string

const (
	// GameModeClassic 全局统一回合：put 与 check+get 同节奏
	GameModeClassic GameMode = "classic"
	// GameModeBlitz 各服务按自身 CheckPeriod 独立触发 check+get
	GameModeBlitz GameMode = "blitz"
)

// GameConfig 对应 adctf_game_config 单例表，读多写少，整体缓存。
type GameConfig struct {
	ID uint32 `gorm:"primarykey" json:"id"`
	// FlagLifetime 以回合数计的 Flag 存活期
	FlagLifetime int `gorm:"not null" json:"flag_lifetime"`
	// RoundTime 回合时长（秒）
	RoundTime   uint      `gorm:"not null" json:"round_time"`
	Hardness    float64   `gorm:"not null" json:"hardness"`
	Inflation   bool      `gorm:"not null" json:"inflation"`
	GameMode    GameMode  `gorm:"size:16;not null" json:"mode"`
	StartTime   time.Time `gorm:"not null" json:"start_time"`
	RealRound   int       `gorm:"not null" json:"real_round"`
	GameRunning bool      `gorm:"not null" json:"game_running"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (GameConfig) TableName() string {
	return "adctf_game_config"
}

// RoundDuration 返回回合时长
func (g GameConfig) RoundDuration() time.Duration {
	return time.Duration(g.RoundTime) * time.Second
}

// FlagCacheTTL 缓存条目的过期时间，取存活窗口的两倍作为安全余量
func (g GameConfig) FlagCacheTTL() time.Duration {
	return time.Duration(g.FlagLifetime) * g.RoundDuration() * 2
}
