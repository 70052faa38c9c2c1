package dto

import (
	"ADCTF/models"
)

// TaskStatusItem 记分板上单个服务的参赛方可见状态
type TaskStatusItem struct {
	TaskID  uint32        `json:"task_id"`
	Status  models.Status `json:"status"`
	Score   float64       `json:"score"`
	Stolen  uint          `json:"stolen"`
	Lost    uint          `json:"lost"`
	Checks  uint          `json:"checks"`
	Passed  uint          `json:"checks_passed"`
	Message string        `json:"message"`
}

// ScoreboardRow 记分板上的一支队伍
type ScoreboardRow struct {
	TeamID      uint32           `json:"team_id"`
	TeamName    string           `json:"team_name"`
	Highlighted bool             `json:"highlighted"`
	TotalScore  float64          `json:"total_score"`
	Tasks       []TaskStatusItem `json:"tasks"`
}

// Scoreboard 一次完整的记分板快照
type Scoreboard struct {
	Round int             `json:"round"`
	Rows  []ScoreboardRow `json:"rows"`
}
