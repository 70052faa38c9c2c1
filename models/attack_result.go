package models

// AttackResult 是一次 Flag 提交的处理结果，仅用于实时通知与指标，
// 不落库（团队行自身携带得分日志）。
type AttackResult struct {
	AttackerID    uint32  `json:"attacker_id"`
	VictimID      uint32  `json:"victim_id"`
	TaskID        uint32  `json:"task_id"`
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	AttackerDelta float64 `json:"attacker_delta"`
	VictimDelta   float64 `json:"victim_delta"`
}
