package models

// Action 表示一次探测的动作类型
type Action string

const (
	ActionCheck Action = "check"
	ActionPut   Action = "put"
	ActionGet   Action = "get"
)

// Status 表示一次探测的结论，与检查器退出码一一对应
type Status string

const (
	StatusUp          Status = "UP"
	StatusCorrupt     Status = "CORRUPT"
	StatusMumble      Status = "MUMBLE"
	StatusDown        Status = "DOWN"
	StatusCheckFailed Status = "CHECK_FAILED"
)

// 检查器退出码约定
const (
	ExitCodeUp          = 101
	ExitCodeCorrupt     = 102
	ExitCodeMumble      = 103
	ExitCodeDown        = 104
	ExitCodeCheckFailed = 110
)

// StatusFromExitCode 将检查器退出码映射为 Status，
// 未知退出码一律按 CHECK_FAILED 处理
func StatusFromExitCode(code int) Status {
	switch code {
	case ExitCodeUp:
		return StatusUp
	case ExitCodeCorrupt:
		return StatusCorrupt
	case ExitCodeMumble:
		return StatusMumble
	case ExitCodeDown:
		return StatusDown
	default:
		return StatusCheckFailed
	}
}

// Verdict 是一次探测调用的结构化结果。PublicMessage 对参赛方可见，
// PrivateMessage 仅供运维排查，二者绝不混用。
type Verdict struct {
	Action         Action `json:"action"`
	Status         Status `json:"status"`
	PublicMessage  string `json:"public_message"`
	PrivateMessage string `json:"-"`
	Command        string `json:"-"`
}

// OK 判断该结论是否为 UP
func (v Verdict) OK() bool {
	return v.Status == StatusUp
}

// NewVerdict 构造一条探测结论
func NewVerdict(action Action, status Status, public, private, command string) Verdict {
	return Verdict{
		Action:         action,
		Status:         status,
		PublicMessage:  public,
		PrivateMessage: private,
		Command:        command,
	}
}
