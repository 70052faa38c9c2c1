package dto

// SubmitFlagsReq 批量提交的 Flag 令牌列表
type SubmitFlagsReq struct {
	Flags []string `json:"flags" binding:"required,min=1"`
}

// FlagSubmitResult 单条 Flag 的受理结果
type FlagSubmitResult struct {
	Flag    string  `json:"flag"`
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Delta   float64 `json:"delta"`
}
