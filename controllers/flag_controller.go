package controllers

import (
	"github.com/gin-gonic/gin"

	"ADCTF/dto"
	"ADCTF/services"
	"ADCTF/utils"
)

// FlagController Flag 提交入口，是提交监听方到攻击处理器的薄适配层
type FlagController struct {
	attacks *services.AttackService
}

func NewFlagController(attacks *services.AttackService) *FlagController {
	return &FlagController{attacks: attacks}
}

// SubmitFlags 批量受理 Flag 提交，逐条返回结果
func (fc *FlagController) SubmitFlags(c *gin.Context) {
	token := c.GetHeader("X-Team-Token")
	if token == "" {
		utils.Error(c, 4001, "请求头中 X-Team-Token 为空")
		return
	}

	var req dto.SubmitFlagsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 1001, "参数无效: "+err.Error())
		return
	}

	results := make([]dto.FlagSubmitResult, 0, len(req.Flags))
	for _, flag := range req.Flags {
		r := fc.attacks.Submit(c.Request.Context(), token, flag)
		results = append(results, dto.FlagSubmitResult{
			Flag:    flag,
			Success: r.Success,
			Message: r.Message,
			Delta:   r.AttackerDelta,
		})
	}
	utils.Success(c, "success", results)
}
