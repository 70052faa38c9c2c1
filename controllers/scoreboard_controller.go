package controllers

import (
	"github.com/gin-gonic/gin"

	"ADCTF/storage"
	"ADCTF/utils"
)

// ScoreboardController 记分板与比赛状态的只读查询
type ScoreboardController struct {
	st *storage.Store
}

func NewScoreboardController(st *storage.Store) *ScoreboardController {
	return &ScoreboardController{st: st}
}

// GetScoreboard 返回最近一次发布的记分板快照
func (sc *ScoreboardController) GetScoreboard(c *gin.Context) {
	snapshot, err := sc.st.Scoreboard(c.Request.Context())
	if err != nil {
		utils.Error(c, 5000, "读取记分板失败")
		return
	}
	utils.Success(c, "success", snapshot)
}

// GetGameStatus 返回参赛方可见的比赛参数
func (sc *ScoreboardController) GetGameStatus(c *gin.Context) {
	cfg, err := sc.st.Config(c.Request.Context())
	if err != nil {
		utils.Error(c, 5000, "读取比赛配置失败")
		return
	}
	utils.Success(c, "success", gin.H{
		"round":         cfg.RealRound,
		"round_time":    cfg.RoundTime,
		"flag_lifetime": cfg.FlagLifetime,
		"mode":          cfg.GameMode,
		"running":       cfg.GameRunning,
		"start_time":    cfg.StartTime,
	})
}
