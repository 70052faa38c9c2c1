package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ADCTF/controllers"
)

// SetupRouter 只暴露引擎必需的对外接口：Flag 提交与只读查询。
// 管理后台不在本进程内。
func SetupRouter(fc *controllers.FlagController, sc *controllers.ScoreboardController) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		apiV1.PUT("/flags", fc.SubmitFlags)
		apiV1.GET("/scoreboard", sc.GetScoreboard)
		apiV1.GET("/status", sc.GetGameStatus)
	}

	return r
}
