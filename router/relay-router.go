package router

import (
	"github.com/gin-gonic/gin"
	"github.com/lumigem/tripo-gateway/controller"
	"github.com/lumigem/tripo-gateway/middleware"
)

func SetRelayRouter(router *gin.Engine) {
	router.Use(middleware.CORS())
	tripoRouter := router.Group("/tripo")
	tripoRouter.Use(middleware.RelayPanicRecover())
	{
		// 上传+建任务合成一次调用，按 IP 限频（每次都会产生供应商计费任务）
		tripoRouter.POST("/image-to-3d", middleware.UploadRateLimit(), controller.RelayTripoImageTo3D)
		// 状态查询走轮询，单独留在全局限频下
		tripoRouter.GET("/task/:id", controller.GetTripoTask)
	}
}
