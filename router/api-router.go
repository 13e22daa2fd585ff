package router

import (
	"github.com/lumigem/tripo-gateway/controller"
	"github.com/lumigem/tripo-gateway/middleware"

	"github.com/gin-gonic/gin"
)

func SetApiRouter(router *gin.Engine) {
	router.Use(middleware.CORS())
	apiRouter := router.Group("/api")
	apiRouter.Use(middleware.GlobalAPIRateLimit())
	{
		apiRouter.GET("/status", controller.GetStatus)

		generationRoute := apiRouter.Group("/generation")
		// 管理接口在全局限频之上再收紧一档，避免审计查询被刷
		generationRoute.Use(middleware.CriticalRateLimit(), middleware.AdminAuth())
		{
			generationRoute.GET("/", controller.GetAllGenerations)
			generationRoute.GET("/:id", controller.GetGenerationByTaskId)
		}
	}
}
