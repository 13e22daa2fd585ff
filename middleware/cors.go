package middleware

import (
	"github.com/gin-gonic/gin"
	cors "github.com/rs/cors/wrapper/gin"

	"github.com/lumigem/tripo-gateway/common/config"
	"github.com/lumigem/tripo-gateway/common/logger"
)

// CORS 默认放开所有来源（SDK 会被任意店面前端嵌入），
// 配了 CORS_ALLOW_ORIGINS 则只放白名单。网关只有 GET/POST 两类接口
func CORS() gin.HandlerFunc {
	options := cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", logger.RequestIdKey},
		ExposedHeaders: []string{logger.RequestIdKey},
	}
	if len(config.CORSAllowOrigins) > 0 {
		options.AllowedOrigins = config.CORSAllowOrigins
		options.AllowCredentials = true
	} else {
		options.AllowOriginFunc = func(origin string) bool {
			return true
		}
	}
	return cors.New(options)
}
