package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lumigem/tripo-gateway/common/config"
)

// AdminAuth 审计日志查询接口的令牌校验。ADMIN_TOKEN 未配置时直接拒绝，
// 避免裸奔着把用量数据暴露出去
func AdminAuth() func(c *gin.Context) {
	return func(c *gin.Context) {
		if config.AdminToken == "" {
			abortWithMessage(c, http.StatusForbidden, "admin endpoints are disabled: ADMIN_TOKEN is not configured")
			return
		}
		token := c.GetHeader("Authorization")
		token = strings.TrimPrefix(token, "Bearer ")
		if token == "" || token != config.AdminToken {
			abortWithMessage(c, http.StatusUnauthorized, "invalid admin token")
			return
		}
		c.Next()
	}
}
