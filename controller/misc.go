package controller

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/lumigem/tripo-gateway/common"
	"github.com/lumigem/tripo-gateway/common/config"
)

func GetStatus(c *gin.Context) {
	count := runtime.NumGoroutine()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "",
		"data": gin.H{
			"status":       "ok",
			"version":      common.Version,
			"system_name":  config.SystemName,
			"provider":     "tripo",
			"provider_url": config.TripoBaseURL,
			"goroutines":   count,
			"memory": gin.H{
				"alloc_mb": m.Alloc / 1024 / 1024,
				"sys_mb":   m.Sys / 1024 / 1024,
				"num_gc":   m.NumGC,
			},
		},
	})
}
