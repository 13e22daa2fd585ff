package config

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lumigem/tripo-gateway/common/env"
)

var SystemName = "Tripo Gateway"

// ServiceName/InstanceId 用于 JSON 日志维度（Loki 筛选）
var ServiceName = env.String("SERVICE_NAME", "tripo-gateway")
var InstanceId = uuid.New().String()[:8]

var DebugEnabled = strings.ToLower(os.Getenv("DEBUG")) == "true"
var DebugSQLEnabled = strings.ToLower(os.Getenv("DEBUG_SQL")) == "true"

// Tripo provider
var TripoBaseURL = env.String("TRIPO_BASE_URL", "https://api.tripo3d.ai")
var TripoAPIKey = os.Getenv("TRIPO_API_KEY")

// TripoProxyURL 出站走代理时配置，支持 http/https/socks5/socks5h
var TripoProxyURL = env.String("TRIPO_PROXY", "")

// Per-call timeouts against the provider, unit is second.
var (
	TripoUploadTimeout = env.Int("TRIPO_UPLOAD_TIMEOUT", 120)
	TripoCreateTimeout = env.Int("TRIPO_CREATE_TIMEOUT", 30)
	TripoStatusTimeout = env.Int("TRIPO_STATUS_TIMEOUT", 60)
)

// Upload retry policy: 3 attempts total, wait 2^attempt seconds between them.
var TripoUploadMaxAttempts = env.Int("TRIPO_UPLOAD_MAX_ATTEMPTS", 3)

// MaxUploadBytes is the transport-layer ceiling for /tripo/image-to-3d bodies.
// The client SDK applies its own stricter pre-check before ever reaching us.
var MaxUploadBytes int64 = int64(env.Int("MAX_UPLOAD_MB", 10)) * 1024 * 1024

var AdminToken = os.Getenv("ADMIN_TOKEN")

var RelayTimeout = env.Int("RELAY_TIMEOUT", 0) // unit is second

// ItemsPerPage 审计日志查询未指定 pagesize 时的默认页大小
var ItemsPerPage = 10

// CORSAllowOrigins 逗号分隔的跨域白名单，留空表示放开所有来源
var CORSAllowOrigins = splitOrigins(env.String("CORS_ALLOW_ORIGINS", ""))

func splitOrigins(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// All duration's unit is seconds
// Shouldn't larger then RateLimitKeyExpirationDuration
var (
	GlobalApiRateLimitNum            = env.Int("GLOBAL_API_RATE_LIMIT", 180000)
	GlobalApiRateLimitDuration int64 = 30 * 60

	UploadRateLimitNum            = env.Int("UPLOAD_RATE_LIMIT", 10)
	UploadRateLimitDuration int64 = 600

	CriticalRateLimitNum            = 200
	CriticalRateLimitDuration int64 = 200 * 60
)

var RateLimitKeyExpirationDuration = 20 * time.Minute

var IsMasterNode = os.Getenv("NODE_TYPE") != "slave"
