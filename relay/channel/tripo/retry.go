package tripo

import (
	"errors"
	"time"
)

// RetryDecision 单次上传失败后的处置：要么等 Wait 后重试，要么放弃
type RetryDecision struct {
	Retry bool
	Wait  time.Duration
}

// UploadRetryPolicy 上传退避策略，attempt 从 1 开始计。
// 第 k 次失败后等 2^k 秒（k=1 等 2s，k=2 等 4s），最多 maxAttempts 次。
// 校验类错误不重试。独立成纯函数，退避表可以不跑真实定时器就测到。
func UploadRetryPolicy(attempt int, maxAttempts int, err error) RetryDecision {
	if errors.Is(err, ErrEmptyFile) {
		return RetryDecision{}
	}
	if attempt >= maxAttempts {
		return RetryDecision{}
	}
	return RetryDecision{
		Retry: true,
		Wait:  time.Duration(1<<uint(attempt)) * time.Second,
	}
}
