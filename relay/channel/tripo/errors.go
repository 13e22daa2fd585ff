package tripo

import (
	"fmt"

	"github.com/pkg/errors"
)

// 校验类错误：发现即失败，不重试，不发网络请求
var (
	ErrEmptyFile        = errors.New("empty file: refusing to upload a zero-byte image")
	ErrInvalidFileToken = errors.New("invalid file token: must be a non-empty string")
	ErrEmptyTaskID      = errors.New("task id is required")
)

// UpstreamError 供应商返回非 2xx。保留原始 status/body 便于排查
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// TimeoutError 单次调用超过超时上限被取消。与普通上游错误区分开，
// UI 可以据此提示用户检查网络而不是报一个笼统的失败
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out, please check your connection", e.Op)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// InsufficientCreditsError 账户余额不足（HTTP 403 + 业务 code）。永不重试
type InsufficientCreditsError struct {
	Message string
}

func (e *InsufficientCreditsError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "insufficient credits: please top up your provider account before generating"
}

// UploadFailedError 上传重试次数耗尽后的最终错误，包住最后一次的失败原因
type UploadFailedError struct {
	Attempts int
	Err      error
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("upload failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UploadFailedError) Unwrap() error {
	return e.Err
}
