package tripo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumigem/tripo-gateway/common/config"
	"github.com/lumigem/tripo-gateway/common/logger"
	"github.com/lumigem/tripo-gateway/service"
	"github.com/pkg/errors"
)

// Client Tripo 供应商客户端。服务端不落任何任务状态，
// 上传/建任务/查状态都是一次进一次出，任务状态全在供应商那边。
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	MaxUploadAttempts int
	UploadTimeout     time.Duration
	CreateTimeout     time.Duration
	StatusTimeout     time.Duration

	// 测试用注入点，缺省走真实定时器
	wait func(ctx context.Context, d time.Duration) error
}

func NewClient() *Client {
	httpClient, err := service.NewProxyHttpClient(config.TripoProxyURL)
	if err != nil {
		logger.SysError("invalid TRIPO_PROXY, falling back to direct connection: " + err.Error())
		httpClient = service.HTTPClient
	}
	return &Client{
		BaseURL:           strings.TrimRight(config.TripoBaseURL, "/"),
		APIKey:            config.TripoAPIKey,
		HTTPClient:        httpClient,
		MaxUploadAttempts: config.TripoUploadMaxAttempts,
		UploadTimeout:     time.Duration(config.TripoUploadTimeout) * time.Second,
		CreateTimeout:     time.Duration(config.TripoCreateTimeout) * time.Second,
		StatusTimeout:     time.Duration(config.TripoStatusTimeout) * time.Second,
	}
}

// UploadImage 把一张图片上传给供应商，换取 image_token。
// 每次尝试都从原始字节重新构造 multipart（buffer 不会被消费也不会被改动），
// 失败按 UploadRetryPolicy 退避，重试耗尽后抛 UploadFailedError。
func (c *Client) UploadImage(ctx context.Context, data []byte, filename string, mimeType string) (*UploadResponse, []byte, error) {
	if len(data) == 0 {
		return nil, nil, ErrEmptyFile
	}

	maxAttempts := c.MaxUploadAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		parsed, raw, err := c.uploadOnce(ctx, data, filename, mimeType)
		if err == nil {
			return parsed, raw, nil
		}
		lastErr = err
		logger.Warnf(ctx, "tripo upload attempt %d/%d failed: %v", attempt, maxAttempts, err)

		decision := UploadRetryPolicy(attempt, maxAttempts, err)
		if !decision.Retry {
			break
		}
		if werr := c.sleep(ctx, decision.Wait); werr != nil {
			lastErr = werr
			break
		}
	}
	return nil, nil, &UploadFailedError{Attempts: attempts, Err: lastErr}
}

func (c *Client) uploadOnce(ctx context.Context, data []byte, filename string, mimeType string) (*UploadResponse, []byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create multipart body")
	}
	if _, err := part.Write(data); err != nil {
		return nil, nil, errors.Wrap(err, "write multipart body")
	}
	if err := writer.Close(); err != nil {
		return nil, nil, errors.Wrap(err, "close multipart body")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeoutOrDefault(c.UploadTimeout, 120*time.Second))
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.BaseURL+UploadPath, &buf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "new upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, nil, classifyTransportError("upload", err)
	}
	defer resp.Body.Close()

	// 先读原始文本再解析 JSON：HTML 错误页、截断响应都按上游错误暴露，
	// 而不是在解析处炸掉
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, classifyTransportError("upload", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed UploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if parsed.Data.ImageToken == "" {
		return nil, nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return &parsed, raw, nil
}

// CreateTask 用 file token 建一个 image_to_model 任务。单次调用，不重试：
// 建任务不是幂等的，盲目重试可能产生重复计费的任务。
func (c *Client) CreateTask(ctx context.Context, fileToken string, mimeHint string) (*CreateTaskResponse, []byte, error) {
	if strings.TrimSpace(fileToken) == "" {
		return nil, nil, ErrInvalidFileToken
	}

	payload := CreateTaskRequest{
		Type: TaskTypeImageToModel,
		File: FileRef{
			Type:      NormalizeFileType(mimeHint),
			FileToken: fileToken,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal create task request")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeoutOrDefault(c.CreateTimeout, 30*time.Second))
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.BaseURL+TaskPath, bytes.NewReader(body))
	if err != nil {
		return nil, nil, errors.Wrap(err, "new create task request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, nil, classifyTransportError("create task", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, classifyTransportError("create task", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusForbidden {
			var errResp ErrorResponse
			if json.Unmarshal(raw, &errResp) == nil && errResp.Code == CodeInsufficientCredits {
				return nil, nil, &InsufficientCreditsError{Message: errResp.Message}
			}
		}
		return nil, nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed CreateTaskResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return &parsed, raw, nil
}

// GetTaskStatus 查一次任务状态。这里不做重试也不做轮询节奏，
// 轮询间隔是客户端的事，本层一次调用只发一个请求。
// 超时比建任务放宽：任务完成后带结果的返回体会明显变大。
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*TaskResponse, []byte, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, nil, ErrEmptyTaskID
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeoutOrDefault(c.StatusTimeout, 60*time.Second))
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.BaseURL+TaskPath+"/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "new task status request")
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, nil, classifyTransportError("task status", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, classifyTransportError("task status", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed TaskResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if !parsed.Data.Status.IsKnown() {
		logger.Warnf(ctx, "tripo returned unknown task status %q for task %s", parsed.Data.Status, taskID)
	}
	return &parsed, raw, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return service.HTTPClient
}

func (c *Client) timeoutOrDefault(d time.Duration, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if c.wait != nil {
		return c.wait(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classifyTransportError 把超时从一般网络错误里分出来，错误分类见 errors.go
func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && (uerr.Timeout() || errors.Is(uerr.Err, context.DeadlineExceeded)) {
		return &TimeoutError{Op: op, Err: err}
	}
	return errors.Wrap(err, op+" request failed")
}
