// Package client 驱动一次完整的生成会话：选图校验、提交网关、轮询状态、
// 把成品模型地址交给渲染层。服务端只做无状态透传，会话状态都在这里。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/lumigem/tripo-gateway/relay/channel/tripo"
	"github.com/pkg/errors"
)

// Gateway 会话依赖的网关操作。生产实现是 GatewayClient，测试里用桩替
type Gateway interface {
	// CreateGeneration 上传图片并创建生成任务，返回供应商任务 ID
	CreateGeneration(ctx context.Context, img UploadedImage) (string, error)
	// GetTask 查一次任务状态
	GetTask(ctx context.Context, taskID string) (*tripo.TaskData, error)
}

// GatewayClient 调网关 HTTP 接口的默认实现
type GatewayClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: http.DefaultClient,
	}
}

// gatewayError 网关错误返回体（controller 的 {"error": {...}} 形状）
type gatewayError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (g *GatewayClient) CreateGeneration(ctx context.Context, img UploadedImage) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", img.FileName)
	if err != nil {
		return "", errors.Wrap(err, "create multipart body")
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", errors.Wrap(err, "write multipart body")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "close multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/tripo/image-to-3d", &buf)
	if err != nil {
		return "", errors.Wrap(err, "new generation request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return "", classifyGatewayTransportError("create generation", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyGatewayTransportError("create generation", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeGatewayError(resp.StatusCode, raw)
	}

	var parsed tripo.CreateTaskResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &tripo.UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if parsed.Data.TaskID == "" {
		return "", &tripo.UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return parsed.Data.TaskID, nil
}

func (g *GatewayClient) GetTask(ctx context.Context, taskID string) (*tripo.TaskData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/tripo/task/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new task status request")
	}

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return nil, classifyGatewayTransportError("task status", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyGatewayTransportError("task status", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeGatewayError(resp.StatusCode, raw)
	}

	var parsed tripo.TaskResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &tripo.UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return &parsed.Data, nil
}

func (g *GatewayClient) httpClient() *http.Client {
	if g.HTTPClient != nil {
		return g.HTTPClient
	}
	return http.DefaultClient
}

// decodeGatewayError 把网关的错误返回体还原成类型化错误，
// UI 靠这些类型区分"余额不足/网络/其它"三档提示
func decodeGatewayError(statusCode int, raw []byte) error {
	var gerr gatewayError
	if err := json.Unmarshal(raw, &gerr); err == nil && gerr.Error.Message != "" {
		switch gerr.Error.Type {
		case "insufficient_credits":
			return &tripo.InsufficientCreditsError{Message: gerr.Error.Message}
		case "timeout_error":
			return &tripo.TimeoutError{Op: "gateway call", Err: errors.New(gerr.Error.Message)}
		}
		return &tripo.UpstreamError{StatusCode: statusCode, Body: gerr.Error.Message}
	}
	return &tripo.UpstreamError{StatusCode: statusCode, Body: string(raw)}
}

func classifyGatewayTransportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &tripo.TimeoutError{Op: op, Err: err}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && (uerr.Timeout() || errors.Is(uerr.Err, context.DeadlineExceeded)) {
		return &tripo.TimeoutError{Op: op, Err: err}
	}
	return errors.Wrap(err, op+" request failed")
}
