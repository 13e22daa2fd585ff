package controller

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumigem/tripo-gateway/common"
	"github.com/lumigem/tripo-gateway/common/config"
	"github.com/lumigem/tripo-gateway/common/helper"
	"github.com/lumigem/tripo-gateway/common/logger"
	"github.com/lumigem/tripo-gateway/model"
	"github.com/lumigem/tripo-gateway/relay/channel/tripo"
)

// RelayTripoImageTo3D 处理 POST /tripo/image-to-3d：表单文件上传到供应商换 image_token，
// 再用 token 建 image_to_model 任务，两步合成一次调用，建任务返回体原样透传给前端。
// 网关本身无状态，任务状态全部在供应商侧。
func RelayTripoImageTo3D(c *gin.Context) {
	ctx := c.Request.Context()
	startTime := time.Now()

	if c.Request.ContentLength > config.MaxUploadBytes {
		respondTripoError(c, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit", "invalid_request_error")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondTripoError(c, http.StatusBadRequest, "the 'file' form field is required", "invalid_request_error")
		return
	}
	defer file.Close()

	if header.Size > config.MaxUploadBytes {
		respondTripoError(c, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit", "invalid_request_error")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, config.MaxUploadBytes+1))
	if err != nil {
		respondTripoError(c, http.StatusBadRequest, "failed to read uploaded file", "invalid_request_error")
		return
	}
	if int64(len(data)) > config.MaxUploadBytes {
		respondTripoError(c, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit", "invalid_request_error")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	logger.Infof(ctx, "tripo generation request: file=%s, size=%s, mime=%s",
		header.Filename, helper.Bytes2Size(header.Size), mimeType)

	client := tripo.NewClient()

	upload, _, err := client.UploadImage(ctx, data, header.Filename, mimeType)
	if err != nil {
		recordGeneration(c, header, "", model.GenerationStatusFailed, err.Error(), startTime)
		respondTripoClientError(c, err)
		return
	}

	createResp, raw, err := client.CreateTask(ctx, upload.Data.ImageToken, mimeType)
	if err != nil {
		recordGeneration(c, header, "", model.GenerationStatusFailed, err.Error(), startTime)
		respondTripoClientError(c, err)
		return
	}

	recordGeneration(c, header, createResp.Data.TaskID, model.GenerationStatusSubmitted, "", startTime)
	logger.Infof(ctx, "tripo task created: task_id=%s, latency=%dms",
		createResp.Data.TaskID, time.Since(startTime).Milliseconds())

	c.Data(http.StatusOK, "application/json", raw)
}

// GetTripoTask 处理 GET /tripo/task/:id，单次状态查询，供应商返回体原样透传。
// 轮询节奏由客户端控制，这里一次调用只查一次。
func GetTripoTask(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondTripoError(c, http.StatusBadRequest, "task id is required", "invalid_request_error")
		return
	}

	client := tripo.NewClient()
	_, raw, err := client.GetTaskStatus(c.Request.Context(), taskID)
	if err != nil {
		respondTripoClientError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// recordGeneration 异步落审计日志，不阻塞请求，写失败只记日志。
// 代理链路从不读这张表，Status 也只记到"已提交/提交失败"为止。
func recordGeneration(c *gin.Context, header *multipart.FileHeader, taskID string, status string, failReason string, startTime time.Time) {
	entry := &model.GenerationLog{
		RequestId:  c.GetString(logger.RequestIdKey),
		ClientIp:   c.ClientIP(),
		FileName:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		SizeBytes:  header.Size,
		Provider:   tripo.ChannelName,
		TaskId:     taskID,
		Status:     status,
		FailReason: failReason,
		LatencyMs:  time.Since(startTime).Milliseconds(),
		CreatedAt:  helper.GetTimestamp(),
	}
	common.SafeGoroutine(func() {
		if err := entry.Insert(); err != nil {
			logger.SysError("failed to insert generation log: " + err.Error())
		}
	})
}

// respondTripoError 统一错误返回体，格式与其余接口保持一致
func respondTripoError(c *gin.Context, statusCode int, message string, errType string) {
	c.JSON(statusCode, gin.H{
		"error": gin.H{
			"message": helper.MessageWithRequestId(message, c.GetString(logger.RequestIdKey)),
			"type":    errType,
		},
	})
	logger.Error(c.Request.Context(), message)
}

// respondTripoClientError 把 tripo 客户端的类型化错误映射成对外的 HTTP 语义。
// 上游错误保留供应商原始 status/body，便于前端和排查两头对齐。
func respondTripoClientError(c *gin.Context, err error) {
	var upstreamErr *tripo.UpstreamError
	var timeoutErr *tripo.TimeoutError
	var creditsErr *tripo.InsufficientCreditsError
	var uploadErr *tripo.UploadFailedError

	switch {
	case errors.Is(err, tripo.ErrEmptyFile),
		errors.Is(err, tripo.ErrInvalidFileToken),
		errors.Is(err, tripo.ErrEmptyTaskID):
		respondTripoError(c, http.StatusBadRequest, err.Error(), "invalid_request_error")
	case errors.As(err, &creditsErr):
		c.JSON(http.StatusForbidden, gin.H{
			"error": gin.H{
				"message": creditsErr.Error(),
				"type":    "insufficient_credits",
				"code":    tripo.CodeInsufficientCredits,
			},
		})
		logger.Error(c.Request.Context(), creditsErr.Error())
	case errors.As(err, &uploadErr):
		// 重试耗尽后统一报 upstream_error，最后一次的原因包含在消息里，
		// 放在超时判断前面，避免"最后一跳是超时"的 UploadFailedError 被当成单次超时
		respondTripoError(c, http.StatusBadGateway, uploadErr.Error(), "upstream_error")
	case errors.As(err, &timeoutErr):
		respondTripoError(c, http.StatusGatewayTimeout, timeoutErr.Error(), "timeout_error")
	case errors.As(err, &upstreamErr):
		respondTripoError(c, upstreamErr.StatusCode, upstreamErr.Error(), "upstream_error")
	default:
		respondTripoError(c, http.StatusInternalServerError, err.Error(), "api_error")
	}
}
