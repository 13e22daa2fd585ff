package model

import (
	"errors"
	"fmt"

	"github.com/lumigem/tripo-gateway/common/config"
	"gorm.io/gorm"
)

// GenerationLog 每次 /tripo/image-to-3d 请求落一行，用于审计和用量分析。
// 这不是任务状态表：代理接口不读它，任务状态始终以供应商为准。
type GenerationLog struct {
	Id         int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestId  string `json:"request_id" gorm:"index"`
	ClientIp   string `json:"client_ip"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	Provider   string `json:"provider" gorm:"type:varchar(32);index"`
	TaskId     string `json:"task_id" gorm:"index"`
	Status     string `json:"status" gorm:"type:varchar(32);index"`
	FailReason string `json:"fail_reason"`
	LatencyMs  int64  `json:"latency_ms"`
	CreatedAt  int64  `json:"created_at" gorm:"bigint;index"`
}

// 创建结果状态（只记录到任务提交为止，后续进度在供应商侧）
const (
	GenerationStatusSubmitted = "submitted"
	GenerationStatusFailed    = "failed"
)

func (l *GenerationLog) Insert() error {
	if DB == nil {
		return errors.New("database is not initialized")
	}
	return DB.Create(l).Error
}

func GetGenerationLogByTaskId(taskId string) (*GenerationLog, error) {
	var log GenerationLog
	result := DB.Where("task_id = ?", taskId).First(&log)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no record found for task_id: %s", taskId)
		}
		return nil, result.Error
	}
	return &log, nil
}

func GetGenerationLogsAndCount(startTimestamp int64, endTimestamp int64, taskId string, status string, currentPage int, pageSize int) (logs []*GenerationLog, total int64, err error) {
	tx := DB.Model(&GenerationLog{})
	if startTimestamp != 0 {
		tx = tx.Where("created_at >= ?", startTimestamp)
	}
	if endTimestamp != 0 {
		tx = tx.Where("created_at <= ?", endTimestamp)
	}
	if taskId != "" {
		tx = tx.Where("task_id = ?", taskId)
	}
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	err = tx.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}
	limit, offset := normalizePagination(currentPage, pageSize)
	err = tx.Order("id desc").Limit(limit).Offset(offset).Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// normalizePagination pagesize 缺省用 config.ItemsPerPage，页码负数归零
func normalizePagination(currentPage int, pageSize int) (limit int, offset int) {
	if pageSize <= 0 {
		pageSize = config.ItemsPerPage
	}
	if currentPage < 0 {
		currentPage = 0
	}
	return pageSize, currentPage * pageSize
}
