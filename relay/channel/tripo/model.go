package tripo

import "strings"

// UploadResponse 供应商上传接口返回体
type UploadResponse struct {
	Code int `json:"code"`
	Data struct {
		ImageToken string `json:"image_token"`
	} `json:"data"`
}

// FileRef 建任务时引用已上传的文件
type FileRef struct {
	Type      string `json:"type"`
	FileToken string `json:"file_token"`
}

type CreateTaskRequest struct {
	Type string  `json:"type"`
	File FileRef `json:"file"`
}

type CreateTaskResponse struct {
	Code int `json:"code"`
	Data struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// TaskOutput 任务成功后才有值
type TaskOutput struct {
	Model         string `json:"model,omitempty"`
	PbrModel      string `json:"pbr_model,omitempty"`
	RenderedImage string `json:"rendered_image,omitempty"`
}

type TaskData struct {
	TaskID   string     `json:"task_id"`
	Type     string     `json:"type,omitempty"`
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"`
	Output   TaskOutput `json:"output"`
}

type TaskResponse struct {
	Code int      `json:"code"`
	Data TaskData `json:"data"`
}

// ErrorResponse 供应商错误返回体（例如 403 余额不足时带业务 code）
type ErrorResponse struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NormalizeFileType 把各种形态的 mime 提示归一成供应商认的 file.type。
// 大小写不敏感；识别不了的一律按 jpg 兜底（UI 传过来的 mime 不总是规范的）。
func NormalizeFileType(mimeHint string) string {
	hint := strings.ToLower(mimeHint)
	if strings.Contains(hint, "png") {
		return FileTypePNG
	}
	if strings.Contains(hint, "jpg") || strings.Contains(hint, "jpeg") {
		return FileTypeJPG
	}
	return FileTypeJPG
}
