package tripo

const (
	ChannelName = "tripo"

	UploadPath = "/v2/openapi/upload"
	TaskPath   = "/v2/openapi/task"

	// 任务类型
	TaskTypeImageToModel = "image_to_model"

	// file.type 取值（供应商只认这两种）
	FileTypePNG = "png"
	FileTypeJPG = "jpg"
)

// CodeInsufficientCredits 供应商余额不足的业务错误码（HTTP 403 里带出）
// 403 + 该 code 必须与普通 403 区分开，给用户可操作的充值提示
const CodeInsufficientCredits = 2010
