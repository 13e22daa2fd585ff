package tripo

// TaskStatus 封闭枚举。供应商新加状态时只改这里和下面的归类方法。
type TaskStatus string

const (
	StatusQueued     TaskStatus = "queued"
	StatusRunning    TaskStatus = "running"
	StatusGenerating TaskStatus = "generating"
	StatusSuccess    TaskStatus = "success"
	StatusFailed     TaskStatus = "failed"
	StatusBanned     TaskStatus = "banned"
	StatusExpired    TaskStatus = "expired"
)

// IsKnown 是否为已知状态。未知状态按非终态处理，由调用方记日志
func (s TaskStatus) IsKnown() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusGenerating,
		StatusSuccess, StatusFailed, StatusBanned, StatusExpired:
		return true
	}
	return false
}

func (s TaskStatus) IsTerminal() bool {
	return s.IsSuccess() || s.IsFailure()
}

func (s TaskStatus) IsSuccess() bool {
	return s == StatusSuccess
}

func (s TaskStatus) IsFailure() bool {
	switch s {
	case StatusFailed, StatusBanned, StatusExpired:
		return true
	}
	return false
}
