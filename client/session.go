package client

import (
	"context"
	"sync"
	"time"

	"github.com/lumigem/tripo-gateway/relay/channel/tripo"
	"github.com/pkg/errors"
)

// State 会话状态机。idle 是初始态，success/failed 是终态，
// 终态只能通过显式 Reset 回到 idle。
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateQueued     State = "queued"
	StateRunning    State = "running"
	StateGenerating State = "generating"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

// ErrorCategory 失败档位。状态机对三档一视同仁（都进 failed），
// 分类只影响 UI 提示文案
type ErrorCategory string

const (
	CategoryNone    ErrorCategory = ""
	CategoryCredits ErrorCategory = "credits"
	CategoryNetwork ErrorCategory = "network"
	CategoryGeneric ErrorCategory = "generic"
)

var (
	ErrSessionBusy     = errors.New("session already running: reset it before starting a new generation")
	ErrSessionCanceled = errors.New("session canceled")
	ErrSessionTimeout  = errors.New("generation session exceeded the overall time limit")
)

// UploadedImage 用户选中的源图。上传调用独占这块 buffer，
// 上传结束后只有 file token 存活。
type UploadedImage struct {
	Data     []byte
	MimeType string
	FileName string
}

// GenerationTask 一次生成会话的任务对象，由当前会话独占持有
type GenerationTask struct {
	TaskID     string
	Status     tripo.TaskStatus
	Progress   int
	ResultURL  string
	PreviewURL string
}

// Progress 推给 UI 的快照
type Progress struct {
	State      State
	Percent    int
	TaskID     string
	ResultURL  string
	PreviewURL string
	Err        error
	Category   ErrorCategory
}

// Config 会话参数。轮询间隔和整体超时是配置项，不在代码里写死
type Config struct {
	// PollInterval 轮询间隔，固定步长不退避（整体时长由 SessionTimeout 兜底）。
	// 必须为正
	PollInterval time.Duration
	// SessionTimeout 整个会话（上传到终态）的墙钟上限，0 表示不限制
	SessionTimeout time.Duration
	// MaxImageBytes 客户端预检的体积上限，0 用默认 1 MiB。
	// 比服务端 10 MiB 的总闸严：生成成本随输入体积涨，这里故意收紧
	MaxImageBytes int64
	// OnProgress 每次状态/进度变化时同步回调，可为 nil
	OnProgress func(Progress)
}

const defaultMaxImageBytes = 1 * 1024 * 1024

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// Session 单个生成会话。同一时刻只跑一次生成；
// generation 计数保证被 Reset 掉的旧会话的迟到回包不会再碰任务对象。
type Session struct {
	gateway Gateway
	cfg     Config

	mu         sync.Mutex
	state      State
	task       GenerationTask
	generation int
	cancel     context.CancelFunc
}

func NewSession(gateway Gateway, cfg Config) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = defaultMaxImageBytes
	}
	return &Session{
		gateway: gateway,
		cfg:     cfg,
		state:   StateIdle,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Task() GenerationTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// Reset 回到 idle，丢弃当前任务对象并作废所有在途回调。
// 终态之后想再生成必须先 Reset。
func (s *Session) Reset() {
	s.mu.Lock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.task = GenerationTask{}
	s.state = StateIdle
	s.mu.Unlock()
}

// Start 跑完一次生成：校验 → 上传+建任务 → 轮询到终态。
// 阻塞直到终态或取消，UI 侧用 go sess.Start(...) 配合 OnProgress 驱动。
// 会话内网络调用严格串行，任何时刻至多一个在途请求。
func (s *Session) Start(ctx context.Context, img UploadedImage) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	gen := s.generation
	s.state = StateValidating
	s.mu.Unlock()
	s.emit(gen)

	if err := validateImage(img, s.cfg.MaxImageBytes); err != nil {
		// 校验不过直接回 idle，不发任何网络请求
		s.mu.Lock()
		if gen == s.generation {
			s.state = StateIdle
			s.task = GenerationTask{}
		}
		s.mu.Unlock()
		s.emitError(gen, err, CategoryGeneric)
		return err
	}

	var cancel context.CancelFunc
	if s.cfg.SessionTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SessionTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrSessionCanceled
	}
	s.cancel = cancel
	s.state = StateUploading
	s.mu.Unlock()
	s.emit(gen)

	// 网关把上传和建任务合成一次调用；对状态机而言 uploading 覆盖整个
	// 在途期，拿到任务 ID 即进入 processing
	taskID, err := s.gateway.CreateGeneration(ctx, img)
	if err != nil {
		return s.fail(gen, err)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrSessionCanceled
	}
	s.state = StateProcessing
	s.task.TaskID = taskID
	s.mu.Unlock()
	s.emit(gen)

	return s.poll(ctx, gen, taskID)
}

// poll 固定间隔轮询。循环体内同步调用 GetTask，天然保证前一个
// 回包落地之前不会发起下一次查询。
func (s *Session) poll(ctx context.Context, gen int, taskID string) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return s.fail(gen, ErrSessionTimeout)
			}
			return s.discardOrFail(gen, ErrSessionCanceled)
		case <-ticker.C:
			data, err := s.gateway.GetTask(ctx, taskID)
			if err != nil {
				return s.fail(gen, err)
			}
			done, err := s.apply(gen, data)
			if done || err != nil {
				return err
			}
		}
	}
}

// apply 把一次状态回包落到任务对象上。gen 不匹配说明会话已被
// Reset，迟到回包直接丢弃，不碰任务对象也不回调。
func (s *Session) apply(gen int, data *tripo.TaskData) (bool, error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return true, ErrSessionCanceled
	}

	s.task.Status = data.Status
	// 展示进度只进不退：供应商不保证 progress 单调，回退的值不采纳
	if data.Progress > s.task.Progress {
		s.task.Progress = data.Progress
	}

	switch {
	case data.Status.IsSuccess():
		s.task.Progress = 100
		s.task.ResultURL = data.Output.PbrModel
		if s.task.ResultURL == "" {
			s.task.ResultURL = data.Output.Model
		}
		s.task.PreviewURL = data.Output.RenderedImage
		s.state = StateSuccess
		s.mu.Unlock()
		s.emit(gen)
		return true, nil
	case data.Status.IsFailure():
		s.state = StateFailed
		s.mu.Unlock()
		failErr := errors.Errorf("generation ended with status %q", data.Status)
		s.emitError(gen, failErr, CategoryGeneric)
		return true, failErr
	default:
		// 未知状态也按非终态处理，继续轮询
		switch data.Status {
		case tripo.StatusQueued:
			s.state = StateQueued
		case tripo.StatusRunning:
			s.state = StateRunning
		case tripo.StatusGenerating:
			s.state = StateGenerating
		}
		s.mu.Unlock()
		s.emit(gen)
		return false, nil
	}
}

// fail 把会话打进 failed 终态；会话已被 Reset 时丢弃不动
func (s *Session) fail(gen int, err error) error {
	return s.discardOrFail(gen, err)
}

func (s *Session) discardOrFail(gen int, err error) error {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return ErrSessionCanceled
	}
	s.state = StateFailed
	s.mu.Unlock()
	s.emitError(gen, err, Categorize(err))
	return err
}

func (s *Session) emit(gen int) {
	s.emitError(gen, nil, CategoryNone)
}

func (s *Session) emitError(gen int, err error, category ErrorCategory) {
	if s.cfg.OnProgress == nil {
		return
	}
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	snapshot := Progress{
		State:      s.state,
		Percent:    s.task.Progress,
		TaskID:     s.task.TaskID,
		ResultURL:  s.task.ResultURL,
		PreviewURL: s.task.PreviewURL,
		Err:        err,
		Category:   category,
	}
	s.mu.Unlock()
	s.cfg.OnProgress(snapshot)
}

func validateImage(img UploadedImage, maxBytes int64) error {
	if len(img.Data) == 0 {
		return tripo.ErrEmptyFile
	}
	if !allowedImageTypes[img.MimeType] {
		return errors.Errorf("unsupported image type %q: only PNG and JPEG are accepted", img.MimeType)
	}
	if int64(len(img.Data)) > maxBytes {
		return errors.Errorf("image is too large: %d bytes exceeds the %d byte limit for generation", len(img.Data), maxBytes)
	}
	return nil
}

// Categorize 失败归档：余额 / 网络 / 其它。只影响提示文案，
// 不影响状态机走向
func Categorize(err error) ErrorCategory {
	if err == nil {
		return CategoryNone
	}
	var credits *tripo.InsufficientCreditsError
	if errors.As(err, &credits) {
		return CategoryCredits
	}
	var timeout *tripo.TimeoutError
	if errors.As(err, &timeout) {
		return CategoryNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrSessionTimeout) {
		return CategoryNetwork
	}
	return CategoryGeneric
}
