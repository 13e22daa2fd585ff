package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumigem/tripo-gateway/relay/channel/tripo"
)

// fakeGateway 按调用次数回放预设的状态序列
type fakeGateway struct {
	createFn func(ctx context.Context, img UploadedImage) (string, error)
	getFn    func(ctx context.Context, taskID string) (*tripo.TaskData, error)

	createCalls int32
	getCalls    int32
}

func (f *fakeGateway) CreateGeneration(ctx context.Context, img UploadedImage) (string, error) {
	atomic.AddInt32(&f.createCalls, 1)
	if f.createFn != nil {
		return f.createFn(ctx, img)
	}
	return "task-1", nil
}

func (f *fakeGateway) GetTask(ctx context.Context, taskID string) (*tripo.TaskData, error) {
	atomic.AddInt32(&f.getCalls, 1)
	if f.getFn != nil {
		return f.getFn(ctx, taskID)
	}
	return &tripo.TaskData{TaskID: taskID, Status: tripo.StatusSuccess, Progress: 100}, nil
}

func pngImage(size int) UploadedImage {
	return UploadedImage{
		Data:     make([]byte, size),
		MimeType: "image/png",
		FileName: "ring.png",
	}
}

func TestSessionHappyPath(t *testing.T) {
	responses := []*tripo.TaskData{
		{TaskID: "task-1", Status: tripo.StatusQueued, Progress: 0},
		{TaskID: "task-1", Status: tripo.StatusRunning, Progress: 40},
		{TaskID: "task-1", Status: tripo.StatusSuccess, Progress: 100, Output: tripo.TaskOutput{
			PbrModel:      "https://cdn.example.com/model.glb",
			RenderedImage: "https://cdn.example.com/preview.webp",
		}},
	}
	idx := 0
	gw := &fakeGateway{
		getFn: func(ctx context.Context, taskID string) (*tripo.TaskData, error) {
			resp := responses[idx]
			if idx < len(responses)-1 {
				idx++
			}
			return resp, nil
		},
	}

	var mu sync.Mutex
	var states []State
	sess := NewSession(gw, Config{
		PollInterval: 5 * time.Millisecond,
		OnProgress: func(p Progress) {
			mu.Lock()
			states = append(states, p.State)
			mu.Unlock()
		},
	})

	err := sess.Start(context.Background(), pngImage(256))
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, sess.State())
	task := sess.Task()
	assert.Equal(t, "task-1", task.TaskID)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, "https://cdn.example.com/model.glb", task.ResultURL)
	assert.Equal(t, "https://cdn.example.com/preview.webp", task.PreviewURL)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{
		StateValidating, StateUploading, StateProcessing,
		StateQueued, StateRunning, StateSuccess,
	}, states)
}

func TestSessionValidationRejectsWithoutNetwork(t *testing.T) {
	tests := []struct {
		name string
		img  UploadedImage
	}{
		{"empty file", UploadedImage{MimeType: "image/png", FileName: "empty.png"}},
		{"unsupported type", UploadedImage{Data: []byte("GIF89a"), MimeType: "image/gif", FileName: "a.gif"}},
		{"oversized image", pngImage(2 * 1024 * 1024)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			sess := NewSession(gw, Config{PollInterval: 5 * time.Millisecond})
			err := sess.Start(context.Background(), tt.img)
			require.Error(t, err)
			assert.Equal(t, StateIdle, sess.State(), "validation failure must return the session to idle")
			assert.Zero(t, atomic.LoadInt32(&gw.createCalls))
			assert.Zero(t, atomic.LoadInt32(&gw.getCalls))
		})
	}
}

func TestSessionPollingIsSequential(t *testing.T) {
	var inFlight, maxInFlight int32
	polls := 0
	gw := &fakeGateway{
		getFn: func(ctx context.Context, taskID string) (*tripo.TaskData, error) {
			cur := atomic.AddInt32(&inFlight, 1)
			for {
				prev := atomic.LoadInt32(&maxInFlight)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxInFlight, prev, cur) {
					break
				}
			}
			// 比轮询间隔更久的处理时间也不能导致并发在途请求
			time.Sleep(15 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)

			polls++
			if polls >= 4 {
				return &tripo.TaskData{TaskID: taskID, Status: tripo.StatusSuccess, Progress: 100}, nil
			}
			return &tripo.TaskData{TaskID: taskID, Status: tripo.StatusRunning, Progress: polls * 10}, nil
		},
	}

	sess := NewSession(gw, Config{PollInterval: 2 * time.Millisecond})
	err := sess.Start(context.Background(), pngImage(64))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight), "at most one status request may be in flight")
}

func TestSessionProgressNeverMovesBackwards(t *testing.T) {
	responses := []*tripo.TaskData{
		{TaskID: "task-1", Status: tripo.StatusRunning, Progress: 40},
		{TaskID: "task-1", Status: tripo.StatusRunning, Progress: 10},
		{TaskID: "task-1", Status: tripo.StatusSuccess, Progress: 100},
	}
	idx := 0
	gw := &fakeGateway{
		getFn: func(ctx context.Context, taskID string) (*tripo.TaskData, error) {
			resp := responses[idx]
			if idx < len(responses)-1 {
				idx++
			}
			return resp, nil
		},
	}

	var mu sync.Mutex
	var percents []int
	sess := NewSession(gw, Config{
		PollInterval: 5 * time.Millisecond,
		OnProgress: func(p Progress) {
			mu.Lock()
			percents = append(percents, p.Percent)
			mu.Unlock()
		},
	})

	require.NoError(t, sess.Start(context.Background(), pngImage(64)))

	mu.Lock()
	defer mu.Unlock()
	last := 0
	for _, p := range percents {
		assert.GreaterOrEqual(t, p, last, "displayed progress must be monotonic")
		last = p
	}
	assert.Equal(t, 100, last)
}

func TestSessionResetDiscardsStaleResponses(t *testing.T) {
	polled := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{
		getFn: func(ctx context.Context, taskID string) (*tripo.TaskData, error) {
			close(polled)
			<-release
			return &tripo.TaskData{TaskID: taskID, Status: tripo.StatusSuccess, Progress: 100, Output: tripo.TaskOutput{Model: "https://cdn.example.com/stale.glb"}}, nil
		},
	}

	var mu sync.Mutex
	var afterReset []Progress
	resetDone := false
	sess := NewSession(gw, Config{
		PollInterval: 5 * time.Millisecond,
		OnProgress: func(p Progress) {
			mu.Lock()
			if resetDone {
				afterReset = append(afterReset, p)
			}
			mu.Unlock()
		},
	})

	done := make(chan error, 1)
	go func() {
		done <- sess.Start(context.Background(), pngImage(64))
	}()

	<-polled
	mu.Lock()
	resetDone = true
	mu.Unlock()
	sess.Reset()
	close(release)

	err := <-done
	require.ErrorIs(t, err, ErrSessionCanceled)

	assert.Equal(t, StateIdle, sess.State())
	assert.Equal(t, GenerationTask{}, sess.Task(), "a reset session must not retain the stale result")
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, afterReset, "callbacks from a discarded generation must not fire")
}

func TestSessionTimeoutFailsWithNetworkCategory(t *testing.T) {
	gw := &fakeGateway{
		getFn: func(ctx context.Context, taskID string) (*tripo.TaskData, error) {
			return &tripo.TaskData{TaskID: taskID, Status: tripo.StatusRunning, Progress: 5}, nil
		},
	}

	var mu sync.Mutex
	var lastCategory ErrorCategory
	sess := NewSession(gw, Config{
		PollInterval:   5 * time.Millisecond,
		SessionTimeout: 40 * time.Millisecond,
		OnProgress: func(p Progress) {
			mu.Lock()
			if p.Err != nil {
				lastCategory = p.Category
			}
			mu.Unlock()
		},
	})

	err := sess.Start(context.Background(), pngImage(64))
	require.ErrorIs(t, err, ErrSessionTimeout)
	assert.Equal(t, StateFailed, sess.State())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, CategoryNetwork, lastCategory)
}

func TestSessionBusyRejectsSecondStart(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{
		createFn: func(ctx context.Context, img UploadedImage) (string, error) {
			close(started)
			<-release
			return "task-1", nil
		},
	}

	sess := NewSession(gw, Config{PollInterval: 5 * time.Millisecond})
	done := make(chan error, 1)
	go func() {
		done <- sess.Start(context.Background(), pngImage(64))
	}()

	<-started
	err := sess.Start(context.Background(), pngImage(64))
	require.ErrorIs(t, err, ErrSessionBusy)

	sess.Reset()
	close(release)
	<-done
}

func TestSessionCreditsFailure(t *testing.T) {
	gw := &fakeGateway{
		createFn: func(ctx context.Context, img UploadedImage) (string, error) {
			return "", &tripo.InsufficientCreditsError{Message: "not enough credits"}
		},
	}

	sess := NewSession(gw, Config{PollInterval: 5 * time.Millisecond})
	err := sess.Start(context.Background(), pngImage(64))
	require.Error(t, err)
	assert.Equal(t, StateFailed, sess.State())
	assert.Equal(t, CategoryCredits, Categorize(err))
	assert.Zero(t, atomic.LoadInt32(&gw.getCalls), "a failed submission must not be polled")
}

func TestSessionTerminalStateRequiresReset(t *testing.T) {
	gw := &fakeGateway{}
	sess := NewSession(gw, Config{PollInterval: 5 * time.Millisecond})
	require.NoError(t, sess.Start(context.Background(), pngImage(64)))
	require.Equal(t, StateSuccess, sess.State())

	err := sess.Start(context.Background(), pngImage(64))
	require.ErrorIs(t, err, ErrSessionBusy)

	sess.Reset()
	require.Equal(t, StateIdle, sess.State())
	require.NoError(t, sess.Start(context.Background(), pngImage(64)))
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, CategoryNone, Categorize(nil))
	assert.Equal(t, CategoryCredits, Categorize(&tripo.InsufficientCreditsError{Message: "m"}))
	assert.Equal(t, CategoryNetwork, Categorize(&tripo.TimeoutError{Op: "upload", Err: context.DeadlineExceeded}))
	assert.Equal(t, CategoryNetwork, Categorize(ErrSessionTimeout))
	assert.Equal(t, CategoryGeneric, Categorize(errors.New("boom")))
}
