package tripo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	c := &Client{
		BaseURL:           baseURL,
		APIKey:            "test-key",
		HTTPClient:        http.DefaultClient,
		MaxUploadAttempts: 3,
		UploadTimeout:     5 * time.Second,
		CreateTimeout:     5 * time.Second,
		StatusTimeout:     5 * time.Second,
		wait:              func(ctx context.Context, d time.Duration) error { return nil },
	}
	return c
}

func TestUploadImageHappyPath(t *testing.T) {
	var gotAuth, gotContentType string
	var gotFileBytes []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, UploadPath, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		gotFileBytes, err = io.ReadAll(file)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":{"image_token":"tok-123"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	parsed, raw, err := c.UploadImage(context.Background(), []byte("png-bytes"), "ring.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", parsed.Data.ImageToken)
	assert.Contains(t, string(raw), "tok-123")
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Contains(t, gotContentType, "multipart/form-data")
	assert.Equal(t, []byte("png-bytes"), gotFileBytes)
}

func TestUploadImageEmptyFileMakesNoNetworkCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, _, err := c.UploadImage(context.Background(), nil, "empty.png", "image/png")
	require.ErrorIs(t, err, ErrEmptyFile)
	assert.Equal(t, 0, calls, "empty file must be rejected before any request is sent")
}

func TestUploadImageRetriesWithBackoffThenSucceeds(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream hiccup"))
			return
		}
		// 每次重试都应携带完整的 multipart 正文
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, []byte("png-bytes"), data)
		_, _ = w.Write([]byte(`{"code":0,"data":{"image_token":"tok-retry"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	var waits []time.Duration
	c.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	parsed, _, err := c.UploadImage(context.Background(), []byte("png-bytes"), "ring.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "tok-retry", parsed.Data.ImageToken)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
}

func TestUploadImageGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("still broken"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, _, err := c.UploadImage(context.Background(), []byte("png-bytes"), "ring.png", "image/png")
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var failed *UploadFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 3, failed.Attempts)
	var upstream *UpstreamError
	assert.True(t, errors.As(failed.Err, &upstream))
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
}

func TestUploadImageHTMLBodyIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, _, err := c.UploadImage(context.Background(), []byte("png-bytes"), "ring.png", "image/png")
	var failed *UploadFailedError
	require.True(t, errors.As(err, &failed))
	var upstream *UpstreamError
	require.True(t, errors.As(failed.Err, &upstream))
	assert.Contains(t, upstream.Body, "502 Bad Gateway")
}

func TestCreateTaskSendsNormalizedPayload(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, TaskPath, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"task-42"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	parsed, _, err := c.CreateTask(context.Background(), "abc123", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "task-42", parsed.Data.TaskID)

	assert.Equal(t, "image_to_model", gotBody["type"])
	file, ok := gotBody["file"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "png", file["type"])
	assert.Equal(t, "abc123", file["file_token"])
}

func TestCreateTaskDoesNotRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, _, err := c.CreateTask(context.Background(), "abc123", "image/jpeg")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "task creation is not idempotent and must never be retried")
}

func TestCreateTaskInsufficientCredits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":2010,"message":"not enough credits","suggestion":"top up"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, _, err := c.CreateTask(context.Background(), "abc123", "image/png")
	var credits *InsufficientCreditsError
	require.True(t, errors.As(err, &credits))
	assert.Equal(t, "not enough credits", credits.Message)
}

func TestCreateTaskPlainForbiddenIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":1001,"message":"invalid api key"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, _, err := c.CreateTask(context.Background(), "abc123", "image/png")
	var credits *InsufficientCreditsError
	assert.False(t, errors.As(err, &credits), "403 without the credits code must stay an upstream error")
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
}

func TestCreateTaskRejectsBlankToken(t *testing.T) {
	c := newTestClient("http://unused.invalid")
	_, _, err := c.CreateTask(context.Background(), "   ", "image/png")
	require.ErrorIs(t, err, ErrInvalidFileToken)
}

func TestGetTaskStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, TaskPath+"/task-42", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":0,"data":{"task_id":"task-42","type":"image_to_model","status":"running","progress":55}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	parsed, _, err := c.GetTaskStatus(context.Background(), "task-42")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, parsed.Data.Status)
	assert.Equal(t, 55, parsed.Data.Progress)
}

func TestGetTaskStatusRejectsEmptyID(t *testing.T) {
	c := newTestClient("http://unused.invalid")
	_, _, err := c.GetTaskStatus(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyTaskID)
}

func TestUploadTimeoutIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 先读完请求体，否则服务端不会启动后台读、察觉不到客户端断开，
		// r.Context() 永远不会取消，server.Close() 会死锁
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.MaxUploadAttempts = 1
	c.UploadTimeout = 50 * time.Millisecond
	_, _, err := c.UploadImage(context.Background(), []byte("png-bytes"), "ring.png", "image/png")
	var failed *UploadFailedError
	require.True(t, errors.As(err, &failed))
	var timeout *TimeoutError
	assert.True(t, errors.As(failed.Err, &timeout))
}
