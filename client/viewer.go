package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrAssetUnavailable = errors.New("asset not available at the given url")
	ErrNotBinaryAsset   = errors.New("url returned an html page instead of a binary asset")
)

// AssetFetcher 渲染层的取模型入口。把 URL 当二进制资源加载之前先用
// HEAD 探一次：有些源站出错时返回 200 + HTML 错误页，直接喂给渲染器
// 会当成损坏的模型。探测不被支持（405/501 或直接失败）就退化成直接 GET。
// 拉回来的资源按 URL 缓存，同一个模型地址不重复下载。
type AssetFetcher struct {
	HTTPClient *http.Client
	// MaxCacheEntries 缓存条数上限，0 用默认值。超限时按写入顺序淘汰最旧的
	MaxCacheEntries int

	mu    sync.Mutex
	cache map[string][]byte
	order []string
}

const defaultMaxCacheEntries = 16

func NewAssetFetcher() *AssetFetcher {
	return &AssetFetcher{
		HTTPClient: http.DefaultClient,
	}
}

// Fetch 拉取一个模型资源，命中缓存直接返回
func (f *AssetFetcher) Fetch(ctx context.Context, assetURL string) ([]byte, error) {
	if assetURL == "" {
		return nil, ErrAssetUnavailable
	}

	f.mu.Lock()
	if data, ok := f.cache[assetURL]; ok {
		f.mu.Unlock()
		return data, nil
	}
	f.mu.Unlock()

	if err := f.probe(ctx, assetURL); err != nil {
		return nil, err
	}

	data, err := f.get(ctx, assetURL)
	if err != nil {
		return nil, err
	}

	f.store(assetURL, data)
	return data, nil
}

// probe HEAD 探测。返回 nil 表示"可以 GET"：包括探测成功和探测不可用
// （源站不支持 HEAD）两种情况；明确的错误状态和 HTML 页才拦下来。
func (f *AssetFetcher) probe(ctx context.Context, assetURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, assetURL, nil)
	if err != nil {
		return errors.Wrap(err, "new probe request")
	}
	resp, err := f.httpClient().Do(req)
	if err != nil {
		// 探测本身失败不算定论，交给 GET 再试一次
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return nil
	}
	if resp.StatusCode >= 400 {
		return errors.Wrapf(ErrAssetUnavailable, "probe returned status %d", resp.StatusCode)
	}
	if isHTMLContentType(resp.Header.Get("Content-Type")) {
		return ErrNotBinaryAsset
	}
	return nil
}

func (f *AssetFetcher) get(ctx context.Context, assetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new asset request")
	}
	resp, err := f.httpClient().Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch asset")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(ErrAssetUnavailable, "asset fetch returned status %d", resp.StatusCode)
	}
	if isHTMLContentType(resp.Header.Get("Content-Type")) {
		return nil, ErrNotBinaryAsset
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read asset body")
	}
	return data, nil
}

func (f *AssetFetcher) store(assetURL string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cache == nil {
		f.cache = make(map[string][]byte)
	}
	max := f.MaxCacheEntries
	if max <= 0 {
		max = defaultMaxCacheEntries
	}
	for len(f.order) >= max {
		oldest := f.order[0]
		f.order = f.order[1:]
		delete(f.cache, oldest)
	}
	f.cache[assetURL] = data
	f.order = append(f.order, assetURL)
}

func (f *AssetFetcher) httpClient() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

func isHTMLContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}
