package common

import (
	"testing"
	"time"
)

func TestInMemoryRateLimiterEnforcesWindow(t *testing.T) {
	var limiter InMemoryRateLimiter
	limiter.Init(time.Minute)

	key := "CT192.0.2.1"
	for i := 0; i < 3; i++ {
		if !limiter.Request(key, 3, 60) {
			t.Fatalf("request %d within the quota should be allowed", i+1)
		}
	}
	if limiter.Request(key, 3, 60) {
		t.Error("request beyond the quota inside the window must be rejected")
	}

	// 不同 key 互不影响
	if !limiter.Request("UP192.0.2.2", 3, 60) {
		t.Error("a different key must have its own quota")
	}
}

func TestInMemoryRateLimiterSlidesWindow(t *testing.T) {
	var limiter InMemoryRateLimiter
	limiter.Init(time.Minute)

	key := "UP192.0.2.1"
	if !limiter.Request(key, 1, 0) {
		t.Fatal("first request should be allowed")
	}
	// duration 0 意味着上一条记录立即过期
	if !limiter.Request(key, 1, 0) {
		t.Error("a request after the window has passed should be allowed")
	}
}
