package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func limiterContext(method, path string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(method, path, nil)
	return c
}

func TestRateLimiterBlocksRepeatWithinWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := &rateLimiter{
		window:        10 * time.Second,
		sweepInterval: 10 * time.Second,
		last:          make(map[string]time.Time),
		now:           func() time.Time { return now },
	}

	first := limiterContext("POST", "/api/v1/knowledge/search")
	limiter.handle(first)
	require.False(t, first.IsAborted())

	second := limiterContext("POST", "/api/v1/knowledge/search")
	limiter.handle(second)
	require.True(t, second.IsAborted())

	// a different write endpoint from the same client has its own window
	other := limiterContext("POST", "/api/v1/knowledge")
	limiter.handle(other)
	require.False(t, other.IsAborted())
}

func TestRateLimiterAllowsAfterWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	limiter := &rateLimiter{
		window:        10 * time.Second,
		sweepInterval: time.Hour,
		last:          make(map[string]time.Time),
		now:           func() time.Time { return now },
	}

	limiter.handle(limiterContext("POST", "/api/v1/knowledge"))
	now = now.Add(11 * time.Second)
	retry := limiterContext("POST", "/api/v1/knowledge")
	limiter.handle(retry)
	require.False(t, retry.IsAborted())
}

func TestRateLimiterSweepDropsStaleEntries(t *testing.T) {
	base := time.Now()
	limiter := &rateLimiter{
		window:        10 * time.Second,
		sweepInterval: 10 * time.Second,
		last:          make(map[string]time.Time),
		now:           time.Now,
	}
	limiter.last["1.2.3.4|/api/v1/knowledge"] = base.Add(-30 * time.Second)
	limiter.last["1.2.3.4|/api/v1/knowledge/search"] = base.Add(-time.Second)

	limiter.mu.Lock()
	limiter.cleanupExpiredLocked(base)
	limiter.mu.Unlock()

	require.NotContains(t, limiter.last, "1.2.3.4|/api/v1/knowledge")
	require.Contains(t, limiter.last, "1.2.3.4|/api/v1/knowledge/search")
	require.Equal(t, base, limiter.lastSweep)
}
