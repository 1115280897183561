package security

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// ToolRateLimiter provides per-tool rate limiting
type ToolRateLimiter struct {
	toolLimiters map[string]*rate.Limiter
	mu           sync.RWMutex
}

// NewToolRateLimiter creates a new tool-specific rate limiter
func NewToolRateLimiter() *ToolRateLimiter {
	return &ToolRateLimiter{
		toolLimiters: make(map[string]*rate.Limiter),
	}
}

// SetToolLimit configures rate limit for a specific tool.
// A non-positive rate removes the limit.
func (trl *ToolRateLimiter) SetToolLimit(toolName string, requestsPerSecond float64, burst int) {
	trl.mu.Lock()
	defer trl.mu.Unlock()

	if requestsPerSecond <= 0 {
		delete(trl.toolLimiters, toolName)
		return
	}
	if burst < 1 {
		burst = 1
	}
	trl.toolLimiters[toolName] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Allow checks if a tool execution should be allowed
func (trl *ToolRateLimiter) Allow(toolName string) bool {
	limiter := trl.limiter(toolName)
	if limiter == nil {
		return true // No limit set for this tool
	}
	return limiter.Allow()
}

// Wait blocks until a tool execution can proceed
func (trl *ToolRateLimiter) Wait(ctx context.Context, toolName string) error {
	limiter := trl.limiter(toolName)
	if limiter == nil {
		return nil // No limit set for this tool
	}
	return limiter.Wait(ctx)
}

func (trl *ToolRateLimiter) limiter(toolName string) *rate.Limiter {
	trl.mu.RLock()
	defer trl.mu.RUnlock()
	return trl.toolLimiters[toolName]
}
