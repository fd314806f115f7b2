// Package ratelimiter bounds how often completion requests leave the bot,
// both per Telegram user and globally.
package ratelimiter

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

type Opts struct {
	PerUserLimit int
	GlobalLimit  int
}

type Ratelimiter struct {
	perUserLimit     int
	perUserMu        sync.RWMutex
	perUserRatelimit map[int64]*rate.Limiter
	globalRatelimit  *rate.Limiter
}

func NewRatelimiter(opts Opts) *Ratelimiter {
	return &Ratelimiter{
		perUserLimit:     opts.PerUserLimit,
		perUserRatelimit: make(map[int64]*rate.Limiter),
		globalRatelimit:  rate.NewLimiter(rate.Limit(opts.GlobalLimit), opts.GlobalLimit),
	}
}

// Allow blocks until both the user's and the global quota admit one request,
// or the context is cancelled.
func (rl *Ratelimiter) Allow(ctx context.Context, userID int64) bool {
	if err := rl.getOrInitUserLimiter(userID).Wait(ctx); err != nil {
		slog.WarnContext(ctx, "cancelled while waiting for per user ratelimit quota", "user_id", userID)
		return false
	}
	if err := rl.globalRatelimit.Wait(ctx); err != nil {
		slog.WarnContext(ctx, "cancelled while waiting for global ratelimit quota")
		return false
	}

	return true
}

func (rl *Ratelimiter) getOrInitUserLimiter(userID int64) *rate.Limiter {
	if limiter := rl.tryGetUserLimiter(userID); limiter != nil {
		return limiter
	}

	rl.perUserMu.Lock()
	defer rl.perUserMu.Unlock()
	// double check since there is a gap between critical sections.
	if limiter, ok := rl.perUserRatelimit[userID]; ok {
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rl.perUserLimit), rl.perUserLimit)
	rl.perUserRatelimit[userID] = limiter

	return limiter
}

func (rl *Ratelimiter) tryGetUserLimiter(userID int64) *rate.Limiter {
	rl.perUserMu.RLock()
	defer rl.perUserMu.RUnlock()
	if limiter, ok := rl.perUserRatelimit[userID]; ok {
		return limiter
	}
	return nil
}
