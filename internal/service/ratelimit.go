package service

import "time"

// RateLimiter 是单个连接的固定窗口计数器
// 窗口过期后计数清零；超过上限只判死刑一次，之后由连接层断开
type RateLimiter struct {
	window  time.Duration
	ceiling int

	windowStart time.Time
	count       int
	tripped     bool

	now func() time.Time
}

func NewRateLimiter(window time.Duration, ceiling int) *RateLimiter {
	return &RateLimiter{
		window:  window,
		ceiling: ceiling,
		now:     time.Now,
	}
}

// Allow 记一条消息
// 返回 false 表示该连接已超限，调用方必须强制断开
// 超限后的后续调用仍然返回 false，但 Tripped 只会翻转一次
func (rl *RateLimiter) Allow() bool {
	if rl.tripped {
		return false
	}

	now := rl.now()

	if rl.windowStart.IsZero() || now.Sub(rl.windowStart) >= rl.window {
		rl.windowStart = now
		rl.count = 0
	}

	rl.count++

	if rl.count > rl.ceiling {
		rl.tripped = true
		return false
	}

	return true
}

// Tripped 报告该连接是否已经触发过断开
func (rl *RateLimiter) Tripped() bool {
	return rl.tripped
}
