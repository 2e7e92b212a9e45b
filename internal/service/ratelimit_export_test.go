package service

import "time"

// SetNow 替换限流器的时钟，只给测试用
func (rl *RateLimiter) SetNow(now func() time.Time) {
	rl.now = now
}
