package clock

import (
	"sync"
	"time"
)

// Countdown 是一个只触发一次的倒计时
// 房间淘汰、主持人侧的各种计时都复用它，不再各自维护 time.Timer
type Countdown struct {
	mu       sync.Mutex
	duration time.Duration
	onFire   func()
	timer    *time.Timer
	stopped  bool
}

func NewCountdown(duration time.Duration, onFire func()) *Countdown {
	return &Countdown{
		duration: duration,
		onFire:   onFire,
	}
}

// Start 启动倒计时，重复调用等价于 Reset
func (cd *Countdown) Start() {
	cd.Reset()
}

// Reset 重新开始计时，已经触发或停止过的倒计时也可以复活
func (cd *Countdown) Reset() {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	cd.stopped = false

	if cd.timer != nil {
		cd.timer.Stop()
	}

	cd.timer = time.AfterFunc(cd.duration, cd.fire)
}

// Stop 取消还未触发的倒计时
// 与触发竞争时，先拿到锁的一方生效
func (cd *Countdown) Stop() {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	cd.stopped = true

	if cd.timer != nil {
		cd.timer.Stop()
		cd.timer = nil
	}
}

func (cd *Countdown) fire() {
	cd.mu.Lock()

	if cd.stopped {
		cd.mu.Unlock()
		return
	}

	cd.timer = nil
	onFire := cd.onFire

	cd.mu.Unlock()

	if onFire != nil {
		onFire()
	}
}
