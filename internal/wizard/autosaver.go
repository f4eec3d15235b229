package wizard

import (
	"sync"
	"time"
)

// Autosaver 把向导里的连续编辑合并成批量落库。每次 Queue 都会重置
// 静默窗口，窗口内的编辑只产生一次写入；Flush 用于带门槛的前进之前
// 强制落库，Close 在连接断开时尽力保存残留字段。
type Autosaver struct {
	mu       sync.Mutex
	debounce time.Duration
	save     func(fields map[string]interface{})
	pending  map[string]interface{}
	timer    *time.Timer
	closed   bool
}

func NewAutosaver(debounce time.Duration, save func(fields map[string]interface{})) *Autosaver {
	return &Autosaver{
		debounce: debounce,
		save:     save,
		pending:  make(map[string]interface{}),
	}
}

// Queue 合并一批字段修改并重新计时。同名字段后写的覆盖先写的。
func (a *Autosaver) Queue(fields map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || len(fields) == 0 {
		return
	}
	for k, v := range fields {
		a.pending[k] = v
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.Flush)
}

// Flush 立即写出挂起的字段。没有挂起内容时不触发回调。
func (a *Autosaver) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if len(a.pending) == 0 {
		a.mu.Unlock()
		return
	}
	batch := a.pending
	a.pending = make(map[string]interface{})
	a.mu.Unlock()

	// 回调放在锁外，落库慢不会阻塞新的编辑进队
	a.save(batch)
}

// Close 之后的 Queue 会被丢弃
func (a *Autosaver) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.Flush()
}
