package backend

import (
	"sync"
	"time"
)

// ============================================================================
//                              查找间隔
// ============================================================================

// Interval 查找间隔：无新结果时按倍数退避到上限，发现新节点后回到基础间隔
type Interval struct {
	mu   sync.Mutex
	base time.Duration
	max  time.Duration
	cur  time.Duration
}

// NewInterval 创建间隔计算器
func NewInterval(base, max time.Duration) *Interval {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Interval{base: base, max: max, cur: base}
}

// Next 返回本轮等待时长并推进退避
func (i *Interval) Next() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	d := i.cur
	i.cur *= 2
	if i.cur > i.max {
		i.cur = i.max
	}
	return d
}

// Reset 回到基础间隔
func (i *Interval) Reset() {
	i.mu.Lock()
	i.cur = i.base
	i.mu.Unlock()
}

// Current 下一次 Next 将返回的值
func (i *Interval) Current() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cur
}
