// Package latency 统计增量流的时延。
// 事件时延 = 本机到达时间 - 交易所事件时间；到达间隔 = 相邻两条增量的到达时间差。
package latency

import (
	"slices"
	"sync"

	"github.com/gammazero/deque"

	"orderbook-quoter/internal/core/model"
	"orderbook-quoter/internal/util/timeutil"
)

// FeedStats 增量流时延统计快照（滚动窗口）
// 单位：毫秒。
type FeedStats struct {
	// Count 本次尝试的样本总数
	Count int64

	// EventP50Ms 基于交易所事件时间的 P50 时延（毫秒）
	EventP50Ms float64
	// EventP90Ms 基于交易所事件时间的 P90 时延（毫秒）
	EventP90Ms float64
	// EventP99Ms 基于交易所事件时间的 P99 时延（毫秒）
	EventP99Ms float64

	// GapP50Ms 到达间隔 P50（毫秒）
	GapP50Ms float64
	// GapP99Ms 到达间隔 P99（毫秒）
	GapP99Ms float64
}

type rollingWindow struct {
	size  int
	buf   deque.Deque[int64]
	count int64
}

func (w *rollingWindow) add(v int64) {
	w.count++
	if w.size <= 0 {
		return
	}
	w.buf.PushBack(v)
	if w.buf.Len() > w.size {
		w.buf.PopFront()
	}
}

func (w *rollingWindow) reset() {
	w.buf.Clear()
	w.count = 0
}

// quantiles 取排序后下标 floor((n-1)*q) 处的值
func (w *rollingWindow) quantiles(qs ...float64) []int64 {
	values := make([]int64, len(qs))
	n := w.buf.Len()
	if n == 0 {
		return values
	}

	tmp := make([]int64, n)
	for i := range tmp {
		tmp[i] = w.buf.At(i)
	}
	slices.Sort(tmp)

	for i, q := range qs {
		switch {
		case q <= 0:
			values[i] = tmp[0]
		case q >= 1:
			values[i] = tmp[n-1]
		default:
			values[i] = tmp[int(float64(n-1)*q)]
		}
	}
	return values
}

// Tracker 增量流时延追踪器（并发安全）
type Tracker struct {
	mu sync.Mutex

	event rollingWindow
	gap   rollingWindow

	// lastArrivedNs 上一条增量的到达时间
	lastArrivedNs int64
}

// NewTracker 创建时延追踪器
// 参数 windowSize: 滚动窗口大小（建议 10000），用于 P50/P90/P99。
func NewTracker(windowSize int) *Tracker {
	return &Tracker{
		event: rollingWindow{size: windowSize},
		gap:   rollingWindow{size: windowSize},
	}
}

// Add 记录一条增量
// EventTimeMs<=0 时不记录事件时延；首条增量不记录到达间隔。
func (t *Tracker) Add(d *model.DiffMessage) {
	if d == nil || d.ArrivedAtUnixNs <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if d.EventTimeMs > 0 {
		t.event.add(d.ArrivedAtUnixNs - timeutil.MsToNano(d.EventTimeMs))
	}
	if t.lastArrivedNs > 0 && d.ArrivedAtUnixNs >= t.lastArrivedNs {
		t.gap.add(d.ArrivedAtUnixNs - t.lastArrivedNs)
	}
	t.lastArrivedNs = d.ArrivedAtUnixNs
}

// Reset 清空窗口与到达间隔基准（每次同步尝试开始时调用）
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.event.reset()
	t.gap.reset()
	t.lastArrivedNs = 0
	t.mu.Unlock()
}

// Stats 获取统计快照
func (t *Tracker) Stats() FeedStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	ev := t.event.quantiles(0.50, 0.90, 0.99)
	gp := t.gap.quantiles(0.50, 0.99)

	return FeedStats{
		Count:      t.event.count,
		EventP50Ms: nsToMs(ev[0]),
		EventP90Ms: nsToMs(ev[1]),
		EventP99Ms: nsToMs(ev[2]),
		GapP50Ms:   nsToMs(gp[0]),
		GapP99Ms:   nsToMs(gp[1]),
	}
}

func nsToMs(ns int64) float64 {
	return float64(ns) / 1_000_000.0
}
