// Package backoff 实现分级指数退避重同步机制。
// 序列号缺口 / 连接断开后使用短基础延迟，快照失败等后使用长基础延迟；
// 连续失败时按指数增长，直到上限，可选抖动。
package backoff

import (
	"math/rand"
	"time"
)

// Tier 退避级别
type Tier int

const (
	// TierShort 短延迟（缺口、连接断开、同步超时）
	TierShort Tier = iota
	// TierLong 长延迟（快照失败、状态错误）
	TierLong
)

// String 返回级别名称
func (t Tier) String() string {
	switch t {
	case TierShort:
		return "short"
	case TierLong:
		return "long"
	default:
		return "unknown"
	}
}

// maxShift 指数上限，防止位移溢出
const maxShift = 30

// Backoff 分级指数退避计算器
// 每次调用 Next() 返回下一次重试的等待时间
type Backoff struct {
	// short 短级别基础等待时间
	short time.Duration
	// long 长级别基础等待时间
	long time.Duration
	// max 最大等待时间
	max time.Duration
	// jitter 抖动比例（0-1），例如 0.2 表示 ±20%
	jitter float64
	// attempt 连续失败次数
	attempt int
	// rnd 随机源，返回 [0,1)
	rnd func() float64
}

// New 创建新的退避计算器
// 参数 short: 短级别基础等待时间（默认 2s）
// 参数 long: 长级别基础等待时间（默认 5s）
// 参数 max: 最大等待时间
// 参数 jitter: 抖动比例
func New(short, long, max time.Duration, jitter float64) *Backoff {
	if max < short {
		max = short
	}
	if max < long {
		max = long
	}
	return &Backoff{
		short:  short,
		long:   long,
		max:    max,
		jitter: jitter,
		rnd:    rand.Float64,
	}
}

// Base 返回级别对应的基础等待时间
func (b *Backoff) Base(tier Tier) time.Duration {
	if tier == TierLong {
		return b.long
	}
	return b.short
}

// Next 获取下次重试的等待时间
// 计算公式: base(tier) * 2^attempt，限制在 max 内，然后应用抖动
func (b *Backoff) Next(tier Tier) time.Duration {
	shift := b.attempt
	if shift > maxShift {
		shift = maxShift
	}
	base := b.Base(tier)
	delay := base * time.Duration(int64(1)<<shift)
	if delay > b.max || delay < base {
		delay = b.max
	}

	if b.jitter > 0 {
		jitterFactor := 1.0 + (b.rnd()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * jitterFactor)
		if delay > b.max {
			delay = b.max
		}
	}

	b.attempt++
	return delay
}

// Reset 重置退避计算器
// 在同步尝试进入 SYNCED 后调用
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 获取当前连续失败次数
func (b *Backoff) Attempt() int {
	return b.attempt
}
