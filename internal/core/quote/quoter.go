// Package quote 根据波动率计算建议价差与报价。
// spread = clamp(multiplier × volatility, min, max)
// bid = mid × (1 - spread/2), ask = mid × (1 + spread/2)
package quote

import (
	"orderbook-quoter/internal/config"
)

// Prices 建议买卖价
type Prices struct {
	// Bid 建议买价
	Bid float64
	// Ask 建议卖价
	Ask float64
}

// Quoter 价差报价器（无状态，只持有配置）
type Quoter struct {
	// multiplier 波动率乘数（默认 0.003）
	multiplier float64
	// min 最小价差（默认 0.001）
	min float64
	// max 最大价差（默认 0.01）
	max float64
	// initial 波动率可用前的初始价差（默认 0.002）
	initial float64
}

// NewQuoter 创建报价器
// 参数 cfg: 价差配置，应已通过 config.Validate
func NewQuoter(cfg config.SpreadConfig) *Quoter {
	return &Quoter{
		multiplier: cfg.VolMultiplier,
		min:        cfg.Min,
		max:        cfg.Max,
		initial:    cfg.Initial,
	}
}

// Initial 波动率可用前的初始价差
func (q *Quoter) Initial() float64 {
	return q.initial
}

// SpreadFor 由波动率计算价差，结果落在 [min, max]（含边界）
func (q *Quoter) SpreadFor(volatility float64) float64 {
	s := q.multiplier * volatility
	if s < q.min {
		return q.min
	}
	if s > q.max {
		return q.max
	}
	return s
}

// Quote 以中间价为中心对称报价
func (q *Quoter) Quote(mid, spread float64) Prices {
	half := spread / 2
	return Prices{
		Bid: mid * (1 - half),
		Ask: mid * (1 + half),
	}
}
