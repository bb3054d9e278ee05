// Package book 维护单交易对的本地订单簿镜像。
// 通过快照 + 增量（U/u 序列号）对账重建订单簿，检测序列号缺口。
// 发现缺口时整个实例作废，由上层从新快照重建，从不做局部修复。
package book

import (
	"fmt"

	"github.com/shopspring/decimal"

	"orderbook-quoter/internal/core/model"
)

// State 同步状态
type State int

const (
	// StateUnsynced 刚创建，尚未应用快照
	StateUnsynced State = iota
	// StateAwaitingFirstDiff 已应用快照，等待跨越快照序列号的首条增量
	StateAwaitingFirstDiff
	// StateSynced 已同步
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateUnsynced:
		return "unsynced"
	case StateAwaitingFirstDiff:
		return "awaiting_first_diff"
	case StateSynced:
		return "synced"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome 增量处理结果
type Outcome int

const (
	// OutcomeApplied 增量已应用，游标前移
	OutcomeApplied Outcome = iota
	// OutcomeDropped 增量早于游标（或早于快照），已忽略
	OutcomeDropped
)

func (o Outcome) String() string {
	if o == OutcomeApplied {
		return "applied"
	}
	return "dropped"
}

var two = decimal.NewFromInt(2)

// OrderBook 本地订单簿
// 注意：单写者结构，所有方法须由同一 goroutine 调用；每次同步尝试创建新实例。
type OrderBook struct {
	// symbol 交易对
	symbol string
	// bids 买盘（降序）
	bids *LevelSet
	// asks 卖盘（升序）
	asks *LevelSet
	// lastSequence 同步游标（lastUpdateId）
	lastSequence int64
	// state 同步状态
	state State
}

// New 创建空订单簿（StateUnsynced）
func New(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   NewLevelSet(model.SideBid),
		asks:   NewLevelSet(model.SideAsk),
		state:  StateUnsynced,
	}
}

// Symbol 交易对

// State 当前同步状态
func (b *OrderBook) State() State { return b.state }

// LastSequence 当前游标
func (b *OrderBook) LastSequence() int64 { return b.lastSequence }

// ApplySnapshot 应用快照
// 仅允许在 StateUnsynced 调用；买卖盘整体替换，游标置为快照序列号。
func (b *OrderBook) ApplySnapshot(s *model.Snapshot) error {
	if b.state != StateUnsynced {
		return fmt.Errorf("%w: 快照只能在 %s 状态应用，当前 %s", ErrInvalidState, StateUnsynced, b.state)
	}
	if s == nil {
		return fmt.Errorf("%w: 快照为空", ErrInvalidState)
	}

	bids := NewLevelSet(model.SideBid)
	if err := bids.Replace(s.Bids); err != nil {
		return fmt.Errorf("加载快照买盘失败: %w", err)
	}
	asks := NewLevelSet(model.SideAsk)
	if err := asks.Replace(s.Asks); err != nil {
		return fmt.Errorf("加载快照卖盘失败: %w", err)
	}

	b.bids = bids
	b.asks = asks
	b.lastSequence = s.Sequence
	b.state = StateAwaitingFirstDiff
	return nil
}

// ApplyDiff 应用增量
// StateAwaitingFirstDiff: 仅接受 U <= last+1 <= u 的增量并进入 StateSynced，其余丢弃。
// StateSynced: U > last+1 返回 *SequenceGapError；u < last+1 丢弃；其余应用并前移游标。
// 任何返回错误的路径都不修改订单簿。
func (b *OrderBook) ApplyDiff(d *model.DiffMessage) (Outcome, error) {
	if d == nil || d.FirstSeq > d.LastSeq {
		return OutcomeDropped, ErrInvalidDiff
	}

	next := b.lastSequence + 1

	switch b.state {
	case StateAwaitingFirstDiff:
		if d.FirstSeq <= next && next <= d.LastSeq {
			if err := b.applyChanges(d); err != nil {
				return OutcomeDropped, err
			}
			b.lastSequence = d.LastSeq
			b.state = StateSynced
			return OutcomeApplied, nil
		}
		return OutcomeDropped, nil

	case StateSynced:
		if d.FirstSeq > next {
			return OutcomeDropped, &SequenceGapError{LastSequence: b.lastSequence, FirstSeq: d.FirstSeq}
		}
		if d.LastSeq < next {
			return OutcomeDropped, nil
		}
		if err := b.applyChanges(d); err != nil {
			return OutcomeDropped, err
		}
		b.lastSequence = d.LastSeq
		return OutcomeApplied, nil

	default:
		return OutcomeDropped, fmt.Errorf("%w: 增量不能在 %s 状态应用", ErrInvalidState, b.state)
	}
}

// applyChanges 按顺序应用买卖盘变更
// 先校验全部数量非负，保证出错时不留下部分变更。
func (b *OrderBook) applyChanges(d *model.DiffMessage) error {
	for _, l := range d.Bids {
		if l.Qty.IsNegative() {
			return fmt.Errorf("%w: 买盘数量为负 %s@%s", ErrInvalidDiff, l.Qty, l.Price)
		}
	}
	for _, l := range d.Asks {
		if l.Qty.IsNegative() {
			return fmt.Errorf("%w: 卖盘数量为负 %s@%s", ErrInvalidDiff, l.Qty, l.Price)
		}
	}

	// 数量已校验非负，Apply 不会返回错误
	for _, l := range d.Bids {
		_ = b.bids.Apply(l)
	}
	for _, l := range d.Asks {
		_ = b.asks.Apply(l)
	}
	return nil
}

// BestBid 买一
func (b *OrderBook) BestBid() (model.Level, bool) {
	return b.bids.Best()
}

// BestAsk 卖一
func (b *OrderBook) BestAsk() (model.Level, bool) {
	return b.asks.Best()
}

// MidPrice 中间价 (BestBid + BestAsk) / 2
// 仅在 StateSynced 且买卖盘均非空时有效。
func (b *OrderBook) MidPrice() (float64, bool) {
	if b.state != StateSynced {
		return 0, false
	}
	bid, ok := b.bids.Best()
	if !ok {
		return 0, false
	}
	ask, ok := b.asks.Best()
	if !ok {
		return 0, false
	}
	return bid.Price.Add(ask.Price).Div(two).InexactFloat64(), true
}

// Bids 买盘档位（降序）
// 参数 limit: 最多返回档位数，<=0 表示全部
func (b *OrderBook) Bids(limit int) []model.Level {
	return b.bids.Levels(limit)
}

// Asks 卖盘档位（升序）
// 参数 limit: 最多返回档位数，<=0 表示全部
func (b *OrderBook) Asks(limit int) []model.Level {
	return b.asks.Levels(limit)
}

// Depth 导出当前订单簿为快照结构（用于测试与排查）
func (b *OrderBook) Depth(limit int) *model.Snapshot {
	return &model.Snapshot{
		Symbol:   b.symbol,
		Sequence: b.lastSequence,
		Bids:     b.Bids(limit),
		Asks:     b.Asks(limit),
	}
}
