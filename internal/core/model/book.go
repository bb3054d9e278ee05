// Package model 定义报价器中使用的核心数据结构。
// 包含价格档位、快照消息、增量消息与报价记录。
package model

import (
	"github.com/shopspring/decimal"
)

// ExchangeBinance Binance 交易所标识
const ExchangeBinance = "binance"

// Side 订单簿方向
type Side string

const (
	// SideBid 买盘，按价格降序排列
	SideBid Side = "bid"
	// SideAsk 卖盘，按价格升序排列
	SideAsk Side = "ask"
)

// Level 订单簿价格档位
// 数量为 0 表示删除该价格档位，不会被存储。
type Level struct {
	// Price 价格
	Price decimal.Decimal
	// Qty 数量
	Qty decimal.Decimal
}

// NewLevel 从字符串创建价格档位
// 参数 price: 价格字符串，如 "50000.10"
// 参数 qty: 数量字符串，如 "1.5"
func NewLevel(price, qty string) (Level, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return Level{}, err
	}
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return Level{}, err
	}
	return Level{Price: p, Qty: q}, nil
}

// IsRemoval 是否为删除指令（数量为 0）
func (l Level) IsRemoval() bool {
	return l.Qty.IsZero()
}

// Snapshot 订单簿快照（REST depth 接口）
type Snapshot struct {
	// Symbol 交易对，如 BTCUSDT
	Symbol string
	// Sequence 快照对应的 lastUpdateId
	Sequence int64
	// Bids 买盘档位
	Bids []Level
	// Asks 卖盘档位
	Asks []Level
}

// DiffMessage 订单簿增量消息（depthUpdate）
// 覆盖序列号区间 [FirstSeq, LastSeq]。
type DiffMessage struct {
	// Symbol 交易对
	Symbol string
	// FirstSeq 本消息首个序列号（U）
	FirstSeq int64
	// LastSeq 本消息末个序列号（u）
	LastSeq int64
	// EventTimeMs 交易所事件时间（毫秒）
	EventTimeMs int64
	// ArrivedAtUnixNs 本机收到消息的时间戳（纳秒）
	ArrivedAtUnixNs int64
	// Bids 买盘变更
	Bids []Level
	// Asks 卖盘变更
	Asks []Level
}

// StreamMetrics 增量流连接指标
type StreamMetrics struct {
	// MessageCount 收到的消息数
	MessageCount int64
	// DiffCount 转发的增量数
	DiffCount int64
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64
	// LastMessageAgeMs 最后消息距今时间（毫秒）
	LastMessageAgeMs int64
}
