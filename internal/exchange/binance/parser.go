// Package binance 实现 Binance 深度消息解析。
// 字段映射: U -> FirstSeq, u -> LastSeq, E -> EventTimeMs
package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"orderbook-quoter/internal/core/model"
	"orderbook-quoter/internal/util/timeutil"
)

// ErrMalformedMessage 消息格式错误
var ErrMalformedMessage = errors.New("消息格式错误")

// Parser Binance 消息解析器
type Parser struct {
	// symbol 订阅的交易对（大写），其他交易对的消息被忽略
	symbol string
}

// NewParser 创建 Binance 消息解析器
// 参数 symbol: 交易对，如 BTCUSDT
func NewParser(symbol string) *Parser {
	return &Parser{symbol: strings.ToUpper(symbol)}
}

// Parse 解析 Binance WebSocket 消息为 DiffMessage
// 参数 data: 原始消息字节
// 返回: 非 depthUpdate 或其他交易对的消息返回 nil, nil
func (p *Parser) Parse(data []byte) (*model.DiffMessage, error) {
	arrivedAt := timeutil.NowNano()

	var msg DepthUpdate
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if msg.EventType != "depthUpdate" {
		return nil, nil
	}
	symbol := strings.ToUpper(msg.Symbol)
	if p.symbol != "" && symbol != p.symbol {
		return nil, nil
	}

	if msg.FirstUpdateID <= 0 || msg.FinalUpdateID < msg.FirstUpdateID {
		return nil, fmt.Errorf("%w: update id 区间无效 U=%d u=%d", ErrMalformedMessage, msg.FirstUpdateID, msg.FinalUpdateID)
	}

	bids, err := ParseLevels(msg.Bids)
	if err != nil {
		return nil, fmt.Errorf("解析买盘失败: %w", err)
	}
	asks, err := ParseLevels(msg.Asks)
	if err != nil {
		return nil, fmt.Errorf("解析卖盘失败: %w", err)
	}

	return &model.DiffMessage{
		Symbol:          symbol,
		FirstSeq:        msg.FirstUpdateID,
		LastSeq:         msg.FinalUpdateID,
		EventTimeMs:     msg.EventTimeMs,
		ArrivedAtUnixNs: arrivedAt,
		Bids:            bids,
		Asks:            asks,
	}, nil
}

// ParseLevels 解析 [[price, qty], ...] 档位列表
// 价格必须为正，数量不能为负（0 表示删除）。
func ParseLevels(raw [][]string) ([]model.Level, error) {
	levels := make([]model.Level, 0, len(raw))
	for i, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("%w: 第 %d 档字段不足", ErrMalformedMessage, i)
		}
		lvl, err := model.NewLevel(pair[0], pair[1])
		if err != nil {
			return nil, fmt.Errorf("%w: 第 %d 档 %v", ErrMalformedMessage, i, err)
		}
		if !lvl.Price.IsPositive() {
			return nil, fmt.Errorf("%w: 第 %d 档价格非正 %s", ErrMalformedMessage, i, pair[0])
		}
		if lvl.Qty.IsNegative() {
			return nil, fmt.Errorf("%w: 第 %d 档数量为负 %s", ErrMalformedMessage, i, pair[1])
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}
