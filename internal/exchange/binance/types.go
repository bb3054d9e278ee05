// Package binance 定义 Binance 现货深度消息类型。
package binance

// SubscribeRequest Binance WebSocket 订阅请求
// 订阅 <symbol>@depth 增量深度流。
type SubscribeRequest struct {
	// Method 订阅方法: SUBSCRIBE
	Method string `json:"method"`
	// Params 订阅参数列表，如 "btcusdt@depth"
	Params []string `json:"params"`
	// ID 请求 ID
	ID int64 `json:"id"`
}

// SubscribeResponse Binance WebSocket 订阅响应
// 成功形如 {"result":null,"id":1}，失败形如 {"error":{"code":2,"msg":"..."},"id":1}。
type SubscribeResponse struct {
	// Result 结果（成功为 null）
	Result any `json:"result"`
	// Error 错误信息（成功时缺省）
	Error *SubscribeError `json:"error"`
	// ID 请求 ID
	ID *int64 `json:"id"`
}

// SubscribeError Binance WebSocket 请求错误
type SubscribeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// DepthUpdate Binance 增量深度推送（depthUpdate）
// 字段映射：
// - U: 本消息首个 update id -> DiffMessage.FirstSeq
// - u: 本消息末个 update id -> DiffMessage.LastSeq
// - b/a: [[price, qty], ...]（字符串），qty 为 0 表示删除该档
type DepthUpdate struct {
	// EventType 事件类型: depthUpdate
	EventType string `json:"e"`
	// EventTimeMs 事件时间（毫秒）
	EventTimeMs int64 `json:"E"`
	// Symbol 交易对（大写）
	Symbol string `json:"s"`
	// FirstUpdateID 首个 update id
	FirstUpdateID int64 `json:"U"`
	// FinalUpdateID 末个 update id
	FinalUpdateID int64 `json:"u"`
	// Bids 买盘变更
	Bids [][]string `json:"b"`
	// Asks 卖盘变更
	Asks [][]string `json:"a"`
}

// DepthSnapshot REST 深度快照响应（GET /api/v3/depth）
type DepthSnapshot struct {
	// LastUpdateID 快照对应的 update id
	LastUpdateID int64 `json:"lastUpdateId"`
	// Bids 买盘档位
	Bids [][]string `json:"bids"`
	// Asks 卖盘档位
	Asks [][]string `json:"asks"`
}
