package model

// Quote 建议报价记录
// 每处理一条增量且波动率可用时产生一条，仅用于展示/记录，绝不下单。
type Quote struct {
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// TsUnixMs 生成时间（毫秒）
	TsUnixMs int64 `json:"ts_unix_ms"`
	// Sequence 产生报价时订单簿的 lastUpdateId
	Sequence int64 `json:"sequence"`
	// BestBid 买一价
	BestBid float64 `json:"best_bid"`
	// BestAsk 卖一价
	BestAsk float64 `json:"best_ask"`
	// MidPrice 中间价
	MidPrice float64 `json:"mid_price"`
	// OurBid 建议买价
	OurBid float64 `json:"our_bid"`
	// OurAsk 建议卖价
	OurAsk float64 `json:"our_ask"`
	// Spread 价差比例（0.002 表示 0.2%）
	Spread float64 `json:"spread"`
	// SpreadPercent 价差百分比
	SpreadPercent float64 `json:"spread_percent"`
	// Volatility 平滑后收益率的标准差
	Volatility float64 `json:"volatility"`
}
