// Package output 汇总报价输出：结构化日志与 JSONL 文件。
package output

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"orderbook-quoter/internal/core/model"
	"orderbook-quoter/internal/output/jsonl"
)

// QuoteSink 报价输出
type QuoteSink struct {
	logger *zap.Logger
	// writer JSONL 写入器，可为 nil
	writer *jsonl.QuoteWriter

	// dropWarned 是否已提示过缓冲区满
	dropWarned atomic.Bool
}

// NewQuoteSink 创建报价输出
// 参数 writer: JSONL 写入器，nil 表示不写文件
func NewQuoteSink(logger *zap.Logger, writer *jsonl.QuoteWriter) *QuoteSink {
	return &QuoteSink{
		logger: logger.Named("quote"),
		writer: writer,
	}
}

// Emit 输出一条报价
func (s *QuoteSink) Emit(q *model.Quote) {
	if q == nil {
		return
	}
	s.logger.Info("报价",
		zap.String("symbol", q.Symbol),
		zap.Int64("sequence", q.Sequence),
		zap.Float64("best_bid", q.BestBid),
		zap.Float64("best_ask", q.BestAsk),
		zap.Float64("mid_price", q.MidPrice),
		zap.Float64("our_bid", q.OurBid),
		zap.Float64("our_ask", q.OurAsk),
		zap.Float64("spread_percent", q.SpreadPercent),
		zap.Float64("volatility", q.Volatility),
	)

	if s.writer == nil {
		return
	}
	if err := s.writer.Write(q); err != nil {
		if errors.Is(err, jsonl.ErrBufferFull) {
			if s.dropWarned.CompareAndSwap(false, true) {
				s.logger.Warn("报价输出缓冲区已满，开始丢弃记录", zap.String("path", s.writer.Path()))
			}
			return
		}
		s.logger.Warn("写入报价失败", zap.Error(err))
	}
}

// Close 关闭文件输出
func (s *QuoteSink) Close() error {
	if s.writer == nil {
		return nil
	}
	if d := s.writer.Dropped(); d > 0 {
		s.logger.Warn("报价输出期间有记录被丢弃", zap.Int64("dropped", d))
	}
	return s.writer.Close()
}
