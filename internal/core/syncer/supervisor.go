// Package syncer 驱动订单簿同步生命周期。
// 每次尝试：建立增量流 → 获取快照 → 应用快照 → 消费增量并报价；
// 任一失败丢弃整个尝试（订单簿、波动率窗口、连接），退避后从新快照重来。
package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"orderbook-quoter/internal/config"
	"orderbook-quoter/internal/core/book"
	"orderbook-quoter/internal/core/model"
	"orderbook-quoter/internal/core/quote"
	"orderbook-quoter/internal/stats/latency"
	"orderbook-quoter/internal/stats/metrics"
	"orderbook-quoter/internal/stats/volatility"
	"orderbook-quoter/internal/util/backoff"
	"orderbook-quoter/internal/util/timeutil"
)

// SnapshotFetcher 快照获取器
type SnapshotFetcher interface {
	Fetch(ctx context.Context, symbol string) (*model.Snapshot, error)
}

// DiffStream 增量流
// Diffs 通道关闭表示流结束，原因由 Err 给出。
type DiffStream interface {
	Diffs() <-chan *model.DiffMessage
	Err() error
	Close() error
	Metrics() model.StreamMetrics
}

// Dialer 建立已订阅的增量流
type Dialer func(ctx context.Context) (DiffStream, error)

// QuoteSink 报价输出
type QuoteSink interface {
	Emit(q *model.Quote)
}

// Supervisor 同步监督器（单 goroutine 运行）
type Supervisor struct {
	symbol      string
	volCfg      config.VolatilityConfig
	syncTimeout time.Duration

	fetcher SnapshotFetcher
	dial    Dialer
	sink    QuoteSink
	quoter  *quote.Quoter
	backoff *backoff.Backoff
	latency *latency.Tracker
	metrics *metrics.Collector
	logger  *zap.Logger

	// sleep 退避等待，ctx 取消时返回错误
	sleep func(ctx context.Context, d time.Duration) error

	// attempts 已开始的尝试次数
	attempts int64
	// spread 最近一次使用的价差（波动率可用前为初始价差）
	spread float64
}

// New 创建同步监督器
// 参数 m: 指标，可为 nil
func New(cfg *config.Config, fetcher SnapshotFetcher, dial Dialer, sink QuoteSink, logger *zap.Logger, m *metrics.Collector) *Supervisor {
	q := quote.NewQuoter(cfg.Spread)
	syncTimeout := time.Duration(cfg.Sync.SyncTimeoutMs) * time.Millisecond
	if syncTimeout <= 0 {
		syncTimeout = 10 * time.Second
	}
	return &Supervisor{
		symbol:      cfg.Symbol,
		volCfg:      cfg.Volatility,
		syncTimeout: syncTimeout,
		fetcher:     fetcher,
		dial:        dial,
		sink:        sink,
		quoter:      q,
		backoff: backoff.New(
			time.Duration(cfg.Sync.ResyncDelayMs)*time.Millisecond,
			time.Duration(cfg.Sync.SnapshotRetryDelayMs)*time.Millisecond,
			time.Duration(cfg.Sync.MaxDelayMs)*time.Millisecond,
			cfg.Sync.Jitter,
		),
		latency: latency.NewTracker(10000),
		metrics: m,
		logger:  logger.Named("syncer"),
		sleep:   sleepCtx,
		spread:  q.Initial(),
	}
}

// Run 循环执行同步尝试，直到 ctx 取消
// 不设重试上限；ctx 取消时返回 nil。
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		err := s.RunAttempt(ctx)
		if ctx.Err() != nil {
			s.logger.Info("同步监督器退出", zap.Int64("attempts", s.attempts))
			return nil
		}

		tier, reason := Classify(err)
		s.metrics.IncResync(reason)
		delay := s.backoff.Next(tier)

		fields := []zap.Field{
			zap.String("reason", reason),
			zap.Duration("delay", delay),
			zap.Int("consecutive_failures", s.backoff.Attempt()),
			zap.Error(err),
		}
		if reason == ReasonInvalidState {
			s.logger.Error("同步尝试异常结束，准备重同步", fields...)
		} else {
			s.logger.Warn("同步尝试结束，准备重同步", fields...)
		}

		if err := s.sleep(ctx, delay); err != nil {
			s.logger.Info("同步监督器退出", zap.Int64("attempts", s.attempts))
			return nil
		}
	}
}

// RunAttempt 执行一次同步尝试
// 返回: 尝试结束原因，正常情况下不会返回 nil
func (s *Supervisor) RunAttempt(ctx context.Context) error {
	s.attempts++
	s.spread = s.quoter.Initial()
	s.metrics.SetSync(int(book.StateUnsynced), 0)
	logger := s.logger.With(zap.Int64("attempt", s.attempts))

	// 先订阅增量流再请求快照，请求期间的增量在通道中缓冲
	stream, err := s.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrStreamClosed, err)
	}
	defer stream.Close()

	snap, err := s.fetcher.Fetch(ctx, s.symbol)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrSnapshotFailed, err)
	}

	ob := book.New(s.symbol)
	if err := ob.ApplySnapshot(snap); err != nil {
		return err
	}
	est := volatility.NewEstimator(s.volCfg)
	s.latency.Reset()
	s.metrics.SetSync(int(ob.State()), ob.LastSequence())

	logger.Info("快照已应用，等待首条增量",
		zap.Int64("last_sequence", ob.LastSequence()),
		zap.Int("bids", len(snap.Bids)),
		zap.Int("asks", len(snap.Asks)),
	)

	timer := time.NewTimer(s.syncTimeout)
	defer timer.Stop()
	timeoutCh := timer.C

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timeoutCh:
			s.logFeedStats(logger, stream)
			return fmt.Errorf("%w: last_sequence=%d", ErrSyncTimeout, ob.LastSequence())

		case d, ok := <-stream.Diffs():
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logFeedStats(logger, stream)
				return fmt.Errorf("%w: %v", ErrStreamClosed, stream.Err())
			}

			if err := s.process(ob, est, d); err != nil {
				s.logFeedStats(logger, stream)
				return err
			}

			if timeoutCh != nil && ob.State() == book.StateSynced {
				timeoutCh = nil
				s.backoff.Reset()
				logger.Info("订单簿已同步", zap.Int64("last_sequence", ob.LastSequence()))
			}
		}
	}
}

// process 应用一条增量，波动率可用时输出报价
func (s *Supervisor) process(ob *book.OrderBook, est *volatility.Estimator, d *model.DiffMessage) error {
	s.latency.Add(d)
	if d.EventTimeMs > 0 && d.ArrivedAtUnixNs > 0 {
		s.metrics.ObserveFeedLag(float64(d.ArrivedAtUnixNs-timeutil.MsToNano(d.EventTimeMs)) / 1e6)
	}

	outcome, err := ob.ApplyDiff(d)
	if err != nil {
		return err
	}
	s.metrics.IncDiff(outcome.String())
	if outcome != book.OutcomeApplied {
		return nil
	}
	s.metrics.SetSync(int(ob.State()), ob.LastSequence())

	mid, ok := ob.MidPrice()
	if !ok {
		return nil
	}
	est.Observe(mid)

	vol, ok := est.Estimate()
	if !ok {
		s.logger.Debug("波动率样本不足，暂不报价",
			zap.Int64("observed", est.Observed()),
			zap.Float64("spread", s.spread),
		)
		return nil
	}

	bid, _ := ob.BestBid()
	ask, _ := ob.BestAsk()
	s.spread = s.quoter.SpreadFor(vol)
	prices := s.quoter.Quote(mid, s.spread)

	q := &model.Quote{
		Symbol:        s.symbol,
		TsUnixMs:      timeutil.NowMs(),
		Sequence:      ob.LastSequence(),
		BestBid:       bid.Price.InexactFloat64(),
		BestAsk:       ask.Price.InexactFloat64(),
		MidPrice:      mid,
		OurBid:        prices.Bid,
		OurAsk:        prices.Ask,
		Spread:        s.spread,
		SpreadPercent: s.spread * 100,
		Volatility:    vol,
	}
	s.sink.Emit(q)
	s.metrics.ObserveQuote(q)
	return nil
}

// Attempts 已开始的尝试次数
func (s *Supervisor) Attempts() int64 {
	return s.attempts
}

// Spread 最近一次使用的价差
func (s *Supervisor) Spread() float64 {
	return s.spread
}

// logFeedStats 尝试结束时输出本次连接指标与时延统计
func (s *Supervisor) logFeedStats(logger *zap.Logger, stream DiffStream) {
	cm := stream.Metrics()
	logger.Info("增量流连接统计",
		zap.Int64("messages", cm.MessageCount),
		zap.Int64("diffs", cm.DiffCount),
		zap.Int64("parse_errors", cm.ParseErrorCount),
		zap.Int64("last_message_age_ms", cm.LastMessageAgeMs),
	)

	st := s.latency.Stats()
	if st.Count == 0 {
		return
	}
	logger.Info("增量流时延统计",
		zap.Int64("count", st.Count),
		zap.Float64("event_p50_ms", st.EventP50Ms),
		zap.Float64("event_p90_ms", st.EventP90Ms),
		zap.Float64("event_p99_ms", st.EventP99Ms),
		zap.Float64("gap_p50_ms", st.GapP50Ms),
		zap.Float64("gap_p99_ms", st.GapP99Ms),
	)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
