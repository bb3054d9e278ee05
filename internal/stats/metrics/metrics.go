// Package metrics 定义报价器的 Prometheus 指标。
// 所有方法对 nil *Collector 安全，未启用指标时直接传 nil。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orderbook-quoter/internal/core/model"
)

const namespace = "quoter"

// Collector 报价器指标集合
type Collector struct {
	registry *prometheus.Registry

	resyncs     *prometheus.CounterVec
	diffs       *prometheus.CounterVec
	parseErrors prometheus.Counter
	quotes      prometheus.Counter
	feedLag     prometheus.Histogram

	spread       prometheus.Gauge
	volatility   prometheus.Gauge
	midPrice     prometheus.Gauge
	lastSequence prometheus.Gauge
	syncState    prometheus.Gauge
}

// New 创建并注册指标
// 参数 symbol: 交易对，作为常量标签
func New(symbol string) *Collector {
	labels := prometheus.Labels{"symbol": symbol}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "resyncs_total", Help: "Resynchronisations by reason", ConstLabels: labels,
		}, []string{"reason"}),
		diffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "diffs_total", Help: "Diff messages by outcome", ConstLabels: labels,
		}, []string{"outcome"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "parse_errors_total", Help: "Unparsable stream payloads", ConstLabels: labels,
		}),
		quotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "quotes_total", Help: "Quotes emitted", ConstLabels: labels,
		}),
		feedLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "feed_lag_ms", Help: "Diff arrival minus exchange event time",
			ConstLabels: labels, Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		spread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "spread", Help: "Current suggested spread ratio", ConstLabels: labels,
		}),
		volatility: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "volatility", Help: "Current volatility estimate", ConstLabels: labels,
		}),
		midPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "mid_price", Help: "Current mid price", ConstLabels: labels,
		}),
		lastSequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_sequence", Help: "Last applied update id", ConstLabels: labels,
		}),
		syncState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sync_state", Help: "0=unsynced 1=awaiting_first_diff 2=synced", ConstLabels: labels,
		}),
	}

	c.registry.MustRegister(
		c.resyncs, c.diffs, c.parseErrors, c.quotes, c.feedLag,
		c.spread, c.volatility, c.midPrice, c.lastSequence, c.syncState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry 返回底层注册表
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// IncResync 记录一次重同步
// 参数 reason: gap / stream_closed / snapshot_failed / sync_timeout / invalid_state
func (c *Collector) IncResync(reason string) {
	if c == nil {
		return
	}
	c.resyncs.WithLabelValues(reason).Inc()
}

// IncDiff 记录一条增量的处理结果（applied / dropped）
func (c *Collector) IncDiff(outcome string) {
	if c == nil {
		return
	}
	c.diffs.WithLabelValues(outcome).Inc()
}

// IncParseError 记录一次解析失败
func (c *Collector) IncParseError() {
	if c == nil {
		return
	}
	c.parseErrors.Inc()
}

// ObserveFeedLag 记录增量事件时延（毫秒）
func (c *Collector) ObserveFeedLag(ms float64) {
	if c == nil {
		return
	}
	c.feedLag.Observe(ms)
}

// SetSync 更新同步状态与序列号
func (c *Collector) SetSync(state int, lastSequence int64) {
	if c == nil {
		return
	}
	c.syncState.Set(float64(state))
	c.lastSequence.Set(float64(lastSequence))
}

// ObserveQuote 记录一条报价
func (c *Collector) ObserveQuote(q *model.Quote) {
	if c == nil || q == nil {
		return
	}
	c.quotes.Inc()
	c.spread.Set(q.Spread)
	c.volatility.Set(q.Volatility)
	c.midPrice.Set(q.MidPrice)
}
