// Package binance 实现 Binance 现货增量深度流客户端。
// 连接地址: wss://stream.binance.com:9443/ws
// 订阅频道: <symbol>@depth
// 心跳机制: 协议层 ping/pong
// 客户端不做内部重连：读取失败即关闭增量通道，由上层整体重同步。
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"orderbook-quoter/internal/config"
	"orderbook-quoter/internal/core/model"
	"orderbook-quoter/internal/stats/metrics"
	"orderbook-quoter/internal/util/timeutil"
)

// ErrClientClosed 客户端已被主动关闭
var ErrClientClosed = errors.New("Binance 客户端已关闭")

// diffBufferSize 增量通道缓冲，覆盖快照请求期间到达的增量
const diffBufferSize = 4096

// subscribeID 订阅请求 ID
const subscribeID = 1

// Client Binance WebSocket 客户端
type Client struct {
	// cfg Binance 配置
	cfg config.BinanceConfig
	// symbol 交易对（大写）
	symbol string
	// logger 日志记录器
	logger *zap.Logger
	// parser 消息解析器
	parser *Parser
	// metrics 指标（可为 nil）
	metrics *metrics.Collector

	// conn WebSocket 连接
	conn *websocket.Conn
	// connMu 连接锁（写操作与关闭）
	connMu sync.Mutex

	// diffCh 增量输出通道，读取循环退出时关闭
	diffCh chan *model.DiffMessage
	// done 关闭信号
	done chan struct{}
	// closeOnce 保证 Close 幂等
	closeOnce sync.Once

	// err 读取循环退出原因
	err   error
	errMu sync.Mutex

	// messageCount 收到的消息数
	messageCount int64
	// diffCount 转发的增量数
	diffCount int64
	// parseErrCount 解析错误数
	parseErrCount int64
	// lastMsgTime 最后消息时间（纳秒）
	lastMsgTime int64

	// parseErrSampleCount 解析错误计数（用于采样日志）
	parseErrSampleCount uint64
	// lastParseErrLogNs 上次解析错误日志时间（纳秒）
	lastParseErrLogNs int64
}

// NewClient 创建 Binance WebSocket 客户端
// 参数 cfg: Binance 配置
// 参数 symbol: 交易对，如 BTCUSDT
// 参数 logger: 日志记录器
// 参数 m: 指标，可为 nil
func NewClient(cfg config.BinanceConfig, symbol string, logger *zap.Logger, m *metrics.Collector) *Client {
	return &Client{
		cfg:     cfg,
		symbol:  strings.ToUpper(symbol),
		logger:  logger.Named("binance"),
		parser:  NewParser(symbol),
		metrics: m,
		diffCh:  make(chan *model.DiffMessage, diffBufferSize),
		done:    make(chan struct{}),
	}
}

// Dial 建立连接、订阅并启动读取循环
// 返回的客户端在 ctx 取消或连接断开后关闭增量通道。
func Dial(ctx context.Context, cfg config.BinanceConfig, symbol string, logger *zap.Logger, m *metrics.Collector) (*Client, error) {
	c := NewClient(cfg, symbol, logger, m)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	if err := c.Subscribe(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	go c.Run(ctx)
	return c, nil
}

// Connect 建立 WebSocket 连接
// 参数 ctx: 上下文，用于取消连接
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", "orderbook-quoter/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.WSURL, header)
	if err != nil {
		return fmt.Errorf("连接 Binance WebSocket 失败: %w", err)
	}

	readTimeout := c.readTimeout()
	if readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		conn.SetPongHandler(func(string) error {
			atomic.StoreInt64(&c.lastMsgTime, timeutil.NowNano())
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
	}

	c.conn = conn
	c.logger.Info("Binance WebSocket 连接成功", zap.String("url", c.cfg.WSURL))
	return nil
}

// Subscribe 订阅增量深度流并读取订阅确认
// 确认之前到达的深度消息照常转发。
func (c *Client) Subscribe(ctx context.Context) error {
	c.connMu.Lock()
	conn := c.conn
	if conn == nil {
		c.connMu.Unlock()
		return fmt.Errorf("WebSocket 未连接")
	}

	req := SubscribeRequest{
		Method: "SUBSCRIBE",
		Params: []string{strings.ToLower(c.symbol) + "@depth"},
		ID:     subscribeID,
	}
	data, err := json.Marshal(req)
	if err != nil {
		c.connMu.Unlock()
		return fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.connMu.Unlock()
	if err != nil {
		return fmt.Errorf("发送订阅请求失败: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("读取订阅确认失败: %w", err)
		}
		var ack SubscribeResponse
		if json.Unmarshal(msg, &ack) == nil && ack.ID != nil && *ack.ID == subscribeID {
			if ack.Error != nil {
				return fmt.Errorf("订阅被拒绝: code=%d msg=%s", ack.Error.Code, ack.Error.Msg)
			}
			if ack.Result != nil {
				return fmt.Errorf("订阅被拒绝: %v", ack.Result)
			}
			break
		}
		if !c.handleMessage(msg) {
			return ErrClientClosed
		}
	}

	c.logger.Info("Binance 订阅成功", zap.Strings("params", req.Params))
	return nil
}

// Run 启动读取循环，直到连接断开、ctx 取消或 Close
// 退出时关闭增量通道，原因可通过 Err 获取。
func (c *Client) Run(ctx context.Context) {
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.pingLoop(pingCtx)

	// ctx 取消时关闭连接以打断阻塞的读取
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()

	err := c.readLoop()
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	c.setErr(err)
	_ = c.Close()
	close(c.diffCh)
}

func (c *Client) readLoop() error {
	readTimeout := c.readTimeout()
	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return ErrClientClosed
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return ErrClientClosed
			}
			c.logger.Warn("读取 Binance 消息失败", zap.Error(err))
			return fmt.Errorf("读取 Binance 消息失败: %w", err)
		}

		if readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		}

		if !c.handleMessage(data) {
			return ErrClientClosed
		}
	}
}

// handleMessage 解析并转发一条消息
// 返回 false 表示客户端已关闭。
func (c *Client) handleMessage(data []byte) bool {
	atomic.AddInt64(&c.messageCount, 1)
	atomic.StoreInt64(&c.lastMsgTime, timeutil.NowNano())

	diff, err := c.parser.Parse(data)
	if err != nil {
		atomic.AddInt64(&c.parseErrCount, 1)
		c.metrics.IncParseError()
		c.maybeLogParseError(err, data)
		return true
	}
	if diff == nil {
		return true
	}

	select {
	case c.diffCh <- diff:
		atomic.AddInt64(&c.diffCount, 1)
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	intervalMs := c.cfg.PingIntervalMs
	if intervalMs <= 0 {
		intervalMs = int(c.readTimeout().Milliseconds()) / 2
		if intervalMs <= 0 {
			intervalMs = 15000
		}
	}

	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				return
			}
			deadline := time.Now().Add(5 * time.Second)
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline)
			c.connMu.Unlock()
			if err != nil {
				c.logger.Warn("发送 Binance ping 失败", zap.Error(err))
			}
		}
	}
}

// Close 关闭客户端（幂等）
// 增量通道由读取循环在退出时关闭。
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)

		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()

		c.logger.Info("Binance 客户端已关闭")
	})
	return nil
}

// Diffs 获取增量通道
func (c *Client) Diffs() <-chan *model.DiffMessage {
	return c.diffCh
}

// Err 读取循环退出原因（通道关闭后有效）
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Metrics 获取连接指标
func (c *Client) Metrics() model.StreamMetrics {
	lastMsg := atomic.LoadInt64(&c.lastMsgTime)
	var ageMs int64
	if lastMsg > 0 {
		ageMs = (timeutil.NowNano() - lastMsg) / 1_000_000
	}
	return model.StreamMetrics{
		MessageCount:     atomic.LoadInt64(&c.messageCount),
		DiffCount:        atomic.LoadInt64(&c.diffCount),
		ParseErrorCount:  atomic.LoadInt64(&c.parseErrCount),
		LastMessageAgeMs: ageMs,
	}
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) readTimeout() time.Duration {
	if c.cfg.ReadTimeoutMs > 0 {
		return time.Duration(c.cfg.ReadTimeoutMs) * time.Millisecond
	}
	// 未配置时使用 30s
	return 30 * time.Second
}

// maybeLogParseError 采样记录解析错误原始消息，避免刷盘
// 采样策略：每 100 次错误记录 1 条，且同一类日志至少间隔 1 分钟。
func (c *Client) maybeLogParseError(err error, data []byte) {
	count := atomic.AddUint64(&c.parseErrSampleCount, 1)
	if count%100 != 1 {
		return
	}

	nowNs := timeutil.NowNano()
	last := atomic.LoadInt64(&c.lastParseErrLogNs)
	if last > 0 && nowNs-last < int64(time.Minute) {
		return
	}
	atomic.StoreInt64(&c.lastParseErrLogNs, nowNs)

	sample := data
	if len(sample) > 200 {
		sample = sample[:200]
	}
	c.logger.Warn("解析 Binance 消息失败（采样）", zap.Error(err), zap.ByteString("data", sample))
}
