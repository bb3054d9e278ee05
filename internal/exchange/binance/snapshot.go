package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"orderbook-quoter/internal/config"
	"orderbook-quoter/internal/core/model"
)

// SnapshotFetcher REST 深度快照获取器
type SnapshotFetcher struct {
	// client HTTP 客户端
	client *http.Client
	// baseURL REST 根地址
	baseURL string
	// limit 快照深度
	limit int
}

// NewSnapshotFetcher 创建快照获取器
// 参数 cfg: Binance 配置（rest_url / depth_limit / timeout_ms）
func NewSnapshotFetcher(cfg config.BinanceConfig) *SnapshotFetcher {
	return &SnapshotFetcher{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		baseURL: strings.TrimRight(cfg.RestURL, "/"),
		limit:   cfg.DepthLimit,
	}
}

// Fetch 获取深度快照
// 参数 ctx: 上下文，用于取消请求
// 参数 symbol: 交易对，如 BTCUSDT
func (f *SnapshotFetcher) Fetch(ctx context.Context, symbol string) (*model.Snapshot, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("limit", strconv.Itoa(f.limit))

	body, err := f.doRequest(ctx, f.baseURL+"/api/v3/depth?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("请求 Binance 深度快照失败: %w", err)
	}

	var resp DepthSnapshot
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析 Binance 深度快照失败: %w", err)
	}
	if resp.LastUpdateID <= 0 {
		return nil, fmt.Errorf("%w: 快照缺少 lastUpdateId", ErrMalformedMessage)
	}

	bids, err := ParseLevels(resp.Bids)
	if err != nil {
		return nil, fmt.Errorf("解析快照买盘失败: %w", err)
	}
	asks, err := ParseLevels(resp.Asks)
	if err != nil {
		return nil, fmt.Errorf("解析快照卖盘失败: %w", err)
	}

	return &model.Snapshot{
		Symbol:   strings.ToUpper(symbol),
		Sequence: resp.LastUpdateID,
		Bids:     bids,
		Asks:     asks,
	}, nil
}

func (f *SnapshotFetcher) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("User-Agent", "orderbook-quoter/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP 状态码错误: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	return body, nil
}
