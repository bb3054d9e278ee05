// Package config 负责加载和验证 YAML 配置文件。
// 提供报价器所需的所有配置项，包括交易所端点、价差参数、波动率窗口、重同步退避等。
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 环境变量覆盖项
const (
	// EnvSymbol 覆盖 symbol
	EnvSymbol = "QUOTER_SYMBOL"
	// EnvLogLevel 覆盖 app.log_level
	EnvLogLevel = "QUOTER_LOG_LEVEL"
	// EnvMetricsListen 覆盖 metrics.listen
	EnvMetricsListen = "QUOTER_METRICS_LISTEN"
)

// Config 应用配置根结构
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Symbol 交易对，如 BTCUSDT（仅支持单交易对）
	Symbol string `yaml:"symbol"`
	// Binance 交易所端点配置
	Binance BinanceConfig `yaml:"binance"`
	// Spread 价差配置
	Spread SpreadConfig `yaml:"spread"`
	// Volatility 波动率配置
	Volatility VolatilityConfig `yaml:"volatility"`
	// Sync 同步与重连配置
	Sync SyncConfig `yaml:"sync"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// BinanceConfig Binance 端点配置
type BinanceConfig struct {
	// RestURL REST 根地址，快照请求 {RestURL}/api/v3/depth
	RestURL string `yaml:"rest_url"`
	// WSURL 增量流 WebSocket 地址
	WSURL string `yaml:"ws_url"`
	// DepthLimit 快照深度
	DepthLimit int `yaml:"depth_limit"`
	// TimeoutMs REST 请求超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// ReadTimeoutMs WebSocket 读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
	// PingIntervalMs 协议层 ping 间隔（毫秒），0 表示 read_timeout 的一半
	PingIntervalMs int `yaml:"ping_interval_ms"`
}

// SpreadConfig 价差配置
type SpreadConfig struct {
	// Initial 波动率可用前的初始价差
	Initial float64 `yaml:"initial"`
	// Min 最小价差
	Min float64 `yaml:"min"`
	// Max 最大价差
	Max float64 `yaml:"max"`
	// VolMultiplier 波动率乘数
	VolMultiplier float64 `yaml:"vol_multiplier"`
}

// VolatilityConfig 波动率配置
type VolatilityConfig struct {
	// Window 中间价滚动窗口大小
	Window int `yaml:"window"`
	// Smoothing 滑动平均窗口
	Smoothing int `yaml:"smoothing"`
	// MinSamples 波动率可用所需的累计观测数
	MinSamples int `yaml:"min_samples"`
}

// SyncConfig 同步与重连配置
type SyncConfig struct {
	// ResyncDelayMs 序列号缺口 / 连接断开后的重连延迟（毫秒）
	ResyncDelayMs int `yaml:"resync_delay_ms"`
	// SnapshotRetryDelayMs 快照失败后的重试延迟（毫秒）
	SnapshotRetryDelayMs int `yaml:"snapshot_retry_delay_ms"`
	// MaxDelayMs 连续失败时延迟增长上限（毫秒）
	MaxDelayMs int `yaml:"max_delay_ms"`
	// Jitter 延迟抖动比例（0-1）
	Jitter float64 `yaml:"jitter"`
	// SyncTimeoutMs 快照后等待首条增量的超时（毫秒）
	SyncTimeoutMs int `yaml:"sync_timeout_ms"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// QuotesEnabled 是否输出 quotes.jsonl
	QuotesEnabled bool `yaml:"quotes_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Listen Prometheus /metrics 监听地址，为空则不启动
	Listen string `yaml:"listen"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// Default 返回仅含默认值的配置（无配置文件时使用）
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// ApplyEnv 用环境变量覆盖配置
// 参数 lookup: 环境变量查询函数（通常为 os.LookupEnv）
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSymbol); ok && v != "" {
		c.Symbol = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.App.LogLevel = v
	}
	if v, ok := lookup(EnvMetricsListen); ok {
		c.Metrics.Listen = v
	}
}

// SetDefaults 设置配置默认值
func (c *Config) SetDefaults() {
	if c.App.Name == "" {
		c.App.Name = "orderbook-quoter"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Symbol == "" {
		c.Symbol = "BTCUSDT"
	}
	c.Symbol = strings.ToUpper(c.Symbol)

	if c.Binance.RestURL == "" {
		c.Binance.RestURL = "https://api.binance.com"
	}
	if c.Binance.WSURL == "" {
		c.Binance.WSURL = "wss://stream.binance.com:9443/ws"
	}
	if c.Binance.DepthLimit == 0 {
		c.Binance.DepthLimit = 1000
	}
	if c.Binance.TimeoutMs == 0 {
		c.Binance.TimeoutMs = 10000 // 10 秒
	}
	if c.Binance.ReadTimeoutMs == 0 {
		c.Binance.ReadTimeoutMs = 30000 // 30 秒
	}

	if c.Spread.Initial == 0 {
		c.Spread.Initial = 0.002 // 0.2%
	}
	if c.Spread.Min == 0 {
		c.Spread.Min = 0.001 // 0.1%
	}
	if c.Spread.Max == 0 {
		c.Spread.Max = 0.01 // 1%
	}
	if c.Spread.VolMultiplier == 0 {
		c.Spread.VolMultiplier = 0.003
	}

	if c.Volatility.Window == 0 {
		c.Volatility.Window = 20
	}
	if c.Volatility.Smoothing == 0 {
		c.Volatility.Smoothing = 5
	}
	if c.Volatility.MinSamples == 0 {
		c.Volatility.MinSamples = c.Volatility.Window + 1
	}

	if c.Sync.ResyncDelayMs == 0 {
		c.Sync.ResyncDelayMs = 2000
	}
	if c.Sync.SnapshotRetryDelayMs == 0 {
		c.Sync.SnapshotRetryDelayMs = 5000
	}
	if c.Sync.MaxDelayMs == 0 {
		c.Sync.MaxDelayMs = 30000
	}
	if c.Sync.SyncTimeoutMs == 0 {
		c.Sync.SyncTimeoutMs = 10000
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
}

// Validate 验证配置合法性
// 返回: 若配置无效则返回汇总所有问题的错误
func (c *Config) Validate() error {
	var errs []string

	if c.Symbol == "" {
		errs = append(errs, "symbol: 交易对不能为空")
	}
	if strings.ContainsAny(c.Symbol, " /-,") {
		errs = append(errs, fmt.Sprintf("symbol: 交易对格式无效 '%s'，应形如 BTCUSDT", c.Symbol))
	}

	if c.Binance.RestURL == "" {
		errs = append(errs, "binance.rest_url: REST 地址不能为空")
	}
	if c.Binance.WSURL == "" {
		errs = append(errs, "binance.ws_url: WebSocket 地址不能为空")
	}
	if c.Binance.DepthLimit <= 0 || c.Binance.DepthLimit > 5000 {
		errs = append(errs, fmt.Sprintf("binance.depth_limit: 必须在 1-5000 之间，当前值: %d", c.Binance.DepthLimit))
	}
	if c.Binance.TimeoutMs <= 0 {
		errs = append(errs, "binance.timeout_ms: 超时必须为正数")
	}
	if c.Binance.ReadTimeoutMs < 0 {
		errs = append(errs, "binance.read_timeout_ms: 读取超时不能为负数")
	}
	if c.Binance.PingIntervalMs < 0 {
		errs = append(errs, "binance.ping_interval_ms: 心跳间隔不能为负数")
	}

	if c.Spread.Min <= 0 {
		errs = append(errs, "spread.min: 最小价差必须为正数")
	}
	if c.Spread.Max < c.Spread.Min {
		errs = append(errs, fmt.Sprintf("spread.max: 最大价差 %f 不能小于最小价差 %f", c.Spread.Max, c.Spread.Min))
	}
	if c.Spread.Max >= 1 {
		errs = append(errs, "spread.max: 最大价差必须小于 1")
	}
	if c.Spread.Initial < c.Spread.Min || c.Spread.Initial > c.Spread.Max {
		errs = append(errs, fmt.Sprintf("spread.initial: 初始价差必须在 [%f, %f] 之间，当前值: %f", c.Spread.Min, c.Spread.Max, c.Spread.Initial))
	}
	if c.Spread.VolMultiplier <= 0 {
		errs = append(errs, "spread.vol_multiplier: 波动率乘数必须为正数")
	}

	if c.Volatility.Window < 2 {
		errs = append(errs, "volatility.window: 窗口至少为 2")
	}
	if c.Volatility.Smoothing < 1 || c.Volatility.Smoothing > c.Volatility.Window {
		errs = append(errs, fmt.Sprintf("volatility.smoothing: 必须在 1-%d 之间，当前值: %d", c.Volatility.Window, c.Volatility.Smoothing))
	}
	if c.Volatility.MinSamples < c.Volatility.Window {
		errs = append(errs, "volatility.min_samples: 不能小于窗口大小")
	}

	if c.Sync.ResyncDelayMs <= 0 {
		errs = append(errs, "sync.resync_delay_ms: 重连延迟必须为正数")
	}
	if c.Sync.SnapshotRetryDelayMs <= 0 {
		errs = append(errs, "sync.snapshot_retry_delay_ms: 快照重试延迟必须为正数")
	}
	if c.Sync.MaxDelayMs < c.Sync.ResyncDelayMs || c.Sync.MaxDelayMs < c.Sync.SnapshotRetryDelayMs {
		errs = append(errs, "sync.max_delay_ms: 不能小于重连或快照重试延迟")
	}
	if c.Sync.Jitter < 0 || c.Sync.Jitter >= 1 {
		errs = append(errs, fmt.Sprintf("sync.jitter: 必须在 [0, 1) 之间，当前值: %f", c.Sync.Jitter))
	}
	if c.Sync.SyncTimeoutMs <= 0 {
		errs = append(errs, "sync.sync_timeout_ms: 同步超时必须为正数")
	}

	if c.Output.BufferSize < 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小不能为负数")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
