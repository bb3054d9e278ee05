// Package main 是订单簿报价器的入口点。
// 报价器通过 Binance 快照 + 增量流维护单交易对本地订单簿，
// 基于中间价短期波动率计算建议价差并输出报价。
//
// 重要：报价仅用于展示/记录，本系统不下单。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"orderbook-quoter/internal/config"
	"orderbook-quoter/internal/core/syncer"
	"orderbook-quoter/internal/exchange/binance"
	"orderbook-quoter/internal/output"
	"orderbook-quoter/internal/output/jsonl"
	"orderbook-quoter/internal/stats/metrics"
)

func main() {
	var (
		configPath string
		envPath    string
		symbol     string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径（不存在时使用默认配置）")
	flag.StringVar(&envPath, "env", ".env", ".env 文件路径")
	flag.StringVar(&symbol, "symbol", "", "交易对，覆盖配置文件与环境变量")
	flag.Parse()

	// .env 可选，不存在时忽略
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "加载 .env 失败: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(configPath, symbol)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel).Named(cfg.App.Name)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("报价器异常退出", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("报价器已退出")
}

// loadConfig 加载配置
// 配置文件不存在时使用默认值 + 环境变量；flagSymbol 非空时最后覆盖。
func loadConfig(path, flagSymbol string) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		cfg = &config.Config{}
		cfg.ApplyEnv(os.LookupEnv)
		cfg.SetDefaults()
	} else {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	if flagSymbol != "" {
		cfg.Symbol = flagSymbol
		cfg.SetDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var m *metrics.Collector
	if cfg.Metrics.Listen != "" {
		m = metrics.New(cfg.Symbol)
	}

	var writer *jsonl.QuoteWriter
	if cfg.Output.QuotesEnabled {
		w, err := jsonl.NewQuoteWriter(cfg.Output.Dir, cfg.Output.BufferSize)
		if err != nil {
			return fmt.Errorf("创建报价输出失败: %w", err)
		}
		writer = w
		logger.Info("报价输出已启用", zap.String("path", w.Path()))
	}
	sink := output.NewQuoteSink(logger, writer)
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("关闭报价输出失败", zap.Error(err))
		}
	}()

	fetcher := binance.NewSnapshotFetcher(cfg.Binance)
	dial := func(ctx context.Context) (syncer.DiffStream, error) {
		c, err := binance.Dial(ctx, cfg.Binance, cfg.Symbol, logger, m)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	sup := syncer.New(cfg, fetcher, dial, sink, logger, m)

	logger.Info("报价器启动",
		zap.String("symbol", cfg.Symbol),
		zap.String("ws_url", cfg.Binance.WSURL),
		zap.String("rest_url", cfg.Binance.RestURL),
		zap.Float64("min_spread", cfg.Spread.Min),
		zap.Float64("max_spread", cfg.Spread.Max),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sup.Run(gctx)
	})

	if m != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("指标服务启动", zap.String("listen", cfg.Metrics.Listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("指标服务异常: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
