// Package volatility 基于中间价滚动窗口估计短期波动率。
// 算法：窗口内中间价做滑动平均平滑（边界按镜像反射延拓），
// 计算相邻平滑值的相对收益率，返回其总体标准差。
package volatility

import (
	"math"

	"github.com/gammazero/deque"

	"orderbook-quoter/internal/config"
)

// Estimator 波动率估计器（单 goroutine 使用）
// 每次同步尝试创建新实例，不跨尝试复用。
type Estimator struct {
	// window 窗口大小（默认 20）
	window int
	// smoothing 滑动平均窗口（默认 5）
	smoothing int
	// minSamples 可用所需的累计观测数（默认 21）
	minSamples int64

	// prices 最近 window 个中间价
	prices deque.Deque[float64]
	// observed 累计观测数
	observed int64
}

// NewEstimator 创建波动率估计器
// 参数 cfg: 波动率配置，非正值回退到默认值
func NewEstimator(cfg config.VolatilityConfig) *Estimator {
	e := &Estimator{
		window:     cfg.Window,
		smoothing:  cfg.Smoothing,
		minSamples: int64(cfg.MinSamples),
	}
	if e.window <= 0 {
		e.window = 20
	}
	if e.smoothing <= 0 {
		e.smoothing = 5
	}
	if e.minSamples <= 0 {
		e.minSamples = int64(e.window) + 1
	}
	return e
}

// Observe 追加一个中间价，超出窗口时淘汰最旧值
func (e *Estimator) Observe(mid float64) {
	e.prices.PushBack(mid)
	for e.prices.Len() > e.window {
		e.prices.PopFront()
	}
	e.observed++
}

// Observed 累计观测数
func (e *Estimator) Observed() int64 {
	return e.observed
}

// Window 当前窗口内的中间价（从旧到新）
func (e *Estimator) Window() []float64 {
	out := make([]float64, e.prices.Len())
	for i := range out {
		out[i] = e.prices.At(i)
	}
	return out
}

// Estimate 计算波动率
// 返回: 平滑后相对收益率的总体标准差；观测不足或存在非正平滑价时 ok=false
func (e *Estimator) Estimate() (float64, bool) {
	if e.observed < e.minSamples || e.prices.Len() < 2 {
		return 0, false
	}

	smoothed := Smooth(e.Window(), e.smoothing)
	for _, p := range smoothed {
		if p <= 0 {
			return 0, false
		}
	}

	returns := make([]float64, len(smoothed)-1)
	for i := 1; i < len(smoothed); i++ {
		returns[i-1] = (smoothed[i] - smoothed[i-1]) / smoothed[i-1]
	}
	return PopulationStdDev(returns), true
}

// Smooth 滑动平均平滑，输出与输入等长
// 取 [i-size/2, i-size/2+size) 内的点求均值，越界下标按镜像反射：
// x[-1]=x[0], x[-2]=x[1], x[n]=x[n-1], x[n+1]=x[n-2]。
func Smooth(xs []float64, size int) []float64 {
	n := len(xs)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if size <= 1 {
		copy(out, xs)
		return out
	}

	left := size / 2
	for i := 0; i < n; i++ {
		var sum float64
		for k := i - left; k < i-left+size; k++ {
			sum += xs[reflectIndex(k, n)]
		}
		out[i] = sum / float64(size)
	}
	return out
}

// reflectIndex 半采样对称反射：d c b a | a b c d | d c b a
func reflectIndex(k, n int) int {
	period := 2 * n
	k %= period
	if k < 0 {
		k += period
	}
	if k >= n {
		k = period - 1 - k
	}
	return k
}

// PopulationStdDev 总体标准差（除以 n）
func PopulationStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
