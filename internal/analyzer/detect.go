package analyzer

import "math"

// historySize 自适应阈值保留的最近接受次数
const historySize = 10

// Crossing 窗口内唯一一次过零
type Crossing struct {
	Index    int     // 过零后第一个样本在窗口内的下标
	Gradient float64 // 过零处斜率（度/样本）
	Negative bool    // 由正变负
}

// DetectZeroCrossing 检测窗口内的过零
// 只接受恰好一次符号变化的窗口，多次变化视为噪声。maxGradient > 0 时，
// 斜率绝对值超过上限的过零（突发性动作而非真实摆动反转）同样被拒绝。
func DetectZeroCrossing(window []float64, maxGradient float64) (Crossing, bool) {
	if len(window) < 2 {
		return Crossing{}, false
	}

	changes, at := 0, 0
	for i := 1; i < len(window); i++ {
		if (window[i-1] >= 0) != (window[i] >= 0) {
			changes++
			if changes > 1 {
				return Crossing{}, false
			}
			at = i
		}
	}
	if changes != 1 {
		return Crossing{}, false
	}

	gradient := window[at] - window[at-1]
	if maxGradient > 0 && math.Abs(gradient) > maxGradient {
		return Crossing{}, false
	}
	return Crossing{
		Index:    at,
		Gradient: gradient,
		Negative: gradient < 0,
	}, true
}

// Extremum 局部极值
type Extremum struct {
	Value float64
	Index int64 // 全局样本序号
}

type block struct {
	max, min Extremum
}

// PeakTracker 分块局部极值检测
// 新样本按 blockSize 切成互不重叠的块，块的极值与前后两块比较：中间块的最大值
// 同时大于两侧即为峰，最小值同时小于两侧即为谷，检测延迟为一个块。
type PeakTracker struct {
	blockSize int
	filled    int
	current   block
	blocks    [3]block
	count     int
}

// NewPeakTracker 创建极值检测器
func NewPeakTracker(blockSize int) *PeakTracker {
	if blockSize < 1 {
		blockSize = 1
	}
	return &PeakTracker{blockSize: blockSize}
}

// Push 加入一个样本；块满时返回刚确认的峰/谷
func (p *PeakTracker) Push(value float64, index int64) (peak, trough *Extremum) {
	if p.filled == 0 {
		p.current = block{
			max: Extremum{Value: value, Index: index},
			min: Extremum{Value: value, Index: index},
		}
	} else {
		if value > p.current.max.Value {
			p.current.max = Extremum{Value: value, Index: index}
		}
		if value < p.current.min.Value {
			p.current.min = Extremum{Value: value, Index: index}
		}
	}
	p.filled++
	if p.filled < p.blockSize {
		return nil, nil
	}
	p.filled = 0

	p.blocks[0], p.blocks[1], p.blocks[2] = p.blocks[1], p.blocks[2], p.current
	if p.count < 3 {
		p.count++
	}
	if p.count < 3 {
		return nil, nil
	}

	before, mid, after := p.blocks[0], p.blocks[1], p.blocks[2]
	if mid.max.Value > before.max.Value && mid.max.Value > after.max.Value {
		e := mid.max
		peak = &e
	}
	if mid.min.Value < before.min.Value && mid.min.Value < after.min.Value {
		e := mid.min
		trough = &e
	}
	return peak, trough
}

// Reset 清空历史块
func (p *PeakTracker) Reset() {
	p.filled, p.count = 0, 0
}

// AmplitudeThreshold 自适应幅度阈值：最近 10 次接受峰值的最小值，不低于下限
type AmplitudeThreshold struct {
	floor   float64
	history []float64
}

// NewAmplitudeThreshold 创建幅度阈值
func NewAmplitudeThreshold(floor float64) *AmplitudeThreshold {
	return &AmplitudeThreshold{floor: floor, history: make([]float64, 0, historySize)}
}

// Accept 记录一次接受的峰值
func (a *AmplitudeThreshold) Accept(peak float64) {
	if len(a.history) == historySize {
		copy(a.history, a.history[1:])
		a.history = a.history[:historySize-1]
	}
	a.history = append(a.history, peak)
}

// Value 当前阈值
func (a *AmplitudeThreshold) Value() float64 {
	if len(a.history) == 0 {
		return a.floor
	}
	m := a.history[0]
	for _, v := range a.history[1:] {
		m = math.Min(m, v)
	}
	return math.Max(m, a.floor)
}

// GradientThreshold 自适应斜率阈值
// 对最近 10 次接受过零斜率的绝对值做指数滑动平均（权重 alpha），乘以 ratio，
// 不低于 floor。信号越干净，门限越收紧。
type GradientThreshold struct {
	floor   float64
	alpha   float64
	ratio   float64
	history []float64
}

// NewGradientThreshold 创建斜率阈值
func NewGradientThreshold(floor, alpha, ratio float64) *GradientThreshold {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	if ratio <= 0 {
		ratio = 0.5
	}
	return &GradientThreshold{
		floor:   floor,
		alpha:   alpha,
		ratio:   ratio,
		history: make([]float64, 0, historySize),
	}
}

// Accept 记录一次接受的过零斜率
func (g *GradientThreshold) Accept(gradient float64) {
	if len(g.history) == historySize {
		copy(g.history, g.history[1:])
		g.history = g.history[:historySize-1]
	}
	g.history = append(g.history, math.Abs(gradient))
}

// Value 当前阈值
func (g *GradientThreshold) Value() float64 {
	if len(g.history) == 0 {
		return g.floor
	}
	ema := g.history[0]
	for _, v := range g.history[1:] {
		ema = g.alpha*v + (1-g.alpha)*ema
	}
	return math.Max(g.ratio*ema, g.floor)
}

// smooth 三点滑动平均，两端使用可用的邻居
func smooth(dst, src []float64) {
	n := len(src)
	for i := 0; i < n; i++ {
		lo, hi := i-1, i+1
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += src[j]
		}
		dst[i] = sum / float64(hi-lo+1)
	}
}
