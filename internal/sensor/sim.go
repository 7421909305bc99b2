package sensor

import (
	"context"
	"math"
	"sync"
	"time"
	"wisefido-gait/internal/models"
)

// SimConfig 模拟传感器参数
type SimConfig struct {
	Rate      float64       // 采样率（Hz），默认 120
	Period    time.Duration // 单腿摆动周期，默认 1.1s
	Amplitude float64       // 摆动幅度（度），默认 30
	Offset    float64       // 零点偏移（度），默认 5
}

// SimConnector 模拟传感器：两条腿相位相差半个周期的正弦俯仰角
type SimConnector struct {
	cfg SimConfig
	now func() time.Time
}

// NewSimConnector 创建模拟传感器
func NewSimConnector(cfg SimConfig) *SimConnector {
	if cfg.Rate <= 0 {
		cfg.Rate = 120
	}
	if cfg.Period <= 0 {
		cfg.Period = 1100 * time.Millisecond
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = 30
	}
	if cfg.Offset == 0 {
		cfg.Offset = 5
	}
	return &SimConnector{cfg: cfg, now: time.Now}
}

// Connect 模拟链路立即可用
func (c *SimConnector) Connect(ctx context.Context) (Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &SimLink{cfg: c.cfg, now: c.now, start: c.now(), last: [2]int64{-1, -1}}, nil
}

// SimLink 模拟链路
type SimLink struct {
	cfg   SimConfig
	now   func() time.Time
	mu    sync.Mutex
	start time.Time
	last  [2]int64
}

// ReadSample 按采样率产生样本；同一采样周期内重复读取返回 false
func (l *SimLink) ReadSample(leg models.Leg) (float64, bool) {
	if leg != models.LegLeft && leg != models.LegRight {
		return 0, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := l.now().Sub(l.start).Seconds()
	n := int64(elapsed * l.cfg.Rate)
	if n <= l.last[leg] {
		return 0, false
	}
	l.last[leg] = n
	return l.value(leg, float64(n)/l.cfg.Rate), true
}

func (l *SimLink) value(leg models.Leg, t float64) float64 {
	phase := 2 * math.Pi * t / l.cfg.Period.Seconds()
	if leg == models.LegRight {
		phase += math.Pi
	}
	return l.cfg.Offset - l.cfg.Amplitude*math.Cos(phase)
}

// ResetOrientation 重置时间零点
func (l *SimLink) ResetOrientation(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.start = l.now()
	l.last = [2]int64{-1, -1}
	return nil
}

// Disconnect 无操作
func (l *SimLink) Disconnect() {}
