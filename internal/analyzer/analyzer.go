package analyzer

import (
	"context"
	"time"
	"wisefido-gait/internal/models"
	"wisefido-gait/internal/params"
	"wisefido-gait/internal/transport"

	"go.uber.org/zap"
)

const (
	// DefaultTick 轮询间隔，略快于样本到达速率（约 8.3ms），可调
	DefaultTick = 3 * time.Millisecond
	// DefaultWindowSize 窗口长度（约 125ms @120Hz）
	DefaultWindowSize = 15
	// DefaultPeakBlock 极值检测块长度
	DefaultPeakBlock = 8
)

// CuePlayer 音频提示播放（即发即忘）
type CuePlayer interface {
	Play(sample int)
}

// EventSink 事件旁路（实时推送），实现方不得阻塞
type EventSink interface {
	OnEvent(Event)
}

// Event 对外发布的触发事件
type Event struct {
	Leg         models.Leg
	Role        models.Role
	Kind        Kind
	SampleIndex int64
	Magnitude   float64
	At          time.Time
	AudioSample int // 未开启声音时为 -1
	Count       int
}

// Config 单条腿分析器配置
type Config struct {
	Leg               models.Leg
	Exercise          models.ExerciseType
	Params            params.Entry
	AutoDetectLegs    bool
	Role              models.Role
	CollectTimestamps bool
	SoundEnabled      bool
	WindowSize        int
	PeakBlock         int
	Tick              time.Duration
}

// Shared 两个分析器共享的同步原语，分析器只使用，不拥有、不关闭
type Shared struct {
	Buffer     *transport.RingBuffer
	AudioIndex *transport.CircularIndex
	RoleFlag   *transport.RoleFlag
	Barrier    *transport.Barrier
}

// Report 分析器结束时交回的结果
type Report struct {
	Leg          models.Leg
	Role         models.Role
	Movements    int
	EventIndices []int64
	Timestamps   []float64
	Ticks        int64
	Windows      int64
}

// Analyzer 单条腿的分析协程
type Analyzer struct {
	cfg    Config
	shared Shared
	player CuePlayer
	sink   EventSink
	logger *zap.Logger
	now    func() time.Time
}

// Option 可选配置
type Option func(*Analyzer)

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithEventSink 设置事件旁路
func WithEventSink(sink EventSink) Option {
	return func(a *Analyzer) { a.sink = sink }
}

// New 创建分析器
func New(cfg Config, shared Shared, player CuePlayer, logger *zap.Logger, opts ...Option) *Analyzer {
	if cfg.WindowSize <= 1 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.PeakBlock <= 0 {
		cfg.PeakBlock = DefaultPeakBlock
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	a := &Analyzer{
		cfg:    cfg,
		shared: shared,
		player: player,
		logger: logger.With(zap.String("leg", cfg.Leg.String())),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run 运行分析循环，直到读到终止标记或 ctx 被取消
// ready 在通过起始汇合点后调用一次。被取消时不返回结果（进行中的事件直接丢弃）。
func (a *Analyzer) Run(ctx context.Context, ready func()) (*Report, error) {
	if a.shared.Barrier != nil {
		if err := a.shared.Barrier.Arrive(ctx); err != nil {
			return nil, err
		}
	}
	if ready != nil {
		ready()
	}

	state := NewState(StateOptions{
		Exercise:          a.cfg.Exercise,
		Params:            a.cfg.Params,
		WindowSize:        a.cfg.WindowSize,
		PeakBlock:         a.cfg.PeakBlock,
		CollectTimestamps: a.cfg.CollectTimestamps,
		AutoDetectLegs:    a.cfg.AutoDetectLegs,
		Role:              a.cfg.Role,
		RoleFlag:          a.roleFlag(),
	})
	window := make([]float64, a.cfg.WindowSize)
	report := &Report{Leg: a.cfg.Leg}

	a.logger.Debug("Analyzer started",
		zap.String("exercise", a.cfg.Exercise.String()),
		zap.Int("window_size", a.cfg.WindowSize),
		zap.Duration("tick", a.cfg.Tick),
	)

	ticker := time.NewTicker(a.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		report.Ticks++

		// 先取终止标记，再处理最后一个窗口，保证末尾样本不丢
		terminated := a.shared.Buffer.Terminated()
		if end, ok := a.shared.Buffer.ReadWindow(window); ok && end > state.lastEnd {
			report.Windows++
			a.emit(state, state.Step(window, end, a.now()))
		}
		if terminated {
			return a.finish(state, report), nil
		}
	}
}

func (a *Analyzer) roleFlag() RoleClaimer {
	if a.shared.RoleFlag == nil {
		return nil
	}
	return a.shared.RoleFlag
}

func (a *Analyzer) emit(state *State, detections []Detection) {
	for _, d := range detections {
		sample := -1
		if a.cfg.SoundEnabled && a.shared.AudioIndex != nil {
			sample = a.shared.AudioIndex.Next()
			if a.player != nil {
				a.player.Play(sample)
			}
		}

		event := Event{
			Leg:         a.cfg.Leg,
			Role:        state.Role(),
			Kind:        d.Kind,
			SampleIndex: d.SampleIndex,
			Magnitude:   d.Magnitude,
			At:          d.At,
			AudioSample: sample,
			Count:       state.Movements(),
		}
		if a.sink != nil {
			a.sink.OnEvent(event)
		}

		a.logger.Debug("Gait event detected",
			zap.String("kind", d.Kind.String()),
			zap.Int64("sample_index", d.SampleIndex),
			zap.Float64("magnitude", d.Magnitude),
			zap.Int("audio_sample", sample),
		)
	}
}

// finish 把最终动作计数写入缓冲区尾部槽位并生成报告
func (a *Analyzer) finish(state *State, report *Report) *Report {
	a.shared.Buffer.PublishFinalCount(state.Movements())

	report.Role = state.Role()
	report.Movements = state.Movements()
	report.EventIndices = append([]int64(nil), state.Points()...)
	report.Timestamps = append([]float64(nil), state.Timestamps()...)

	a.logger.Info("Analyzer finished",
		zap.Int("movements", report.Movements),
		zap.String("role", report.Role.String()),
		zap.Int64("ticks", report.Ticks),
		zap.Int64("windows", report.Windows),
	)
	return report
}
