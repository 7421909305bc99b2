// Package session 录制会话控制：传感器连接、两条腿分析协程的生命周期与结果汇总
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
	"wisefido-gait/internal/analyzer"
	"wisefido-gait/internal/audio"
	"wisefido-gait/internal/bpm"
	"wisefido-gait/internal/models"
	"wisefido-gait/internal/params"
	"wisefido-gait/internal/sensor"
	"wisefido-gait/internal/transport"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Controller 会话控制器，同一时间只运行一个会话
type Controller struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	mu      sync.Mutex
	state   State
	running bool
	cancel  context.CancelFunc
}

// NewController 创建会话控制器
func NewController(deps Deps, cfg Config, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		logger: logger,
		state:  StateIdle,
	}
}

// State 当前状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cancel 取消进行中的会话；Record 在两条腿的分析协程退出后返回 (nil, nil)
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	c.logger.Debug("Session state changed", zap.String("from", prev.String()), zap.String("to", s.String()))
}

// session 单次录制的运行时状态
type session struct {
	id        string
	req       Request
	entry     params.Entry
	link      sensor.Link
	buffers   [2]*transport.RingBuffer
	analyzers [2]*analyzer.Analyzer
	reports   [2]*analyzer.Report
	captures  [2][]float64
	metrics   Metrics
	logger    *zap.Logger
}

// Record 录制一个会话
// onStart 在姿态归零完成、两条腿的分析协程都通过起始汇合点后、开始采集前调用一次。
// 被取消（Cancel 或 ctx）时返回 (nil, nil)。
func (c *Controller) Record(ctx context.Context, req Request, onStart func()) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session request: %w", err)
	}
	entry, err := c.deps.Params.Lookup(req.Exercise, req.Sensitivity)
	if err != nil {
		return nil, fmt.Errorf("failed to look up parameters: %w", err)
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	id := req.SessionID
	if id == "" {
		id = uuid.New().String()
	}
	s := &session{
		id:     id,
		req:    req,
		entry:  entry,
		logger: c.logger,
	}
	s.logger = c.logger.With(zap.String("session_id", s.id))

	s.logger.Info("Session started",
		zap.String("exercise", req.Exercise.String()),
		zap.Int("sensitivity", req.Sensitivity),
		zap.Duration("duration", req.Duration),
		zap.Bool("auto_detect_legs", req.AutoDetectLegs),
		zap.Bool("sound", req.SoundEnabled),
	)

	result, err := c.run(ctx, s, onStart)
	switch {
	case err == nil && result == nil:
		c.setState(StateCancelled)
		s.logger.Info("Session cancelled")
	case err != nil:
		c.setState(StateFailed)
		s.logger.Error("Session failed", zap.Error(err))
	default:
		c.setState(StateCompleted)
		s.logger.Info("Session completed",
			zap.Int("left_movements", result.Legs[models.LegLeft].Movements),
			zap.Int("right_movements", result.Legs[models.LegRight].Movements),
			zap.Bool("bpm_determined", result.BPM != nil),
		)
	}
	return result, err
}

func (c *Controller) run(ctx context.Context, s *session, onStart func()) (*Result, error) {
	// 1. 连接传感器
	c.setState(StateConnecting)
	link, err := c.connect(ctx, s)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, err
	}
	s.link = link
	defer link.Disconnect()

	if err := link.ResetOrientation(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to reset orientation: %w", ErrSensorUnavailable, err)
	}

	// 2. 分配共享缓冲区与同步原语，加载音频
	c.setState(StateArmed)
	player, modulus, err := c.prepareCues(s)
	if err != nil {
		return nil, err
	}
	shared := analyzer.Shared{
		AudioIndex: transport.NewCircularIndex(modulus),
		RoleFlag:   transport.NewRoleFlag(),
		Barrier:    transport.NewBarrier(2),
	}
	for _, leg := range []models.Leg{models.LegLeft, models.LegRight} {
		s.buffers[leg] = transport.NewRingBuffer(c.cfg.BufferCapacity)
		legShared := shared
		legShared.Buffer = s.buffers[leg]
		s.analyzers[leg] = c.newAnalyzer(s, leg, legShared, player)
	}

	// 3. 启动分析协程，等待两者通过汇合点
	analyzerCtx, stopAnalyzers := context.WithCancel(ctx)
	defer stopAnalyzers()

	g, gctx := errgroup.WithContext(analyzerCtx)
	ready := make(chan struct{}, 2)
	for _, leg := range []models.Leg{models.LegLeft, models.LegRight} {
		leg := leg
		g.Go(func() error {
			report, err := s.analyzers[leg].Run(gctx, func() { ready <- struct{}{} })
			s.reports[leg] = report
			return err
		})
	}

	// abort 强制结束分析协程，丢弃进行中的事件
	abort := func() {
		stopAnalyzers()
		_ = g.Wait()
	}

	for passed := 0; passed < 2; {
		select {
		case <-ready:
			passed++
		case <-gctx.Done():
			abort()
			if ctx.Err() != nil {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: analyzer stopped before start", ErrAnalyzerIncomplete)
		}
	}

	if onStart != nil {
		onStart()
	}

	// 4. 采集
	c.setState(StateRecording)
	startedAt := time.Now()
	if err := c.capture(ctx, s, startedAt); err != nil {
		abort()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}
	endedAt := time.Now()

	// 5. 写终止标记，等待分析协程结束
	c.setState(StateDraining)
	for _, rb := range s.buffers {
		rb.WriteTermination()
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrAnalyzerIncomplete, err)
	}

	return c.assemble(s, startedAt, endedAt)
}

// connect 指数退避重试，直到连接超时
func (c *Controller) connect(ctx context.Context, s *session) (sensor.Link, error) {
	deadline := time.Now().Add(c.cfg.ConnectTimeout)
	backoffDuration := c.cfg.InitialBackoff

	for {
		s.metrics.ConnectAttempts++
		attemptCtx, cancel := context.WithDeadline(ctx, deadline)
		link, err := c.deps.Connector.Connect(attemptCtx)
		cancel()
		if err == nil {
			s.logger.Info("Sensor connected", zap.Int("attempts", s.metrics.ConnectAttempts))
			return link, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrSensorUnavailable, s.metrics.ConnectAttempts, err)
		}
		wait := backoffDuration
		if wait > remaining {
			wait = remaining
		}
		s.logger.Warn("Sensor connect failed, retrying",
			zap.Int("attempt", s.metrics.ConnectAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
			backoffDuration *= 2
			if backoffDuration > c.cfg.MaxBackoff {
				backoffDuration = c.cfg.MaxBackoff
			}
		}
	}
}

// prepareCues 开启声音时加载样本；返回播放器和共享音频序号的模数
func (c *Controller) prepareCues(s *session) (audio.Player, int, error) {
	if !s.req.SoundEnabled {
		return audio.NopPlayer{}, 1, nil
	}
	if c.deps.Cues == nil {
		return nil, 0, fmt.Errorf("%w: no audio backend configured", ErrNoAudioSamples)
	}
	samples, err := c.deps.Cues.Load(c.cfg.AudioDir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load audio samples: %w", err)
	}
	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("%w in %s", ErrNoAudioSamples, c.cfg.AudioDir)
	}
	return c.deps.Cues.Player(samples), len(samples), nil
}

func (c *Controller) newAnalyzer(s *session, leg models.Leg, shared analyzer.Shared, player audio.Player) *analyzer.Analyzer {
	cfg := analyzer.Config{
		Leg:               leg,
		Exercise:          s.req.Exercise,
		Params:            s.entry,
		AutoDetectLegs:    s.req.AutoDetectLegs,
		Role:              s.req.roleFor(leg),
		CollectTimestamps: s.req.CalculateBPM,
		SoundEnabled:      s.req.SoundEnabled,
		WindowSize:        c.cfg.WindowSize,
		PeakBlock:         c.cfg.PeakBlock,
		Tick:              c.cfg.Tick,
	}
	var opts []analyzer.Option
	if c.deps.Sink != nil {
		opts = append(opts, analyzer.WithEventSink(c.deps.Sink))
	}
	return analyzer.New(cfg, shared, player, s.logger, opts...)
}

// maxDrainPerPoll 单次轮询每条腿最多读取的样本数
const maxDrainPerPoll = 64

// capture 采集循环：轮询两条腿的样本写入环形缓冲区，直到会话时长结束
// 某条腿的最新值持续 DropoutTimeout 未变化（含一直没有新样本）时返回 *DropoutError。
func (c *Controller) capture(ctx context.Context, s *session, startedAt time.Time) error {
	expected := int(s.req.Duration.Seconds()*c.cfg.SampleRate) + 1
	for leg := range s.captures {
		s.captures[leg] = make([]float64, 0, expected)
	}

	var (
		lastValue  [2]float64
		lastChange = [2]time.Time{startedAt, startedAt}
		seen       [2]bool
	)
	deadline := startedAt.Add(s.req.Duration)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		now := time.Now()
		s.metrics.Polls++

		for _, leg := range []models.Leg{models.LegLeft, models.LegRight} {
			// 批量上报的样本在一次轮询内按顺序全部读出
			for i := 0; i < maxDrainPerPoll; i++ {
				v, ok := s.link.ReadSample(leg)
				if !ok {
					break
				}
				s.buffers[leg].Write(v)
				s.captures[leg] = append(s.captures[leg], v)
				if !seen[leg] || v != lastValue[leg] {
					seen[leg] = true
					lastValue[leg] = v
					lastChange[leg] = now
				}
			}
			if stale := now.Sub(lastChange[leg]); stale >= c.cfg.DropoutTimeout {
				return &DropoutError{Leg: leg, Since: stale}
			}
		}

		if !now.Before(deadline) {
			return nil
		}
	}
}

// assemble 汇总最终计数、事件序号与 BPM
func (c *Controller) assemble(s *session, startedAt, endedAt time.Time) (*Result, error) {
	result := &Result{
		SessionID:   s.id,
		Exercise:    s.req.Exercise,
		Sensitivity: s.req.Sensitivity,
		StartedAt:   startedAt,
		EndedAt:     endedAt,
		Metrics:     s.metrics,
	}

	var timestamps []float64
	for _, leg := range []models.Leg{models.LegLeft, models.LegRight} {
		report := s.reports[leg]
		count, ok := s.buffers[leg].FinalCount()
		if !ok || report == nil {
			return nil, fmt.Errorf("%w: %s leg", ErrAnalyzerIncomplete, leg)
		}
		result.Legs[leg] = LegCapture{
			Samples:      s.captures[leg],
			Count:        len(s.captures[leg]),
			Movements:    count,
			EventIndices: report.EventIndices,
			Role:         report.Role,
		}
		result.Metrics.Ticks[leg] = report.Ticks
		result.Metrics.Windows[leg] = report.Windows
		timestamps = append(timestamps, report.Timestamps...)
	}

	if s.req.CalculateBPM {
		sort.Float64s(timestamps)
		if value, ok := bpm.Estimate(timestamps); ok {
			result.BPM = &value
		}
	}
	return result, nil
}
