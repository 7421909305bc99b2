package session

import (
	"fmt"
	"time"
	"wisefido-gait/internal/analyzer"
	"wisefido-gait/internal/audio"
	"wisefido-gait/internal/models"
	"wisefido-gait/internal/params"
	"wisefido-gait/internal/sensor"
)

// Request 一次录制的参数
type Request struct {
	Duration       time.Duration
	Exercise       models.ExerciseType
	Sensitivity    int
	AutoDetectLegs bool
	SteppingLeg    models.Leg // 关闭自动识别时指定前进腿
	CalculateBPM   bool
	SoundEnabled   bool
	SessionID      string // 为空时自动生成
}

// Validate 检查请求
func (r Request) Validate() error {
	if r.Duration <= 0 {
		return fmt.Errorf("invalid session duration: %s", r.Duration)
	}
	if !r.Exercise.Valid() {
		return fmt.Errorf("unknown exercise type: %d", int(r.Exercise))
	}
	if r.Sensitivity < params.MinSensitivity || r.Sensitivity > params.MaxSensitivity {
		return fmt.Errorf("sensitivity must be between %d and %d, got %d",
			params.MinSensitivity, params.MaxSensitivity, r.Sensitivity)
	}
	if r.SteppingLeg != models.LegLeft && r.SteppingLeg != models.LegRight {
		return fmt.Errorf("invalid stepping leg: %d", int(r.SteppingLeg))
	}
	return nil
}

// roleFor 指定角色模式下某条腿的角色
func (r Request) roleFor(leg models.Leg) models.Role {
	if r.AutoDetectLegs || !r.Exercise.NeedsRoleNegotiation() {
		return models.RoleUnknown
	}
	if leg == r.SteppingLeg {
		return models.RoleStepping
	}
	return models.RoleStationary
}

// LegCapture 单条腿的录制结果
type LegCapture struct {
	Samples      []float64 // 原始俯仰角
	Count        int       // 有效样本数
	Movements    int
	EventIndices []int64 // 事件样本序号（与 Samples 下标一致）
	Role         models.Role
}

// Result 会话结果
type Result struct {
	SessionID   string
	Exercise    models.ExerciseType
	Sensitivity int
	StartedAt   time.Time
	EndedAt     time.Time
	Legs        [2]LegCapture
	BPM         *float64 // 无法确定时为 nil
	Metrics     Metrics
}

// TotalMovements 两条腿的动作总数
func (r *Result) TotalMovements() int {
	return r.Legs[0].Movements + r.Legs[1].Movements
}

// Metrics 会话运行指标
type Metrics struct {
	ConnectAttempts int
	Polls           int64
	Ticks           [2]int64
	Windows         [2]int64
}

// ParamTable 参数表查询（params.Table 满足该接口）
type ParamTable interface {
	Lookup(exercise models.ExerciseType, sensitivity int) (params.Entry, error)
}

// CueBackend 音频样本加载与播放器构建
type CueBackend interface {
	Load(dir string) ([]audio.Sample, error)
	Player(samples []audio.Sample) audio.Player
}

// Deps 控制器依赖
type Deps struct {
	Connector sensor.Connector
	Params    ParamTable
	Cues      CueBackend
	Sink      analyzer.EventSink // 可选
}

// Config 控制器配置
type Config struct {
	ConnectTimeout time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PollInterval   time.Duration
	DropoutTimeout time.Duration
	SampleRate     float64
	BufferCapacity int
	AudioDir       string

	Tick       time.Duration
	WindowSize int
	PeakBlock  int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		PollInterval:   2 * time.Millisecond,
		DropoutTimeout: 6 * time.Second,
		SampleRate:     120,
		BufferCapacity: 1000,
		AudioDir:       "./samples",
		Tick:           analyzer.DefaultTick,
		WindowSize:     analyzer.DefaultWindowSize,
		PeakBlock:      analyzer.DefaultPeakBlock,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.DropoutTimeout <= 0 {
		c.DropoutTimeout = d.DropoutTimeout
	}
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = d.BufferCapacity
	}
	if c.AudioDir == "" {
		c.AudioDir = d.AudioDir
	}
	return c
}

// Summary 转换为会话摘要
func (r *Result) Summary() *models.SessionSummary {
	s := &models.SessionSummary{
		SessionID:   r.SessionID,
		Exercise:    r.Exercise.String(),
		Sensitivity: r.Sensitivity,
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
		BPM:         r.BPM,
	}
	for i, leg := range r.Legs {
		s.Legs[i] = models.LegSummary{
			Leg:          models.Leg(i).String(),
			Role:         leg.Role.String(),
			Samples:      leg.Count,
			Movements:    leg.Movements,
			EventIndices: leg.EventIndices,
		}
	}
	return s
}

// Samples 两条腿的原始样本
func (r *Result) Samples() [2][]float64 {
	return [2][]float64{r.Legs[0].Samples, r.Legs[1].Samples}
}
