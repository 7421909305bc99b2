package analyzer

import (
	"math"
	"time"
	"wisefido-gait/internal/models"
	"wisefido-gait/internal/params"
)

// Kind 触发事件类型
type Kind int

const (
	KindStep     Kind = iota // 行走一步
	KindMarch                // 踏步一次
	KindForward              // 前进腿：正向峰（含角色识别时的第一步）
	KindBackward             // 前进腿：负向峰
	KindShift                // 静止腿：一次过零（重心转移）
)

// String 事件类型名称
func (k Kind) String() string {
	switch k {
	case KindStep:
		return "step"
	case KindMarch:
		return "march"
	case KindForward:
		return "forward"
	case KindBackward:
		return "backward"
	case KindShift:
		return "shift"
	default:
		return "unknown"
	}
}

// Detection 一次被接受的步态事件
type Detection struct {
	Kind        Kind
	SampleIndex int64
	Magnitude   float64
	At          time.Time
}

// RoleClaimer 腿角色标记（跨两个分析协程共享）
type RoleClaimer interface {
	Set(value bool) bool
	IsSet() bool
}

// Phase 前进腿四阶段周期
type Phase int

const (
	PhasePositivePeak Phase = iota
	PhaseNegativeTrough
	PhaseNegativePeak
	PhasePositiveTrough
)

func (p Phase) next() Phase {
	return (p + 1) % 4
}

func (p Phase) isPeak() bool {
	return p == PhasePositivePeak || p == PhaseNegativePeak
}

// legDetectionMargin 角色识别时，起步前的回摆谷值需超过 -displacement 的余量（度）
const legDetectionMargin = 0.1

// State 单条腿的分析状态，只由该腿的分析协程访问
type State struct {
	exercise models.ExerciseType
	params   params.Entry
	collect  bool

	// 角色（仅摆腿/前后脚）
	role       models.Role
	autoDetect bool
	roleFlag   RoleClaimer

	// 窗口
	shifted      []float64
	smoothed     []float64
	recent       []float64 // 角色识别：最近两个窗口的平滑样本
	lastEnd      int64
	lastCrossing int64

	// 行走/踏步
	swing     bool
	peak      float64
	amplitude *AmplitudeThreshold

	// 前进腿
	tracker    *PeakTracker
	phase      Phase
	phaseStart time.Time
	candidate  *Extremum

	// 静止腿
	gradient       *GradientThreshold
	expectSet      bool
	expectPositive bool

	lastEvent  time.Time
	movements  int
	points     []int64
	timestamps []float64
	detections []Detection
}

// StateOptions 创建状态的参数
type StateOptions struct {
	Exercise          models.ExerciseType
	Params            params.Entry
	WindowSize        int
	PeakBlock         int
	CollectTimestamps bool
	AutoDetectLegs    bool
	Role              models.Role // 关闭自动识别时由调用方指定
	RoleFlag          RoleClaimer
}

// NewState 创建分析状态（每个会话每条腿一个）
func NewState(opts StateOptions) *State {
	s := &State{
		exercise:     opts.Exercise,
		params:       opts.Params,
		collect:      opts.CollectTimestamps,
		autoDetect:   opts.AutoDetectLegs,
		roleFlag:     opts.RoleFlag,
		role:         models.RoleUnknown,
		shifted:      make([]float64, opts.WindowSize),
		smoothed:     make([]float64, opts.WindowSize),
		recent:       make([]float64, 0, 2*opts.WindowSize),
		lastCrossing: -1,
		amplitude:    NewAmplitudeThreshold(opts.Params.MinThreshold),
		tracker:      NewPeakTracker(opts.PeakBlock),
	}

	if opts.Exercise.NeedsRoleNegotiation() {
		if !opts.AutoDetectLegs {
			s.role = opts.Role
		}
		if p := opts.Params.OtherLeg; p != nil {
			s.gradient = NewGradientThreshold(p.MinGradientThreshold, p.Alpha, p.GradientRatio)
		}
	}
	return s
}

// Step 处理一个窗口；end 为窗口最后一个样本之后的全局序号
// 没有新样本时直接返回。返回本次接受的事件（切片在下次调用前有效）。
func (s *State) Step(window []float64, end int64, now time.Time) []Detection {
	s.detections = s.detections[:0]
	n := len(window)
	if n < 2 || n > len(s.shifted) || end <= s.lastEnd {
		return nil
	}

	fresh := int(end - s.lastEnd)
	if fresh > n {
		fresh = n
	}
	base := end - int64(n)

	switch s.exercise {
	case models.ExerciseWalk:
		s.stepWalk(window, base, fresh, now)
	case models.ExerciseMarchThigh:
		s.stepMarch(window, base, fresh, false, now)
	case models.ExerciseMarchAnkle:
		s.stepMarch(window, base, fresh, true, now)
	case models.ExerciseSwing, models.ExerciseTandem:
		s.stepSwing(window, base, fresh, now)
	}

	s.lastEnd = end
	return s.detections
}

// consumeCrossing 过零在重叠窗口中只处理一次
func (s *State) consumeCrossing(index int64) bool {
	if index <= s.lastCrossing {
		return false
	}
	s.lastCrossing = index
	return true
}

// sinceLastEvent 距上次接受事件的秒数；尚无事件时为 +Inf
func (s *State) sinceLastEvent(now time.Time) float64 {
	if s.lastEvent.IsZero() {
		return math.Inf(1)
	}
	return now.Sub(s.lastEvent).Seconds()
}

func (s *State) accept(kind Kind, index int64, magnitude float64, now time.Time) {
	s.movements++
	s.lastEvent = now
	s.points = append(s.points, index)
	if s.collect {
		s.timestamps = append(s.timestamps, float64(now.UnixNano())/1e9)
	}
	s.detections = append(s.detections, Detection{
		Kind:        kind,
		SampleIndex: index,
		Magnitude:   magnitude,
		At:          now,
	})
}

// shift 将窗口平移（可取反）到 s.shifted
func (s *State) shift(window []float64, displacement float64, invert bool) []float64 {
	out := s.shifted[:len(window)]
	for i, v := range window {
		if invert {
			v = -v
		}
		out[i] = v - displacement
	}
	return out
}

// Movements 已接受的动作数
func (s *State) Movements() int { return s.movements }

// Points 已接受事件的全局样本序号
func (s *State) Points() []int64 { return s.points }

// Timestamps 已接受事件的时间戳（秒）
func (s *State) Timestamps() []float64 { return s.timestamps }

// Role 当前腿角色
func (s *State) Role() models.Role { return s.role }
