package analyzer

import (
	"math"
	"testing"
	"time"
	"wisefido-gait/internal/models"
	"wisefido-gait/internal/params"
	"wisefido-gait/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var swingParams = params.Entry{
	LegDetection: &params.Entry{Displacement: 2.8},
	StepLeg: &params.Entry{
		MinThreshold:  7.5,
		TimeThreshold: 0.17,
		MaxWait:       0.35,
	},
	OtherLeg: &params.Entry{
		MinGradientThreshold: 0.2,
		GradientRatio:        0.5,
		Alpha:                0.3,
		TimeThreshold:        0.24,
		MaxGradient:          8,
	},
}

// swingLeg 静止 1 秒后先屈膝回摆，再前后摆动（周期 1.2s，幅度 20°）
func swingLeg(t float64) float64 {
	if t < 1 {
		return 0
	}
	return -20 * math.Sin(2*math.Pi*(t-1)/1.2)
}

// stationaryLeg 重心转移引起的小幅摆动（周期 0.5s，幅度 2.5°）
func stationaryLeg(t float64) float64 {
	return 2.5 * math.Sin(2*math.Pi*(t+0.004)/0.5)
}

func newSwingState(flag RoleClaimer) *State {
	return NewState(StateOptions{
		Exercise:          models.ExerciseSwing,
		Params:            swingParams,
		WindowSize:        DefaultWindowSize,
		PeakBlock:         DefaultPeakBlock,
		CollectTimestamps: true,
		AutoDetectLegs:    true,
		RoleFlag:          flag,
	})
}

func TestSwing_RoleNegotiation(t *testing.T) {
	flag := transport.NewRoleFlag()
	left, right := newSwingState(flag), newSwingState(flag)

	l, r := feedPair(left, right, synth(8, swingLeg), synth(8, stationaryLeg))

	assert.True(t, flag.IsSet())
	assert.Equal(t, models.RoleStepping, left.Role())
	assert.Equal(t, models.RoleStationary, right.Role())

	require.NotEmpty(t, l)
	require.NotEmpty(t, r)
	// 识别出前进腿的过零在屈膝回摆之后（t≈1.6s）
	assert.InDelta(t, 1.6, l[0].At.Sub(testStart).Seconds(), 0.1)
	assert.Equal(t, KindForward, l[0].Kind)
}

func TestSwing_RoleNegotiationIsSymmetric(t *testing.T) {
	flag := transport.NewRoleFlag()
	left, right := newSwingState(flag), newSwingState(flag)

	feedPair(left, right, synth(4, stationaryLeg), synth(4, swingLeg))

	assert.Equal(t, models.RoleStationary, left.Role())
	assert.Equal(t, models.RoleStepping, right.Role())
}

func TestSwing_SteppingLegAlternates(t *testing.T) {
	flag := transport.NewRoleFlag()
	left, right := newSwingState(flag), newSwingState(flag)

	events, _ := feedPair(left, right, synth(8, swingLeg), synth(8, stationaryLeg))

	// 识别过零即第一次前摆，之后约 5 个周期，每周期前后各一次
	require.GreaterOrEqual(t, len(events), 9)
	assert.LessOrEqual(t, len(events), 12)
	assert.NotEqual(t, events[0].Kind, events[1].Kind, "first swing cued once")
	for i := range events {
		want := KindForward
		if i%2 == 1 {
			want = KindBackward
		}
		assert.Equal(t, want, events[i].Kind, "event %d", i)
	}
	for _, gap := range eventSpacing(events) {
		assert.GreaterOrEqual(t, gap, swingParams.StepLeg.TimeThreshold-1e-9)
	}
	for _, e := range events[1:] {
		assert.GreaterOrEqual(t, math.Abs(e.Magnitude), swingParams.StepLeg.MinThreshold)
	}
}

func TestSwing_StationaryLegShifts(t *testing.T) {
	flag := transport.NewRoleFlag()
	left, right := newSwingState(flag), newSwingState(flag)

	_, events := feedPair(left, right, synth(8, swingLeg), synth(8, stationaryLeg))

	// 角色确定后每 0.25s 一次过零
	assert.InDelta(t, 25, len(events), 3)
	for i, e := range events {
		assert.Equal(t, KindShift, e.Kind)
		if i > 0 {
			assert.NotEqual(t, events[i-1].Magnitude > 0, e.Magnitude > 0, "crossings alternate")
		}
	}
	for _, gap := range eventSpacing(events) {
		assert.GreaterOrEqual(t, gap, swingParams.OtherLeg.TimeThreshold)
	}
}

func TestSwing_StationaryLegRejectsSlowDrift(t *testing.T) {
	state := NewState(StateOptions{
		Exercise:   models.ExerciseTandem,
		Params:     swingParams,
		WindowSize: DefaultWindowSize,
		PeakBlock:  DefaultPeakBlock,
		Role:       models.RoleStationary,
	})

	// 斜率约 0.065°/样本，低于下限
	events := feed(state, synth(8, sine(2.5, 2.0)))
	assert.Empty(t, events)
}

func TestSwing_StationaryLegRejectsJerks(t *testing.T) {
	state := NewState(StateOptions{
		Exercise:   models.ExerciseTandem,
		Params:     swingParams,
		WindowSize: DefaultWindowSize,
		PeakBlock:  DefaultPeakBlock,
		Role:       models.RoleStationary,
	})

	// 方波：过零斜率 20°/样本，超过上限
	events := feed(state, synth(8, func(t float64) float64 {
		if math.Sin(2*math.Pi*t/0.5) >= 0 {
			return 10
		}
		return -10
	}))
	assert.Empty(t, events)
}

func TestSwing_FixedRoles(t *testing.T) {
	stepping := NewState(StateOptions{
		Exercise:   models.ExerciseSwing,
		Params:     swingParams,
		WindowSize: DefaultWindowSize,
		PeakBlock:  DefaultPeakBlock,
		Role:       models.RoleStepping,
	})
	events := feed(stepping, synth(6, sine(20, 1.2)))

	require.NotEmpty(t, events)
	assert.Equal(t, models.RoleStepping, stepping.Role())
	assert.Equal(t, KindForward, events[0].Kind)
	// 第一个正峰在 t=0.3s，不应在上升沿提前触发
	assert.InDelta(t, 20, events[0].Magnitude, 1)
}

func TestSwing_WinningCrossingStartsCycle(t *testing.T) {
	state := newSwingState(transport.NewRoleFlag())
	events := feed(state, synth(2.3, swingLeg))

	// 识别过零（t≈1.6s）之后，同一次前摆的峰值（t≈1.9s）不再触发
	require.NotEmpty(t, events)
	assert.Equal(t, KindForward, events[0].Kind)
	for _, e := range events[1:] {
		assert.NotEqual(t, KindForward, e.Kind, "forward swing at %.3fs", e.At.Sub(testStart).Seconds())
	}
	assert.Equal(t, PhaseNegativePeak, state.phase)
}

func TestSwing_WeakSwingsStillCued(t *testing.T) {
	stepping := NewState(StateOptions{
		Exercise:   models.ExerciseSwing,
		Params:     swingParams,
		WindowSize: DefaultWindowSize,
		PeakBlock:  DefaultPeakBlock,
		Role:       models.RoleStepping,
	})
	// 6° 低于幅度下限 7.5°，只能靠 max_wait 触发
	events := feed(stepping, synth(6, sine(6, 1.2)))

	require.GreaterOrEqual(t, len(events), 6)
	for i, e := range events {
		want := KindForward
		if i%2 == 1 {
			want = KindBackward
		}
		assert.Equal(t, want, e.Kind, "event %d", i)
		assert.Less(t, math.Abs(e.Magnitude), swingParams.StepLeg.MinThreshold)
		if e.Kind == KindForward {
			assert.Positive(t, e.Magnitude)
		} else {
			assert.Negative(t, e.Magnitude)
		}
	}
}

func TestSwing_PhaseTimeout(t *testing.T) {
	late := swingParams.StepLeg.MaxWait + 0.01
	early := swingParams.StepLeg.MaxWait - 0.01
	tests := []struct {
		name      string
		phase     Phase
		candidate *Extremum
		latest    float64
		elapsed   float64
		wantKind  Kind
		wantFire  bool
		wantPhase Phase
	}{
		{"positive peak fires weak candidate", PhasePositivePeak, &Extremum{Value: 3, Index: 40}, 1, late, KindForward, true, PhaseNegativeTrough},
		{"positive peak waits", PhasePositivePeak, &Extremum{Value: 3, Index: 40}, 1, early, 0, false, PhasePositivePeak},
		{"positive peak without candidate", PhasePositivePeak, nil, 1, late, 0, false, PhasePositivePeak},
		{"positive peak candidate on wrong side", PhasePositivePeak, &Extremum{Value: -2, Index: 40}, -2, late, 0, false, PhasePositivePeak},
		{"negative peak fires weak candidate", PhaseNegativePeak, &Extremum{Value: -4, Index: 41}, -1, late, KindBackward, true, PhasePositiveTrough},
		{"negative peak candidate on wrong side", PhaseNegativePeak, &Extremum{Value: 1, Index: 41}, 1, late, 0, false, PhaseNegativePeak},
		{"negative trough advances below zero", PhaseNegativeTrough, nil, -0.5, late, 0, false, PhaseNegativePeak},
		{"negative trough holds above zero", PhaseNegativeTrough, nil, 0.5, late, 0, false, PhaseNegativeTrough},
		{"positive trough advances at zero", PhasePositiveTrough, nil, 0, late, 0, false, PhasePositivePeak},
		{"positive trough holds below zero", PhasePositiveTrough, nil, -0.5, late, 0, false, PhasePositiveTrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState(StateOptions{
				Exercise:   models.ExerciseSwing,
				Params:     swingParams,
				WindowSize: DefaultWindowSize,
				PeakBlock:  DefaultPeakBlock,
				Role:       models.RoleStepping,
			})
			state.phase = tt.phase
			state.phaseStart = testStart
			state.candidate = tt.candidate

			now := testStart.Add(time.Duration(tt.elapsed * float64(time.Second)))
			state.checkPhaseTimeout(tt.latest, now)

			assert.Equal(t, tt.wantPhase, state.phase)
			if !tt.wantFire {
				assert.Empty(t, state.detections)
				assert.Zero(t, state.Movements())
				return
			}
			require.Len(t, state.detections, 1)
			d := state.detections[0]
			assert.Equal(t, tt.wantKind, d.Kind)
			assert.Equal(t, tt.candidate.Index, d.SampleIndex)
			assert.Equal(t, tt.candidate.Value, d.Magnitude)
			assert.Equal(t, 1, state.Movements())
			assert.Equal(t, now, state.phaseStart)
		})
	}
}

func TestSwing_NoRoleWithoutAutoDetect(t *testing.T) {
	state := NewState(StateOptions{
		Exercise:   models.ExerciseSwing,
		Params:     swingParams,
		WindowSize: DefaultWindowSize,
		PeakBlock:  DefaultPeakBlock,
	})
	assert.Empty(t, feed(state, synth(4, swingLeg)))
	assert.Equal(t, models.RoleUnknown, state.Role())
}

func TestSwing_WithoutRoleFlag(t *testing.T) {
	// 单腿运行（无共享标记）时直接成为前进腿
	state := newSwingState(nil)
	events := feed(state, synth(4, swingLeg))

	require.NotEmpty(t, events)
	assert.Equal(t, models.RoleStepping, state.Role())
}

func TestPhase_Cycle(t *testing.T) {
	p := PhasePositivePeak
	seen := []Phase{p}
	for i := 0; i < 4; i++ {
		p = p.next()
		seen = append(seen, p)
	}
	assert.Equal(t, []Phase{
		PhasePositivePeak, PhaseNegativeTrough, PhaseNegativePeak, PhasePositiveTrough, PhasePositivePeak,
	}, seen)
	assert.True(t, PhasePositivePeak.isPeak())
	assert.False(t, PhaseNegativeTrough.isPeak())
}
