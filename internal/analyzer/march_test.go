package analyzer

import (
	"math"
	"testing"
	"wisefido-gait/internal/models"
	"wisefido-gait/internal/params"

	"github.com/stretchr/testify/assert"
)

var marchParams = params.Entry{
	Displacement:  11,
	TimeThreshold: 0.33,
}

// lift 大腿抬起：半周期抬腿，半周期静止
func lift(amplitude, period float64) func(t float64) float64 {
	return func(t float64) float64 {
		return amplitude * math.Max(0, math.Sin(2*math.Pi*t/period))
	}
}

func negate(f func(float64) float64) func(float64) float64 {
	return func(t float64) float64 { return -f(t) }
}

func TestMarch_Thigh(t *testing.T) {
	state := newTestState(models.ExerciseMarchThigh, marchParams)
	events := feed(state, synth(10, lift(40, 0.8)))

	assert.InDelta(t, 13, len(events), 1)
	for _, e := range events {
		assert.Equal(t, KindMarch, e.Kind)
	}
	for _, gap := range eventSpacing(events) {
		assert.Greater(t, gap, marchParams.TimeThreshold)
	}
}

func TestMarch_AnkleInvertsSignal(t *testing.T) {
	thigh := newTestState(models.ExerciseMarchThigh, marchParams)
	ankle := newTestState(models.ExerciseMarchAnkle, marchParams)

	thighEvents := feed(thigh, synth(10, lift(40, 0.8)))
	ankleEvents := feed(ankle, synth(10, negate(lift(40, 0.8))))
	assert.Equal(t, len(thighEvents), len(ankleEvents))

	wrong := newTestState(models.ExerciseMarchThigh, marchParams)
	assert.Empty(t, feed(wrong, synth(10, negate(lift(40, 0.8)))))
}

func TestMarch_TimeThreshold(t *testing.T) {
	state := newTestState(models.ExerciseMarchThigh, marchParams)
	events := feed(state, synth(10, lift(40, 0.25)))

	// 0.25s 周期快于最小间隔，部分抬腿被忽略
	assert.Less(t, len(events), 40)
	assert.NotEmpty(t, events)
	for _, gap := range eventSpacing(events) {
		assert.Greater(t, gap, marchParams.TimeThreshold)
	}
}

func TestMarch_NoiseBelowDisplacement(t *testing.T) {
	state := newTestState(models.ExerciseMarchThigh, marchParams)
	assert.Empty(t, feed(state, synth(5, lift(9, 0.8))))
}
