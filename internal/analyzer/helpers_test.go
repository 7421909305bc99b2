package analyzer

import (
	"math"
	"time"
	"wisefido-gait/internal/models"
	"wisefido-gait/internal/params"
	"wisefido-gait/internal/transport"
)

const (
	testRate     = 120.0
	samplePeriod = time.Second / 120
)

var testStart = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// sampleTime 以样本序号推导的时钟：每个样本推进 1/120 秒
func sampleTime(i int) time.Time {
	return testStart.Add(time.Duration(i) * samplePeriod)
}

// feed 按样本逐个写入环形缓冲区，每写入一个样本处理一次窗口
func feed(state *State, signal []float64) []Detection {
	rb := transport.NewRingBuffer(transport.DefaultCapacity)
	window := make([]float64, DefaultWindowSize)

	var all []Detection
	for i, v := range signal {
		rb.Write(v)
		end, ok := rb.ReadWindow(window)
		if !ok {
			continue
		}
		all = append(all, state.Step(window, end, sampleTime(i))...)
	}
	return all
}

// feedPair 两条腿同步推进，共享同一个时钟
func feedPair(left, right *State, leftSignal, rightSignal []float64) (l, r []Detection) {
	lb := transport.NewRingBuffer(transport.DefaultCapacity)
	rb := transport.NewRingBuffer(transport.DefaultCapacity)
	lw := make([]float64, DefaultWindowSize)
	rw := make([]float64, DefaultWindowSize)

	for i := range leftSignal {
		lb.Write(leftSignal[i])
		rb.Write(rightSignal[i])
		if end, ok := lb.ReadWindow(lw); ok {
			l = append(l, left.Step(lw, end, sampleTime(i))...)
		}
		if end, ok := rb.ReadWindow(rw); ok {
			r = append(r, right.Step(rw, end, sampleTime(i))...)
		}
	}
	return l, r
}

// synth 生成 seconds 秒的信号
func synth(seconds float64, f func(t float64) float64) []float64 {
	n := int(seconds * testRate)
	out := make([]float64, n)
	for i := range out {
		out[i] = f(float64(i) / testRate)
	}
	return out
}

// withSpikes 每隔 every 个样本叠加一次正负交替的尖峰
func withSpikes(signal []float64, every int, amplitude float64) []float64 {
	out := append([]float64(nil), signal...)
	sign := 1.0
	for i := every; i < len(out); i += every {
		out[i] += sign * amplitude
		sign = -sign
	}
	return out
}

func newTestState(exercise models.ExerciseType, entry params.Entry) *State {
	return NewState(StateOptions{
		Exercise:          exercise,
		Params:            entry,
		WindowSize:        DefaultWindowSize,
		PeakBlock:         DefaultPeakBlock,
		CollectTimestamps: true,
	})
}

func eventSpacing(ds []Detection) []float64 {
	var out []float64
	for i := 1; i < len(ds); i++ {
		out = append(out, ds[i].At.Sub(ds[i-1].At).Seconds())
	}
	return out
}

func sine(amplitude, period float64) func(t float64) float64 {
	return func(t float64) float64 {
		return amplitude * math.Sin(2*math.Pi*t/period)
	}
}
