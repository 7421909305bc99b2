package analyzer

import (
	"math"
	"time"
)

// stepWalk 行走：平移后跟踪摆动期峰值，负向过零时判定一步
func (s *State) stepWalk(window []float64, base int64, fresh int, now time.Time) {
	p := s.params
	shifted := s.shift(window, p.Displacement, false)

	if s.swing {
		for _, v := range shifted[len(shifted)-fresh:] {
			s.peak = math.Max(s.peak, v)
		}
	}

	c, ok := DetectZeroCrossing(shifted, 0)
	if !ok || !s.consumeCrossing(base+int64(c.Index)) {
		return
	}

	if !c.Negative {
		s.swing = true
		s.peak = maxOf(shifted[c.Index:])
		return
	}
	if !s.swing {
		return
	}
	s.swing = false

	if s.peak >= s.amplitude.Value()-p.ValidRange && s.sinceLastEvent(now) > p.TimeThreshold {
		s.amplitude.Accept(s.peak)
		s.accept(KindStep, base+int64(c.Index), s.peak, now)
	}
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

func minOf(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m
}
