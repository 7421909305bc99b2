package analyzer

import (
	"math"
	"time"
)

// stepMarch 原地踏步：平移量同时充当噪声下限和阈值，不单独判断幅度
// 脚踝佩戴时信号方向相反，先取反。
func (s *State) stepMarch(window []float64, base int64, fresh int, invert bool, now time.Time) {
	p := s.params
	shifted := s.shift(window, p.Displacement, invert)

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

	magnitude := s.peak
	s.swing = false
	if s.sinceLastEvent(now) > p.TimeThreshold {
		s.accept(KindMarch, base+int64(c.Index), magnitude, now)
	}
}
