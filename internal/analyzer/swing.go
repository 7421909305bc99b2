package analyzer

import (
	"math"
	"time"
	"wisefido-gait/internal/models"
)

// stepSwing 摆腿/前后脚：先确定角色，再分派到前进腿或静止腿算法
func (s *State) stepSwing(window []float64, base int64, fresh int, now time.Time) {
	if s.role == models.RoleUnknown {
		if !s.autoDetect {
			return
		}
		if s.detectRole(window, base, fresh, now) {
			// 抢到角色的过零本身就是第一步
			return
		}
		if s.role == models.RoleUnknown {
			return
		}
	}

	if s.phaseStart.IsZero() {
		// 角色由调用方指定时，从第一个窗口开始计时
		s.resetForRole(now)
	}

	switch s.role {
	case models.RoleStepping:
		s.stepLeg(window, base, fresh, now)
	case models.RoleStationary:
		s.otherLeg(window, base, now)
	}
}

// detectRole 角色识别
// 平滑窗口并按识别平移量平移，等待正向过零；过零前两个窗口内必须出现低于
// -(displacement + 0.1) 的谷值（起步前的屈膝回摆），以区别于静止腿上被压平的噪声。
// 先满足条件并成功设置角色标记的一方为前进腿，另一方看到标记后成为静止腿。
// 返回 true 表示本次调用抢到了前进腿角色。
func (s *State) detectRole(window []float64, base int64, fresh int, now time.Time) bool {
	if s.roleFlag != nil && s.roleFlag.IsSet() {
		s.role = models.RoleStationary
		s.resetForRole(now)
		return false
	}

	d := s.params.LegDetection.Displacement
	n := len(window)
	smoothed := s.smoothed[:n]
	smooth(smoothed, window)

	s.recent = append(s.recent, smoothed[n-fresh:]...)
	if limit := 2 * len(s.smoothed); len(s.recent) > limit {
		s.recent = append(s.recent[:0], s.recent[len(s.recent)-limit:]...)
	}

	shifted := s.shifted[:n]
	for i, v := range smoothed {
		shifted[i] = v - d
	}

	c, ok := DetectZeroCrossing(shifted, 0)
	if !ok || c.Negative {
		return false
	}
	index := base + int64(c.Index)
	if !s.consumeCrossing(index) {
		return false
	}

	// recent 最后一个样本的全局序号为 base+n-1
	recentStart := base + int64(n) - int64(len(s.recent))
	trough := math.Inf(1)
	for j, v := range s.recent {
		if recentStart+int64(j) >= index {
			break
		}
		trough = math.Min(trough, v)
	}
	if trough > -d-legDetectionMargin {
		return false
	}

	if s.roleFlag == nil || s.roleFlag.Set(true) {
		s.role = models.RoleStepping
		s.resetForRole(now)
		s.accept(KindForward, index, maxOf(window[c.Index:]), now)
		// 这次过零已经是本次前摆的提示，周期从负向过零开始，前摆的峰值不再触发
		s.phase = PhaseNegativeTrough
		return true
	}
	s.role = models.RoleStationary
	s.resetForRole(now)
	return false
}

func (s *State) resetForRole(now time.Time) {
	s.phase = PhasePositivePeak
	s.phaseStart = now
	s.candidate = nil
	s.tracker.Reset()
}

func (s *State) sincePhase(now time.Time) float64 {
	return now.Sub(s.phaseStart).Seconds()
}

// advance 进入下一阶段
func (s *State) advance(now time.Time) {
	s.phase = s.phase.next()
	s.phaseStart = now
	s.candidate = nil
}

// stepLeg 前进腿四阶段周期：正峰 → 负向过零 → 负峰 → 正向过零
// 峰阶段需满足幅度下限，每次阶段切换需满足最小间隔；峰阶段在 max_wait 内
// 未确认时，以期间的极值触发（幅度不足也触发，避免节拍停滞），极值须在
// 该阶段一侧（正峰为正、负峰为负）。
func (s *State) stepLeg(window []float64, base int64, fresh int, now time.Time) {
	p := s.params.StepLeg
	shifted := s.shift(window, p.Displacement, false)
	n := len(shifted)

	for i := n - fresh; i < n; i++ {
		index := base + int64(i)
		v := shifted[i]
		peak, trough := s.tracker.Push(v, index)

		switch s.phase {
		case PhasePositivePeak:
			if s.candidate == nil || v > s.candidate.Value {
				s.candidate = &Extremum{Value: v, Index: index}
			}
			if peak != nil && peak.Value >= p.MinThreshold && s.sincePhase(now) >= p.TimeThreshold {
				s.accept(KindForward, peak.Index, peak.Value, now)
				s.advance(now)
			}
		case PhaseNegativePeak:
			if s.candidate == nil || v < s.candidate.Value {
				s.candidate = &Extremum{Value: v, Index: index}
			}
			if trough != nil && trough.Value <= -p.MinThreshold && s.sincePhase(now) >= p.TimeThreshold {
				s.accept(KindBackward, trough.Index, trough.Value, now)
				s.advance(now)
			}
		}
	}

	if s.phase == PhaseNegativeTrough || s.phase == PhasePositiveTrough {
		c, ok := DetectZeroCrossing(shifted, 0)
		if ok && s.consumeCrossing(base+int64(c.Index)) {
			wantNegative := s.phase == PhaseNegativeTrough
			if c.Negative == wantNegative && s.sincePhase(now) >= p.TimeThreshold {
				s.advance(now)
			}
		}
	}

	s.checkPhaseTimeout(shifted[n-1], now)
}

func (s *State) checkPhaseTimeout(latest float64, now time.Time) {
	p := s.params.StepLeg
	if p.MaxWait <= 0 || s.sincePhase(now) < p.MaxWait {
		return
	}

	switch s.phase {
	case PhasePositivePeak:
		if s.candidate != nil && s.candidate.Value > 0 {
			s.accept(KindForward, s.candidate.Index, s.candidate.Value, now)
			s.advance(now)
		}
	case PhaseNegativePeak:
		if s.candidate != nil && s.candidate.Value < 0 {
			s.accept(KindBackward, s.candidate.Index, s.candidate.Value, now)
			s.advance(now)
		}
	case PhaseNegativeTrough:
		if latest < 0 {
			s.advance(now)
		}
	case PhasePositiveTrough:
		if latest >= 0 {
			s.advance(now)
		}
	}
}

// otherLeg 静止腿：正负交替的过零，每次需超过自适应斜率阈值、不超过斜率上限，
// 并与上一次间隔至少 time_threshold
func (s *State) otherLeg(window []float64, base int64, now time.Time) {
	p := s.params.OtherLeg
	shifted := s.shift(window, p.Displacement, false)

	c, ok := DetectZeroCrossing(shifted, p.MaxGradient)
	if !ok {
		return
	}
	index := base + int64(c.Index)
	if !s.consumeCrossing(index) {
		return
	}
	if s.expectSet && c.Negative == s.expectPositive {
		return
	}

	g := math.Abs(c.Gradient)
	if g < s.gradient.Value() || s.sinceLastEvent(now) < p.TimeThreshold {
		return
	}
	s.gradient.Accept(g)
	s.expectSet = true
	s.expectPositive = c.Negative
	s.accept(KindShift, index, c.Gradient, now)
}
