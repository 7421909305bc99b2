package models

import "time"

// LegSummary 单条腿的会话摘要
type LegSummary struct {
	Leg          string  `json:"leg"`
	Role         string  `json:"role"`
	Samples      int     `json:"samples"`
	Movements    int     `json:"movements"`
	EventIndices []int64 `json:"event_indices"`
}

// SessionSummary 会话摘要（缓存、持久化、导出共用）
type SessionSummary struct {
	SessionID   string        `json:"session_id"`
	Exercise    string        `json:"exercise"`
	Sensitivity int           `json:"sensitivity"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	Legs        [2]LegSummary `json:"legs"`
	BPM         *float64      `json:"bpm,omitempty"`
}

// TotalMovements 两条腿的动作总数
func (s *SessionSummary) TotalMovements() int {
	return s.Legs[0].Movements + s.Legs[1].Movements
}

// Duration 实际录制时长
func (s *SessionSummary) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}
