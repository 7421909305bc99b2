package session

import (
	"errors"
	"fmt"
	"time"
	"wisefido-gait/internal/audio"
	"wisefido-gait/internal/models"
)

var (
	// ErrSensorUnavailable 在连接超时内没有建立传感器链路
	ErrSensorUnavailable = errors.New("sensor unavailable")
	// ErrNoAudioSamples 开启声音但没有可用的音频样本
	ErrNoAudioSamples = audio.ErrNoSamples
	// ErrSensorDropout 会话中某条腿的信号冻结
	ErrSensorDropout = errors.New("sensor dropout")
	// ErrAnalyzerIncomplete 分析协程没有写入最终计数，会话结果不可信
	ErrAnalyzerIncomplete = errors.New("analyzer did not complete")
	// ErrBusy 已有会话在进行
	ErrBusy = errors.New("session already running")
)

// DropoutError 信号冻结的腿和持续时间
type DropoutError struct {
	Leg   models.Leg
	Since time.Duration
}

func (e *DropoutError) Error() string {
	return fmt.Sprintf("sensor dropout on %s leg: no change for %s", e.Leg, e.Since.Round(time.Millisecond))
}

func (e *DropoutError) Unwrap() error {
	return ErrSensorDropout
}
