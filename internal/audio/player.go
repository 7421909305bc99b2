package audio

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Player 音频提示播放（即发即忘）
type Player interface {
	Play(sample int)
}

// Publisher 异步发布（common/mqtt.Client 满足该接口）
type Publisher interface {
	PublishAsync(topic string, qos byte, payload []byte)
}

// CueMessage 发给音箱网关的播放命令
type CueMessage struct {
	Sample    int    `json:"sample"`
	Name      string `json:"name,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// MQTTPlayer 通过 MQTT 让音箱网关播放样本，QoS 0，不等待确认
type MQTTPlayer struct {
	publisher Publisher
	topic     string
	samples   []Sample
	logger    *zap.Logger
}

// NewMQTTPlayer 创建远端播放器
func NewMQTTPlayer(publisher Publisher, topic string, samples []Sample, logger *zap.Logger) *MQTTPlayer {
	return &MQTTPlayer{publisher: publisher, topic: topic, samples: samples, logger: logger}
}

// Play 播放第 sample 个样本
func (p *MQTTPlayer) Play(sample int) {
	msg := CueMessage{Sample: sample, Timestamp: time.Now().UnixMilli()}
	if sample >= 0 && sample < len(p.samples) {
		msg.Name = p.samples[sample].Name
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("Failed to marshal cue message", zap.Error(err))
		return
	}
	p.publisher.PublishAsync(p.topic, 0, payload)
}

// NopPlayer 不播放（关闭声音或无音箱时使用）
type NopPlayer struct{}

// Play 无操作
func (NopPlayer) Play(int) {}
