package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
	"wisefido-gait/internal/models"

	"go.uber.org/zap"
	mqttcommon "wisefido-gait/common/mqtt"
)

// MQTTClient 链路使用的 MQTT 操作（common/mqtt.Client 满足该接口）
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
	Disconnect()
}

// DialFunc 建立 MQTT 连接
type DialFunc func(ctx context.Context) (MQTTClient, error)

// MQTTConfig 传感器网关主题配置
type MQTTConfig struct {
	DeviceID     string
	TopicPrefix  string        // 默认 "gait"
	QoS          byte
	ReadyTimeout time.Duration // 等待两条腿首个样本的时间
}

// PitchTopic 样本主题：<prefix>/<device>/pitch
func (c MQTTConfig) PitchTopic() string {
	return fmt.Sprintf("%s/%s/pitch", c.prefix(), c.DeviceID)
}

// CommandTopic 命令主题：<prefix>/<device>/command
func (c MQTTConfig) CommandTopic() string {
	return fmt.Sprintf("%s/%s/command", c.prefix(), c.DeviceID)
}

func (c MQTTConfig) prefix() string {
	if c.TopicPrefix == "" {
		return "gait"
	}
	return c.TopicPrefix
}

// PitchMessage 网关上报的样本
type PitchMessage struct {
	Leg       int     `json:"leg"`
	Pitch     float64 `json:"pitch"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// CommandMessage 下发给网关的命令
type CommandMessage struct {
	Command   string `json:"command"`
	Timestamp int64  `json:"timestamp"`
}

// MQTTConnector 通过 MQTT 网关连接传感器
type MQTTConnector struct {
	cfg    MQTTConfig
	dial   DialFunc
	logger *zap.Logger
}

// NewMQTTConnector 创建 MQTT 传感器连接器
func NewMQTTConnector(cfg MQTTConfig, dial DialFunc, logger *zap.Logger) *MQTTConnector {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}
	return &MQTTConnector{cfg: cfg, dial: dial, logger: logger}
}

// Connect 连接 broker、订阅样本主题，并等待两条腿都上报过样本
func (c *MQTTConnector) Connect(ctx context.Context) (Link, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sensor gateway: %w", err)
	}

	link := &MQTTLink{cfg: c.cfg, client: client, logger: c.logger}
	if err := client.Subscribe(c.cfg.PitchTopic(), c.cfg.QoS, link.handleMessage); err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("failed to subscribe to pitch topic: %w", err)
	}

	if err := link.waitReady(ctx, c.cfg.ReadyTimeout); err != nil {
		link.Disconnect()
		return nil, err
	}

	c.logger.Info("Sensor link established",
		zap.String("device_id", c.cfg.DeviceID),
		zap.String("topic", c.cfg.PitchTopic()),
	)
	return link, nil
}

// MQTTLink MQTT 传感器链路
type MQTTLink struct {
	cfg    MQTTConfig
	client MQTTClient
	logger *zap.Logger
	legs   [2]sampleQueue
}

// handleMessage 处理网关样本，支持单条对象或数组
func (l *MQTTLink) handleMessage(topic string, payload []byte) error {
	var messages []PitchMessage
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return fmt.Errorf("failed to unmarshal pitch batch: %w", err)
		}
	} else {
		var msg PitchMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return fmt.Errorf("failed to unmarshal pitch message: %w", err)
		}
		messages = append(messages, msg)
	}

	for _, msg := range messages {
		if msg.Leg != int(models.LegLeft) && msg.Leg != int(models.LegRight) {
			l.logger.Debug("Ignoring pitch sample for unknown leg",
				zap.String("topic", topic),
				zap.Int("leg", msg.Leg),
			)
			continue
		}
		l.legs[msg.Leg].push(msg.Pitch)
	}
	return nil
}

func (l *MQTTLink) waitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.legs[models.LegLeft].seen() && l.legs[models.LegRight].seen() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: device %s within %s", ErrNoDevice, l.cfg.DeviceID, timeout)
		case <-ticker.C:
		}
	}
}

// ReadSample 按到达顺序读取下一个样本（批量上报的样本逐个读出）
func (l *MQTTLink) ReadSample(leg models.Leg) (float64, bool) {
	if leg != models.LegLeft && leg != models.LegRight {
		return 0, false
	}
	return l.legs[leg].pop()
}

// Dropped 因采集循环读取不及时而丢弃的样本数
func (l *MQTTLink) Dropped(leg models.Leg) uint64 {
	if leg != models.LegLeft && leg != models.LegRight {
		return 0
	}
	return l.legs[leg].droppedCount()
}

// ResetOrientation 下发姿态归零命令
func (l *MQTTLink) ResetOrientation(ctx context.Context) error {
	payload, err := json.Marshal(CommandMessage{Command: "reset", Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to marshal reset command: %w", err)
	}
	if err := l.client.Publish(l.cfg.CommandTopic(), 1, false, payload); err != nil {
		return fmt.Errorf("failed to reset orientation: %w", err)
	}
	return nil
}

// Disconnect 取消订阅并断开
func (l *MQTTLink) Disconnect() {
	if dropped := l.Dropped(models.LegLeft) + l.Dropped(models.LegRight); dropped > 0 {
		l.logger.Warn("Pitch samples dropped before capture",
			zap.Uint64("left", l.Dropped(models.LegLeft)),
			zap.Uint64("right", l.Dropped(models.LegRight)),
		)
	}
	if err := l.client.Unsubscribe(l.cfg.PitchTopic()); err != nil {
		l.logger.Warn("Failed to unsubscribe pitch topic", zap.Error(err))
	}
	l.client.Disconnect()
}
