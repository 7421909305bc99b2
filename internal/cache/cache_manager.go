// Package cache 会话结果缓存与实时提示事件流（Redis）
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"wisefido-gait/internal/analyzer"
	"wisefido-gait/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	rediscommon "wisefido-gait/common/redis"
)

// Config 缓存配置
type Config struct {
	CueStream       string        // 实时提示事件流，默认 gait:cue:stream
	CueStreamMaxLen int64         // 流的近似最大长度
	ResultPrefix    string        // 结果键前缀，默认 gait:session:
	ResultTTL       time.Duration // 结果缓存时间，0 表示不过期
}

// CueEvent 实时提示事件（发布到 Redis Streams 的 data 字段）
type CueEvent struct {
	SessionID   string    `json:"session_id"`
	Leg         string    `json:"leg"`
	Role        string    `json:"role"`
	Kind        string    `json:"kind"`
	SampleIndex int64     `json:"sample_index"`
	Magnitude   float64   `json:"magnitude"`
	AudioSample int       `json:"audio_sample"`
	Count       int       `json:"count"`
	At          time.Time `json:"at"`
}

// NewCueEvent 由分析器事件构造
func NewCueEvent(sessionID string, e analyzer.Event) CueEvent {
	return CueEvent{
		SessionID:   sessionID,
		Leg:         e.Leg.String(),
		Role:        e.Role.String(),
		Kind:        e.Kind.String(),
		SampleIndex: e.SampleIndex,
		Magnitude:   e.Magnitude,
		AudioSample: e.AudioSample,
		Count:       e.Count,
		At:          e.At,
	}
}

// CacheManager Redis 缓存管理器（会话结果 + 实时提示流）
type CacheManager struct {
	config Config
	kv     KVStore
	client *redis.Client
	logger *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(cfg Config, kv KVStore, client *redis.Client, logger *zap.Logger) *CacheManager {
	if cfg.CueStream == "" {
		cfg.CueStream = "gait:cue:stream"
	}
	if cfg.ResultPrefix == "" {
		cfg.ResultPrefix = "gait:session:"
	}
	return &CacheManager{
		config: cfg,
		kv:     kv,
		client: client,
		logger: logger,
	}
}

// PublishCue 发布一个实时提示事件
func (c *CacheManager) PublishCue(ctx context.Context, event CueEvent) error {
	if c.client == nil {
		return errors.New("redis client not configured")
	}
	id, err := rediscommon.PublishJSONToStream(ctx, c.client, c.config.CueStream, c.config.CueStreamMaxLen, event)
	if err != nil {
		return fmt.Errorf("failed to publish cue event: %w", err)
	}

	c.logger.Debug("Published cue event",
		zap.String("stream", c.config.CueStream),
		zap.String("message_id", id),
		zap.String("kind", event.Kind),
	)
	return nil
}

// ReadCues 读取提示流中的事件（"-" 到 "+" 为全部）
func (c *CacheManager) ReadCues(ctx context.Context, start, stop string) ([]CueEvent, error) {
	if c.client == nil {
		return nil, errors.New("redis client not configured")
	}
	messages, err := rediscommon.ReadRange(ctx, c.client, c.config.CueStream, start, stop)
	if err != nil {
		return nil, fmt.Errorf("failed to read cue stream: %w", err)
	}

	events := make([]CueEvent, 0, len(messages))
	for _, msg := range messages {
		data, ok := msg.Values["data"].(string)
		if !ok {
			c.logger.Warn("Cue message without data field", zap.String("message_id", msg.ID))
			continue
		}
		var event CueEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			c.logger.Warn("Failed to unmarshal cue message", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (c *CacheManager) resultKey(sessionID string) string {
	return c.config.ResultPrefix + sessionID
}

// SaveResult 缓存会话摘要，供界面读取
func (c *CacheManager) SaveResult(ctx context.Context, summary *models.SessionSummary) error {
	jsonData, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal session summary: %w", err)
	}

	key := c.resultKey(summary.SessionID)
	if err := c.kv.Set(ctx, key, string(jsonData), c.config.ResultTTL); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Cached session result",
		zap.String("session_id", summary.SessionID),
		zap.String("key", key),
	)
	return nil
}

// GetResult 读取缓存的会话摘要，不存在时返回 ErrCacheMiss
func (c *CacheManager) GetResult(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	raw, err := c.kv.Get(ctx, c.resultKey(sessionID))
	if err != nil {
		return nil, err
	}

	var summary models.SessionSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session summary: %w", err)
	}
	return &summary, nil
}
