package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"wisefido-gait/internal/analyzer"

	"go.uber.org/zap"
)

// CuePublisher 事件发布（CacheManager 满足该接口）
type CuePublisher interface {
	PublishCue(ctx context.Context, event CueEvent) error
}

// CueStream 分析器事件旁路：OnEvent 只入队不阻塞，后台协程发布到 Redis
// 队列满时丢弃事件并计数，实时提示不能被网络拖慢。
type CueStream struct {
	publisher CuePublisher
	logger    *zap.Logger
	queue     chan analyzer.Event
	timeout   time.Duration

	mu        sync.RWMutex
	sessionID string

	discarding atomic.Bool

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
	discarded atomic.Int64
}

// NewCueStream 创建事件旁路，size 为队列长度
func NewCueStream(publisher CuePublisher, size int, logger *zap.Logger) *CueStream {
	if size <= 0 {
		size = 256
	}
	return &CueStream{
		publisher: publisher,
		logger:    logger,
		queue:     make(chan analyzer.Event, size),
		timeout:   time.Second,
	}
}

// SetSession 设置后续事件所属的会话，并恢复发布
func (s *CueStream) SetSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.discarding.Store(false)
}

// Discard 会话被取消：丢弃队列中尚未发布的事件，之后到达的事件也丢弃，直到下一次 SetSession
func (s *CueStream) Discard() {
	s.discarding.Store(true)
	for {
		select {
		case <-s.queue:
			s.discarded.Add(1)
		default:
			return
		}
	}
}

func (s *CueStream) session() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// OnEvent 入队；队列满时丢弃
func (s *CueStream) OnEvent(e analyzer.Event) {
	if s.discarding.Load() {
		s.discarded.Add(1)
		return
	}
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
	}
}

// Run 发布循环，ctx 取消后发布完队列中剩余事件再返回
func (s *CueStream) Run(ctx context.Context) {
	for {
		select {
		case e := <-s.queue:
			s.publish(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-s.queue:
					s.publish(e)
				default:
					s.logger.Info("Cue stream stopped",
						zap.Int64("published", s.published.Load()),
						zap.Int64("dropped", s.dropped.Load()),
						zap.Int64("failed", s.failed.Load()),
						zap.Int64("discarded", s.discarded.Load()),
					)
					return
				}
			}
		}
	}
}

func (s *CueStream) publish(e analyzer.Event) {
	if s.discarding.Load() {
		s.discarded.Add(1)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.publisher.PublishCue(ctx, NewCueEvent(s.session(), e)); err != nil {
		s.failed.Add(1)
		s.logger.Warn("Failed to publish cue event", zap.Error(err))
		return
	}
	s.published.Add(1)
}

// Stats 已发布、丢弃、失败的事件数
func (s *CueStream) Stats() (published, dropped, failed int64) {
	return s.published.Load(), s.dropped.Load(), s.failed.Load()
}

// Discarded 会话取消后丢弃的事件数
func (s *CueStream) Discarded() int64 {
	return s.discarded.Load()
}
