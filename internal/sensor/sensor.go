// Package sensor 可穿戴惯性传感器链路（每条腿一个俯仰角样本流）
package sensor

import (
	"context"
	"errors"
	"sync"
	"wisefido-gait/internal/models"
)

// ErrNoDevice 在等待窗口内没有收到两条腿的样本
var ErrNoDevice = errors.New("no sensor device reported samples")

// Link 已连接的传感器链路
type Link interface {
	// ReadSample 按到达顺序读取该腿的下一个俯仰角（度）；没有待读样本时 available 为 false
	ReadSample(leg models.Leg) (angle float64, available bool)
	// ResetOrientation 以当前姿态为零点
	ResetOrientation(ctx context.Context) error
	Disconnect()
}

// Connector 建立传感器链路
type Connector interface {
	Connect(ctx context.Context) (Link, error)
}

// DefaultQueueSize 每条腿待读取样本的上限（约 2 秒 @120Hz）
const DefaultQueueSize = 256

// sampleQueue 单条腿的待读样本，网关回调入队、采集循环按顺序出队
// 队列满时丢弃最旧的样本。零值可用。
type sampleQueue struct {
	mu      sync.Mutex
	buf     []float64
	head    int
	size    int
	total   uint64
	dropped uint64
}

func (q *sampleQueue) push(v float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf == nil {
		q.buf = make([]float64, DefaultQueueSize)
	}
	q.total++
	if q.size == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped++
	}
	q.buf[(q.head+q.size)%len(q.buf)] = v
	q.size++
}

func (q *sampleQueue) pop() (float64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return 0, false
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v, true
}

func (q *sampleQueue) seen() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total > 0
}

func (q *sampleQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
