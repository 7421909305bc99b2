package transport

import (
	"context"
	"sync"
)

// Barrier 可复用的 N 方汇合点
// 每方调用 Arrive，全部到达后一起放行并重置，用于对齐两条腿的起始时间戳。
type Barrier struct {
	mu      sync.Mutex
	parties int
	count   int
	release chan struct{}
}

// NewBarrier 创建 parties 方汇合点
func NewBarrier(parties int) *Barrier {
	if parties < 1 {
		parties = 1
	}
	return &Barrier{
		parties: parties,
		release: make(chan struct{}),
	}
}

// Arrive 到达并阻塞，直到所有参与方到达或 ctx 被取消
func (b *Barrier) Arrive(ctx context.Context) error {
	b.mu.Lock()
	b.count++
	if b.count == b.parties {
		close(b.release)
		b.release = make(chan struct{})
		b.count = 0
		b.mu.Unlock()
		return nil
	}
	release := b.release
	b.mu.Unlock()

	select {
	case <-release:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		// 仍在同一代时撤回到达，避免残留计数放行下一代
		if b.release == release && b.count > 0 {
			b.count--
		}
		b.mu.Unlock()
		return ctx.Err()
	}
}
