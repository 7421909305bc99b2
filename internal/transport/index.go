package transport

import "sync"

// CircularIndex 两个分析协程共享的音频样本序号（对 modulus 取模）
// 读-改-写全部在锁内完成，两条腿不会领取到同一个音频样本。
type CircularIndex struct {
	mu      sync.Mutex
	value   int
	modulus int
}

// NewCircularIndex 创建共享序号，modulus 为已加载的音频样本数量
func NewCircularIndex(modulus int) *CircularIndex {
	if modulus <= 0 {
		modulus = 1
	}
	return &CircularIndex{modulus: modulus}
}

// Next 领取当前序号并推进，返回领取到的序号
func (c *CircularIndex) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	claimed := c.value
	c.value = (c.value + 1) % c.modulus
	return claimed
}

// Increment 推进序号
func (c *CircularIndex) Increment() {
	c.Next()
}

// Value 返回当前序号
func (c *CircularIndex) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Modulus 返回模数
func (c *CircularIndex) Modulus() int {
	return c.modulus
}
