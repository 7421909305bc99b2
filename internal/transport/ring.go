package transport

import (
	"math"
	"sync/atomic"
)

const (
	// DefaultCapacity 每条腿环形缓冲区的默认容量（约 8 秒 @120Hz）
	DefaultCapacity = 1000

	// Sentinel 终止标记，写在当前游标位置；俯仰角远小于 1000°，不会与真实样本冲突
	Sentinel = 1000.0
)

// RingBuffer 单写单读的环形缓冲区（传感器读取协程写，对应腿的分析协程读）
//
// 数据通路不加锁：写入方先写槽位再推进游标，读取方按当前游标取最近 size 个样本。
// 每个槽位和游标都是原子变量，因此不存在 Go 层面的数据竞争；但读取一个窗口时
// 写入方可能同时覆盖窗口最旧的槽位（缓冲区回绕处），窗口不保证是一致快照。
// 这是有意保留的尽力而为语义：慢速读取方最多重复读到或漏读样本，不会出错。
//
// 容量之外额外保留一个尾部槽位，分析协程退出前把最终动作计数写在这里。
type RingBuffer struct {
	slots    []atomic.Uint64
	capacity int64
	written  atomic.Int64
}

// NewRingBuffer 创建环形缓冲区
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	rb := &RingBuffer{
		slots:    make([]atomic.Uint64, capacity+1),
		capacity: int64(capacity),
	}
	rb.slots[capacity].Store(math.Float64bits(math.NaN()))
	return rb
}

// Capacity 返回样本容量（不含尾部槽位）
func (rb *RingBuffer) Capacity() int {
	return int(rb.capacity)
}

// Write 在当前游标处写入样本并推进游标
func (rb *RingBuffer) Write(sample float64) {
	n := rb.written.Load()
	rb.slots[n%rb.capacity].Store(math.Float64bits(sample))
	rb.written.Store(n + 1)
}

// WriteTermination 在当前游标处写入终止标记，不推进游标
func (rb *RingBuffer) WriteTermination() {
	n := rb.written.Load()
	rb.slots[n%rb.capacity].Store(math.Float64bits(Sentinel))
}

// Terminated 当前游标处是否为终止标记
func (rb *RingBuffer) Terminated() bool {
	n := rb.written.Load()
	return math.Float64frombits(rb.slots[n%rb.capacity].Load()) == Sentinel
}

// Written 已写入样本总数（全局样本序号，跨回绕单调递增）
func (rb *RingBuffer) Written() int64 {
	return rb.written.Load()
}

// ReadWindow 将以游标结尾（不含游标）的最近 len(dst) 个样本拷贝到 dst
// end 为窗口最后一个样本之后的全局序号。缓冲区尚在预热（写入数不足）或
// 窗口大小非法时 ok 为 false。终止标记位于游标处，永远不会出现在窗口中。
func (rb *RingBuffer) ReadWindow(dst []float64) (end int64, ok bool) {
	size := int64(len(dst))
	if size == 0 || size > rb.capacity {
		return 0, false
	}
	end = rb.written.Load()
	if end < size {
		return end, false
	}

	start := (end - size) % rb.capacity
	for i := int64(0); i < size; i++ {
		dst[i] = math.Float64frombits(rb.slots[(start+i)%rb.capacity].Load())
	}
	return end, true
}

// PublishFinalCount 分析协程退出前写入最终动作计数
func (rb *RingBuffer) PublishFinalCount(count int) {
	rb.slots[rb.capacity].Store(math.Float64bits(float64(count)))
}

// FinalCount 读取最终动作计数；分析协程未正常结束时 ok 为 false
func (rb *RingBuffer) FinalCount() (count int, ok bool) {
	v := math.Float64frombits(rb.slots[rb.capacity].Load())
	if math.IsNaN(v) {
		return 0, false
	}
	return int(v), true
}
