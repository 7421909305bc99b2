package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_ReadWindow_WarmUp(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write(1)
	rb.Write(2)

	window := make([]float64, 3)
	end, ok := rb.ReadWindow(window)
	assert.False(t, ok)
	assert.Equal(t, int64(2), end)

	_, ok = rb.ReadWindow(nil)
	assert.False(t, ok)
	_, ok = rb.ReadWindow(make([]float64, 11))
	assert.False(t, ok)
}

func TestRingBuffer_ReadWindow_Wraps(t *testing.T) {
	rb := NewRingBuffer(5)
	for i := 1; i <= 7; i++ {
		rb.Write(float64(i))
	}

	window := make([]float64, 4)
	end, ok := rb.ReadWindow(window)
	require.True(t, ok)
	assert.Equal(t, int64(7), end)
	assert.Equal(t, []float64{4, 5, 6, 7}, window)
	assert.Equal(t, int64(7), rb.Written())
}

func TestRingBuffer_TerminationExcludedFromWindow(t *testing.T) {
	rb := NewRingBuffer(8)
	for i := 0; i < 8; i++ {
		rb.Write(float64(i))
	}
	assert.False(t, rb.Terminated())

	rb.WriteTermination()
	assert.True(t, rb.Terminated())

	window := make([]float64, 7)
	end, ok := rb.ReadWindow(window)
	require.True(t, ok)
	assert.Equal(t, int64(8), end)
	assert.NotContains(t, window, Sentinel)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, window)
}

func TestRingBuffer_FinalCount(t *testing.T) {
	rb := NewRingBuffer(4)

	_, ok := rb.FinalCount()
	assert.False(t, ok, "final count missing before analyzer finished")

	// 尾部槽位不受回绕写入影响
	for i := 0; i < 9; i++ {
		rb.Write(float64(i))
	}
	rb.PublishFinalCount(12)

	count, ok := rb.FinalCount()
	require.True(t, ok)
	assert.Equal(t, 12, count)

	rb.Write(99)
	count, ok = rb.FinalCount()
	require.True(t, ok)
	assert.Equal(t, 12, count)
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	rb := NewRingBuffer(0)
	assert.Equal(t, DefaultCapacity, rb.Capacity())
}
