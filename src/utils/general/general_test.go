package general

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemInSlice(t *testing.T) {
	assert.True(t, ItemInSlice([]string{"a", "b"}, "b"))
	assert.False(t, ItemInSlice([]string{"a", "b"}, "c"))
	assert.False(t, ItemInSlice(nil, "a"))
}

func TestNoDuplicateItemsInSlice(t *testing.T) {
	assert.True(t, NoDuplicateItemsInSlice([]int{1, 2, 3}))
	assert.False(t, NoDuplicateItemsInSlice([]int{1, 2, 1}))
	assert.True(t, NoDuplicateItemsInSlice([]int{}))
}

func TestChannelAtLoadLevel(t *testing.T) {
	ch := make(chan int, 10)
	assert.False(t, ChannelAtLoadLevel(ch, 0.5))
	for i := 0; i < 5; i++ {
		ch <- i
	}
	assert.True(t, ChannelAtLoadLevel(ch, 0.5))
	assert.False(t, ChannelAtLoadLevel(ch, 0.8))
}

func TestRoundToDecimals(t *testing.T) {
	assert.Equal(t, 1.23456789, RoundToDecimals(1.234567894, 8))
	assert.Equal(t, 1.2345679, RoundToDecimals(1.23456789, 7))
	assert.Equal(t, 100.0, RoundToDecimals(99.999999996, 8))
}

func TestSafeValue(t *testing.T) {
	assert.Equal(t, 0.0, SafeValue(math.NaN()))
	assert.Equal(t, 0.0, SafeValue(math.Inf(1)))
	assert.Equal(t, 0.0, SafeValue(math.Inf(-1)))
	assert.Equal(t, 42.5, SafeValue(42.5))
}

func TestRollingBufferEviction(t *testing.T) {
	buffer := NewRollingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		buffer.Add(i)
	}

	assert.Equal(t, []int{3, 4, 5}, buffer.All())
	assert.Equal(t, 3, buffer.Len())
	assert.Equal(t, 3, buffer.Cap())

	latest, ok := buffer.Latest()
	assert.True(t, ok)
	assert.Equal(t, 5, latest)
}

func TestRollingBufferEmpty(t *testing.T) {
	buffer := NewRollingBuffer[string](2)
	_, ok := buffer.Latest()
	assert.False(t, ok)
	assert.Empty(t, buffer.All())
}

func TestRollingBufferReplace(t *testing.T) {
	buffer := NewRollingBuffer[int](3)
	buffer.Add(99)

	buffer.Replace([]int{1, 2, 3, 4, 5})
	assert.Equal(t, []int{3, 4, 5}, buffer.All())

	buffer.Replace(nil)
	assert.Empty(t, buffer.All())
}
