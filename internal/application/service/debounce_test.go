package service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerCoalesces(t *testing.T) {
	var runs, coalesced atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { runs.Add(1) }, func() { coalesced.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	assert.True(t, d.Pending())

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int32(4), coalesced.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerSeparateBursts(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { runs.Add(1) }, nil)

	d.Trigger()
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 2*time.Millisecond)
	d.Trigger()
	assert.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 2*time.Millisecond)
}

func TestDebouncerFlushAndCancel(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(time.Hour, func() { runs.Add(1) }, nil)

	assert.False(t, d.Flush())

	d.Trigger()
	assert.True(t, d.Flush())
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())

	d.Trigger()
	d.Cancel()
	assert.False(t, d.Pending())
	assert.False(t, d.Flush())
	assert.Equal(t, int32(1), runs.Load())
}
