package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvanceRunsDueCallbacksInOrder(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var order []int
	c.AfterFunc(30*time.Millisecond, func() { order = append(order, 3) })
	c.AfterFunc(10*time.Millisecond, func() { order = append(order, 1) })
	stopped := c.AfterFunc(20*time.Millisecond, func() { order = append(order, 2) })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	c.Advance(15 * time.Millisecond)
	assert.Equal(t, []int{1}, order)
	assert.Equal(t, 1, c.Pending())

	c.Sleep(time.Second)
	assert.Equal(t, []int{1, 3}, order)
	assert.Equal(t, start.Add(1015*time.Millisecond), c.Now())
	assert.Zero(t, c.Pending())
}

func TestFakeAfterFuncImmediate(t *testing.T) {
	t.Parallel()
	c := NewFake(time.Time{})
	ran := false
	timer := c.AfterFunc(0, func() { ran = true })
	assert.True(t, ran)
	assert.False(t, timer.Stop())
}
