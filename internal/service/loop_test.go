package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLoop_RunsInPostOrder(t *testing.T) {
	l := newEventLoop()
	defer l.stop()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.post(func() { got = append(got, i) }))
	}
	require.True(t, l.call(func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestEventLoop_PostFromClosureDoesNotBlock(t *testing.T) {
	l := newEventLoop()
	defer l.stop()

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	require.True(t, l.call(func() {
		record("outer")
		for i := 0; i < 10; i++ {
			l.post(func() { record("inner") })
		}
	}))
	require.True(t, l.call(func() {}))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, order, 11)
	assert.Equal(t, "outer", order[0])
}

func TestEventLoop_StopDropsLaterPosts(t *testing.T) {
	l := newEventLoop()
	l.stop()
	l.stop()

	assert.False(t, l.post(func() { t.Error("must not run") }))
	assert.False(t, l.call(func() { t.Error("must not run") }))
}
