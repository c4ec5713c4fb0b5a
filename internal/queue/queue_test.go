package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	var q Queue[int]
	assert.True(t, q.Empty())

	assert.True(t, q.Push(1))
	assert.False(t, q.Empty())
	assert.Equal(t, 1, q.Pop())
	assert.True(t, q.Empty())

	q.Push(2)
	q.Push(3)
	assert.False(t, q.Push(2), "2 is already pending")
	assert.Equal(t, 2, q.Len())

	assert.Equal(t, 2, q.Pop())
	assert.True(t, q.Push(2), "2 may be pushed again once popped")
	assert.Equal(t, 3, q.Pop())
	assert.Equal(t, 2, q.Pop())
	assert.True(t, q.Empty())

	assert.Panics(t, func() { q.Pop() })
}
