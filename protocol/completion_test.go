package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionDedup(t *testing.T) {
	c := NewCompletion([]string{"worker-1", "worker-2", "worker-3"})

	assert.Equal(t, 0, c.Size())
	assert.True(t, !c.Done())

	assert.True(t, c.Add("worker-1"))
	assert.Equal(t, 1, c.Size())

	// Re-delivering the same ack must not change the set.
	assert.True(t, !c.Add("worker-1"))
	assert.Equal(t, 1, c.Size())

	// A stray sender never counts as progress.
	assert.True(t, !c.Add("intruder"))
	assert.Equal(t, 1, c.Size())

	assert.True(t, c.Add("worker-3"))
	assert.Equal(t, []string{"worker-2"}, c.Laggards())
	assert.True(t, !c.Done())

	assert.True(t, c.Add("worker-2"))
	assert.True(t, c.Done())
	assert.Equal(t, []string{"worker-1", "worker-2", "worker-3"}, c.Members())
	assert.Equal(t, []string{}, c.Laggards())

	// The (K+1)-th ack after completion is still a no-op.
	assert.True(t, !c.Add("worker-2"))
	assert.Equal(t, 3, c.Size())
	assert.True(t, c.Done())
}

func TestCompletionHas(t *testing.T) {
	c := NewCompletion([]string{"w"})
	assert.True(t, !c.Has("w"))
	c.Add("w")
	assert.True(t, c.Has("w"))
	assert.True(t, !c.Has("other"))
}
