package worker

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookbook/internal/logging"
)

func TestPool_RunsJobsAndDrainsOnStop(t *testing.T) {
	p := NewPool(3, 16, logging.Discard())
	p.Start(context.Background())

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(Job{Name: "inc", Run: func(context.Context) { n.Add(1) }}))
	}
	p.Stop()
	assert.Equal(t, int32(10), n.Load())
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(1, 4, logging.Discard())
	p.Start(context.Background())

	var ran atomic.Bool
	require.NoError(t, p.Submit(Job{Name: "boom", Run: func(context.Context) { panic("boom") }}))
	require.NoError(t, p.Submit(Job{Name: "after", Run: func(context.Context) { ran.Store(true) }}))
	p.Stop()
	assert.True(t, ran.Load())
}

func TestPool_DropsWhenFull(t *testing.T) {
	// не стартуем воркеров: очередь из одного места заполняется первой задачей
	p := NewPool(1, 1, logging.Discard())
	var dropped int
	p.OnDrop(func() { dropped++ })

	noop := Job{Name: "noop", Run: func(context.Context) {}}
	require.NoError(t, p.Submit(noop))
	assert.ErrorIs(t, p.Submit(noop), ErrQueueFull)
	assert.Equal(t, 1, dropped)
	p.Stop()
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, logging.Discard())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
	assert.Error(t, p.Submit(Job{Name: "late", Run: func(context.Context) {}}))
}

func TestInline(t *testing.T) {
	ran := false
	require.NoError(t, Inline{}.Submit(Job{Run: func(context.Context) { ran = true }}))
	assert.True(t, ran)
}
