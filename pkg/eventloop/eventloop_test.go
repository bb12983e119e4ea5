package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerFiresOnce(t *testing.T) {
	l := New()
	var fired int32
	l.AddTimer(10*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(60 * time.Millisecond)
		l.Terminate(0)
	}()

	status := l.Run(ctx)
	assert.Equal(t, 0, status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestTimerPeriodicReschedules(t *testing.T) {
	l := New()
	var fired int32
	l.AddTimer(5*time.Millisecond, 5*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(40 * time.Millisecond)
		l.Terminate(0)
	}()
	l.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&fired), int32(3))
}

func TestRemoveTimerPreventsFiring(t *testing.T) {
	l := New()
	var fired int32
	id := l.AddTimer(10*time.Millisecond, 0, func() {
		atomic.AddInt32(&fired, 1)
	})
	l.RemoveTimer(id)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(30 * time.Millisecond)
		l.Terminate(0)
	}()
	l.Run(ctx)

	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestQueueHandlerDispatchByTag(t *testing.T) {
	l := New()
	var got []string
	l.AddQueueHandler("a", func(item any) {
		got = append(got, item.(string))
	})
	l.AddQueueHandler("b", func(item any) {
		t.Fatalf("b handler should not see %v", item)
	})

	l.Enqueue("a", "one")
	l.Enqueue("a", "two")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Terminate(7)
	}()
	status := l.Run(ctx)

	require.Equal(t, 7, status)
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestFlatOutRunsEveryTickUntilDone(t *testing.T) {
	l := New()
	var ticks int32
	l.AddFlatOut(func() bool {
		n := atomic.AddInt32(&ticks, 1)
		return n < 3
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(30 * time.Millisecond)
		l.Terminate(0)
	}()
	l.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&ticks), int32(3))
}
