package lease

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/stretchr/testify/assert"
)

func runLoop(t *testing.T, l *eventloop.Loop, dur time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), dur+50*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(dur)
		l.Terminate(0)
	}()
	l.Run(ctx)
}

func TestLeaseExpiresAndFiresOnExpireOnce(t *testing.T) {
	loop := eventloop.New()
	var expired int32
	New(loop, Config{
		Time: 20 * time.Millisecond,
		ID:   "s1",
		OnExpire: func(id string) {
			atomic.AddInt32(&expired, 1)
			assert.Equal(t, "s1", id)
		},
	})

	runLoop(t, loop, 80*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&expired))
}

func TestLeaseTerminateSuppressesExpiry(t *testing.T) {
	loop := eventloop.New()
	var expired int32
	l := New(loop, Config{
		Time: 10 * time.Millisecond,
		ID:   "s2",
		OnExpire: func(string) {
			atomic.AddInt32(&expired, 1)
		},
	})
	l.Terminate()

	runLoop(t, loop, 60*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&expired))
}

func TestLeaseExtendPreventsExpiry(t *testing.T) {
	loop := eventloop.New()
	var expired int32
	l := New(loop, Config{
		Time: 30 * time.Millisecond,
		ID:   "s3",
		OnExpire: func(string) {
			atomic.AddInt32(&expired, 1)
		},
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Extend(30 * time.Millisecond)
	}()

	runLoop(t, loop, 45*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&expired))
}

// Invariant 6: with auto_extend true and no external action, on_expire
// is never called across many lease periods, because the extend-due
// timer fires first and the caller re-extends from it.
func TestLeaseAutoExtendNeverExpires(t *testing.T) {
	loop := eventloop.New()
	var expired int32
	var l *Lease
	l = New(loop, Config{
		Time:       20 * time.Millisecond,
		ID:         "s4",
		AutoExtend: true,
		OnExpire: func(string) {
			atomic.AddInt32(&expired, 1)
		},
		OnExtendDue: func(string) {
			l.Extend(20 * time.Millisecond)
		},
	})

	runLoop(t, loop, 5*20*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&expired))
}
