// Package lease implements the expiring, optionally auto-renewed token
// every long-lived Aiko resource — streams, EC subscriptions — is built
// on (spec.md §4.4). A Lease schedules its own expiry (and, if
// auto-extending, its own renewal) as timers on an eventloop.Loop rather
// than being polled, generalizing the teacher's lazily-checked
// TokenManager into a scheduled primitive.
package lease

import (
	"sync"
	"time"

	"github.com/aikoservices/aiko/pkg/eventloop"
)

// OnExpire is invoked exactly once, with the lease's id, when the lease
// expires without being extended or terminated first.
type OnExpire func(id string)

// OnExtend is invoked every time the lease is successfully extended.
type OnExtend func(id string, newTime time.Duration)

// Config configures a new Lease.
type Config struct {
	// Time is the lease's duration until expiry.
	Time time.Duration
	// ID identifies the lease to its OnExpire/OnExtend callbacks.
	ID string
	// AutoExtend, if true, additionally schedules an "extend" timer at
	// 0.8 * Time that calls OnExtendDue instead of letting the lease
	// expire — used by EC consumers renewing their subscription.
	AutoExtend bool
	OnExpire   OnExpire
	OnExtend   OnExtend
	// OnExtendDue fires when the auto-extend timer reaches 0.8 * Time;
	// typically the caller re-extends the lease from here.
	OnExtendDue func(id string)
}

// Lease is an expiring token scheduled on an event loop.
type Lease struct {
	mu   sync.Mutex
	loop *eventloop.Loop
	cfg  Config

	time        time.Duration
	deadline    time.Time
	expireTimer eventloop.TimerID
	extendTimer eventloop.TimerID
	hasExtend   bool
	terminated  bool
	expired     bool
}

// New creates a Lease and schedules its expiry (and extend-due, if
// AutoExtend) timers.
func New(loop *eventloop.Loop, cfg Config) *Lease {
	l := &Lease{loop: loop, cfg: cfg, time: cfg.Time}
	l.schedule()
	return l
}

func (l *Lease) schedule() {
	l.deadline = time.Now().Add(l.time)
	l.expireTimer = l.loop.AddTimer(l.time, 0, l.fireExpire)
	if l.cfg.AutoExtend {
		l.extendTimer = l.loop.AddTimer(durationFraction(l.time, 0.8), 0, l.fireExtendDue)
		l.hasExtend = true
	}
}

func durationFraction(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

func (l *Lease) fireExpire() {
	l.mu.Lock()
	if l.terminated || l.expired {
		l.mu.Unlock()
		return
	}
	l.expired = true
	if l.hasExtend {
		l.loop.RemoveTimer(l.extendTimer)
	}
	cb := l.cfg.OnExpire
	id := l.cfg.ID
	l.mu.Unlock()

	if cb != nil {
		cb(id)
	}
}

func (l *Lease) fireExtendDue() {
	l.mu.Lock()
	if l.terminated || l.expired {
		l.mu.Unlock()
		return
	}
	cb := l.cfg.OnExtendDue
	id := l.cfg.ID
	l.mu.Unlock()

	if cb != nil {
		cb(id)
	}
}

// Extend cancels and reschedules the expiry timer (and the extend-due
// timer, if auto-extending) for newTime, then fires OnExtend.
func (l *Lease) Extend(newTime time.Duration) {
	l.mu.Lock()
	if l.terminated || l.expired {
		l.mu.Unlock()
		return
	}

	l.loop.RemoveTimer(l.expireTimer)
	if l.hasExtend {
		l.loop.RemoveTimer(l.extendTimer)
	}
	l.time = newTime
	l.deadline = time.Now().Add(newTime)
	l.expireTimer = l.loop.AddTimer(newTime, 0, l.fireExpire)
	if l.cfg.AutoExtend {
		l.extendTimer = l.loop.AddTimer(durationFraction(newTime, 0.8), 0, l.fireExtendDue)
		l.hasExtend = true
	}

	cb := l.cfg.OnExtend
	id := l.cfg.ID
	l.mu.Unlock()

	if cb != nil {
		cb(id, newTime)
	}
}

// Terminate cancels both timers without firing OnExpire.
func (l *Lease) Terminate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.terminated || l.expired {
		return
	}
	l.terminated = true
	l.loop.RemoveTimer(l.expireTimer)
	if l.hasExtend {
		l.loop.RemoveTimer(l.extendTimer)
	}
}

// Remaining reports the time left before expiry, for metrics.
func (l *Lease) Remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.terminated || l.expired {
		return 0
	}
	return time.Until(l.deadline)
}

// Time returns the lease's current duration: Config.Time, or the value
// passed to the most recent Extend.
func (l *Lease) Time() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.time
}

// ID returns the lease's identifier.
func (l *Lease) ID() string {
	return l.cfg.ID
}
