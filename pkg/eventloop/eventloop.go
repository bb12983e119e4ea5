// Package eventloop implements the single-threaded cooperative scheduler
// every Aiko process runs: a timer min-heap, flat-out handlers invoked
// every tick, and typed message-queue handlers (spec.md §4.3). All
// user-visible handlers — timers, queue items, frame processing,
// discovery callbacks — run on this one goroutine; the only suspension
// point is the loop's own sleep.
package eventloop

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/aikoservices/aiko/pkg/log"
)

// TimerID identifies a scheduled timer for later cancellation.
type TimerID uint64

// QueueTag identifies the type of item a queue handler registers
// interest in.
type QueueTag string

// QueueHandler is invoked once per queued item whose tag it registered
// for, in the order items were enqueued.
type QueueHandler func(item any)

// FlatOutHandler is invoked once per tick, with no delay, until it
// returns false.
type FlatOutHandler func() (more bool)

type timerEntry struct {
	id       TimerID
	handler  func()
	period   time.Duration // zero for one-shot timers
	nextFire time.Time
	index    int
	canceled bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].nextFire.Before(h[j].nextFire) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

type queueItem struct {
	tag  QueueTag
	item any
}

// Loop is the cooperative scheduler. It is not safe for concurrent use
// from more than one goroutine; only Enqueue is intended to be called
// from another goroutine (the transport's I/O thread, per spec.md §5).
type Loop struct {
	mu sync.Mutex

	timers    timerHeap
	nextID    TimerID
	flatOuts  []FlatOutHandler
	queueSubs map[QueueTag][]QueueHandler
	queue     []queueItem

	terminate  bool
	exitStatus int
	wake       chan struct{}

	lastTick time.Duration
}

// New creates an idle event loop.
func New() *Loop {
	return &Loop{
		queueSubs: make(map[QueueTag][]QueueHandler),
		wake:      make(chan struct{}, 1),
	}
}

// AddTimer schedules handler to fire once after delay, or, if period > 0,
// repeatedly every period starting after delay.
func (l *Loop) AddTimer(delay, period time.Duration, handler func()) TimerID {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	e := &timerEntry{
		id:       l.nextID,
		handler:  handler,
		period:   period,
		nextFire: time.Now().Add(delay),
	}
	heap.Push(&l.timers, e)
	l.notify()
	return e.id
}

// RemoveTimer cancels a previously scheduled timer. Removing an unknown
// or already-fired one-shot timer is a no-op.
func (l *Loop) RemoveTimer(id TimerID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.timers {
		if e.id == id {
			e.canceled = true
			return
		}
	}
}

// AddFlatOut registers a handler invoked every tick with no delay.
func (l *Loop) AddFlatOut(handler FlatOutHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flatOuts = append(l.flatOuts, handler)
}

// AddQueueHandler registers handler for items enqueued under tag.
func (l *Loop) AddQueueHandler(tag QueueTag, handler QueueHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queueSubs[tag] = append(l.queueSubs[tag], handler)
}

// Enqueue pushes an item onto the message queue under tag. Safe to call
// from any goroutine — this is how the transport's I/O thread hands
// incoming messages to the loop without ever running a handler itself.
func (l *Loop) Enqueue(tag QueueTag, item any) {
	l.mu.Lock()
	l.queue = append(l.queue, queueItem{tag: tag, item: item})
	l.notify()
	l.mu.Unlock()
}

// notify must be called with mu held.
func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Terminate requests the loop stop after the current tick completes.
func (l *Loop) Terminate(exitStatus int) {
	l.mu.Lock()
	l.terminate = true
	l.exitStatus = exitStatus
	l.notify()
	l.mu.Unlock()
}

// Run drains timers, flat-out handlers and queued messages until
// Terminate is called or ctx is canceled, then returns the exit status.
func (l *Loop) Run(ctx context.Context) int {
	logger := log.WithComponent("eventloop")
	logger.Debug().Msg("event loop starting")

	for {
		l.mu.Lock()
		if l.terminate {
			status := l.exitStatus
			l.mu.Unlock()
			logger.Debug().Msg("event loop terminated")
			return status
		}
		l.mu.Unlock()

		tickStart := time.Now()
		l.drainTimers()
		l.drainQueue()
		l.drainFlatOuts()
		l.mu.Lock()
		l.lastTick = time.Since(tickStart)
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0
		default:
		}

		sleep := l.nextSleep()
		select {
		case <-ctx.Done():
			return 0
		case <-l.wake:
		case <-time.After(sleep):
		}
	}
}

// QueueDepth returns the number of items currently waiting to be drained.
func (l *Loop) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// LastTickDuration returns the wall-clock time the most recent tick spent
// draining timers, queue items and flat-out handlers.
func (l *Loop) LastTickDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastTick
}

func (l *Loop) nextSleep() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	const maxSleep = time.Millisecond
	if len(l.timers) == 0 {
		return maxSleep
	}
	next := l.timers[0].nextFire
	if until := time.Until(next); until < maxSleep {
		if until < 0 {
			return 0
		}
		return until
	}
	return maxSleep
}

func (l *Loop) drainTimers() {
	now := time.Now()
	for {
		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].nextFire.After(now) {
			l.mu.Unlock()
			return
		}
		e := heap.Pop(&l.timers).(*timerEntry)
		canceled := e.canceled
		if !canceled && e.period > 0 {
			e.nextFire = e.nextFire.Add(e.period)
			heap.Push(&l.timers, e)
		}
		l.mu.Unlock()

		if !canceled {
			e.handler()
		}
	}
}

func (l *Loop) drainFlatOuts() {
	l.mu.Lock()
	handlers := append([]FlatOutHandler(nil), l.flatOuts...)
	l.mu.Unlock()

	var keep []FlatOutHandler
	for _, h := range handlers {
		if h() {
			keep = append(keep, h)
		}
	}

	l.mu.Lock()
	l.flatOuts = keep
	l.mu.Unlock()
}

func (l *Loop) drainQueue() {
	l.mu.Lock()
	items := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, qi := range items {
		l.mu.Lock()
		handlers := append([]QueueHandler(nil), l.queueSubs[qi.tag]...)
		l.mu.Unlock()
		for _, h := range handlers {
			h(qi.item)
		}
	}
}
