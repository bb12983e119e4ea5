package metrics

import (
	"time"

	"github.com/aikoservices/aiko/pkg/eventloop"
)

// Collector periodically samples gauges that have no natural call site to
// update them from: event loop queue depth and tick latency. Counters and
// histograms (frames processed, EC snapshot size, election duration, ...)
// are observed directly at their call sites instead.
type Collector struct {
	loops  []*eventloop.Loop
	stopCh chan struct{}
}

// NewCollector creates a collector polling the given loops.
func NewCollector(loops ...*eventloop.Loop) *Collector {
	return &Collector{
		loops:  loops,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic collection on its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	var depth int
	var tick time.Duration
	for _, l := range c.loops {
		depth += l.QueueDepth()
		if d := l.LastTickDuration(); d > tick {
			tick = d
		}
	}
	QueueDepth.Set(float64(depth))
	if tick > 0 {
		TickLatency.Observe(tick.Seconds())
	}
}
