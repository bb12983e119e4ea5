package ec

import (
	"strconv"
	"sync"
	"time"

	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/aikoservices/aiko/pkg/lease"
	"github.com/aikoservices/aiko/pkg/metrics"
	"github.com/aikoservices/aiko/pkg/sexp"
	"github.com/aikoservices/aiko/pkg/transport"
)

// Consumer subscribes to one EC producer's response topic, applies
// add/update/remove commands verbatim to a local State, and tracks
// snapshot completeness per spec.md §4.9 / Invariant 3.
type Consumer struct {
	mu sync.Mutex

	state *State
	tr    transport.Transport
	lease *lease.Lease

	responseTopic string
	controlTopic  string
	itemCount     int
	itemsReceived int
	ready         chan struct{}
	readyClosed   bool
	subscribedAt  time.Time
}

// NewConsumer subscribes responseTopic on controlTopic with the given
// leaseTime and itemNames (use []string{"*"} for all keys), requesting a
// snapshot from the producer.
func NewConsumer(tr transport.Transport, loop *eventloop.Loop, controlTopic, responseTopic string, leaseTime time.Duration, itemNames []string) (*Consumer, error) {
	c := &Consumer{
		state:         NewState(),
		tr:            tr,
		responseTopic: responseTopic,
		controlTopic:  controlTopic,
		ready:         make(chan struct{}),
		subscribedAt:  time.Now(),
	}

	if err := tr.Subscribe([]string{responseTopic}, c.handleResponse); err != nil {
		return nil, err
	}

	c.lease = lease.New(loop, lease.Config{
		Time:       leaseTime,
		ID:         responseTopic,
		AutoExtend: true,
		OnExtendDue: func(string) {
			c.lease.Extend(leaseTime)
			c.requestStream(tr, controlTopic, leaseTime, itemNames)
		},
	})

	c.requestStream(tr, controlTopic, leaseTime, itemNames)
	return c, nil
}

func (c *Consumer) requestStream(tr transport.Transport, controlTopic string, leaseTime time.Duration, itemNames []string) {
	params := append([]string{c.responseTopic, strconv.Itoa(int(leaseTime / time.Second))}, itemNames...)
	_ = tr.Publish(controlTopic, sexp.Generate("stream", params), false, false)
}

func (c *Consumer) handleResponse(msg transport.Message) {
	command, params := sexp.Parse(msg.Payload)
	switch command {
	case "item_count":
		c.mu.Lock()
		c.itemCount = sexp.ParamInt(params, 0)
		c.itemsReceived = 0
		c.mu.Unlock()
		c.maybeReady()
	case "add", "update":
		path := sexp.ParamString(params, 0)
		value := sexp.ParamString(params, 1)
		_ = c.state.Set(path, value)
		c.mu.Lock()
		c.itemsReceived++
		c.mu.Unlock()
		c.maybeReady()
	case "remove":
		path := sexp.ParamString(params, 0)
		_ = c.state.Delete(path)
	case "sync":
		// informational only, per spec.md §4.9.
	}
}

func (c *Consumer) maybeReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.readyClosed && c.itemsReceived >= c.itemCount {
		c.readyClosed = true
		metrics.ECTimeToReady.Observe(time.Since(c.subscribedAt).Seconds())
		close(c.ready)
	}
}

// Ready is closed exactly once, after the initial snapshot has been
// fully applied (Invariant 3).
func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

// State returns the consumer's local cache.
func (c *Consumer) State() *State {
	return c.state
}

// Close terminates the subscription: it tells the producer to drop it
// with a lease_time=0 stream command (spec.md §4.8), then cancels the
// consumer's own renewal lease.
func (c *Consumer) Close() {
	_ = c.tr.Publish(c.controlTopic, sexp.Generate("stream", []string{c.responseTopic, "0"}), false, false)
	c.lease.Terminate()
}
