package transport

import (
	"sync"

	"github.com/aikoservices/aiko/pkg/eventloop"
)

// Broker is the shared in-process bus multiple FakeTransport clients
// attach to, so a producer and a consumer in the same test observe each
// other's publishes exactly as two MQTT clients on the same broker
// would. Adapted from the teacher's events.Broker subscription-map/
// broadcast shape, with subscriptions keyed by topic pattern instead of
// a single fan-out channel, and delivery routed through each client's
// own eventloop.Loop instead of a dedicated goroutine, per spec.md §5's
// single-thread rule.
type Broker struct {
	mu       sync.Mutex
	retained map[string]Message
	clients  []*FakeTransport
}

// NewBroker creates an empty in-process broker.
func NewBroker() *Broker {
	return &Broker{retained: make(map[string]Message)}
}

// queueTag is the eventloop queue tag FakeTransport enqueues delivery
// callbacks under; each client registers its own handler for it so
// delivery always runs on that client's loop.
const queueTag eventloop.QueueTag = "transport.fake.delivery"

// NewClient attaches a new FakeTransport to the broker, delivering
// incoming messages through loop.
func (b *Broker) NewClient(loop *eventloop.Loop) *FakeTransport {
	c := &FakeTransport{
		loop:      loop,
		broker:    b,
		connected: make(chan struct{}),
	}
	close(c.connected)
	loop.AddQueueHandler(queueTag, func(item any) {
		item.(func())()
	})

	b.mu.Lock()
	b.clients = append(b.clients, c)
	b.mu.Unlock()
	return c
}

func (b *Broker) publish(from *FakeTransport, msg Message) {
	b.mu.Lock()
	if msg.Retain {
		b.retained[msg.Topic] = msg
	}
	clients := append([]*FakeTransport(nil), b.clients...)
	b.mu.Unlock()

	for _, c := range clients {
		c.deliver(msg)
	}
}

func (b *Broker) disconnectWithLWT(c *FakeTransport) {
	c.mu.Lock()
	lwt := c.lwt
	c.mu.Unlock()
	if lwt == nil {
		return
	}
	b.publish(c, *lwt)
}

func (b *Broker) remove(c *FakeTransport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cl := range b.clients {
		if cl == c {
			b.clients = append(b.clients[:i], b.clients[i+1:]...)
			return
		}
	}
}

type fakeSub struct {
	patterns []string
	handler  Handler
}

// FakeTransport is an in-process Transport backed by a Broker. It exists
// so Registrar, EC and Pipeline tests can exercise real pub/sub
// semantics (retained messages, LWT, topic-pattern matching) without a
// broker process.
type FakeTransport struct {
	mu sync.Mutex

	loop   *eventloop.Loop
	broker *Broker

	subs []*fakeSub
	lwt  *Message

	connected chan struct{}
	closed    bool
}

// Publish implements Transport.
func (c *FakeTransport) Publish(topic, payload string, retain, wait bool) error {
	c.broker.publish(c, Message{Topic: topic, Payload: payload, Retain: retain})
	return nil
}

// Subscribe implements Transport. Any currently-retained message on a
// matching topic is delivered immediately, mirroring a real broker's
// behavior on subscribe.
func (c *FakeTransport) Subscribe(topics []string, handler Handler) error {
	c.mu.Lock()
	c.subs = append(c.subs, &fakeSub{patterns: topics, handler: handler})
	c.mu.Unlock()

	c.broker.mu.Lock()
	var matches []Message
	for _, pattern := range topics {
		for topic, msg := range c.broker.retained {
			if TopicMatches(pattern, topic) {
				matches = append(matches, msg)
			}
		}
	}
	c.broker.mu.Unlock()

	for _, msg := range matches {
		m := msg
		c.loop.Enqueue(queueTag, func() { handler(m) })
	}
	return nil
}

// Unsubscribe implements Transport.
func (c *FakeTransport) Unsubscribe(topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keep []*fakeSub
	for _, s := range c.subs {
		if !sameSet(s.patterns, topics) {
			keep = append(keep, s)
		}
	}
	c.subs = keep
	return nil
}

// SetLastWillAndTestament implements Transport.
func (c *FakeTransport) SetLastWillAndTestament(topic, payload string, retain bool) error {
	c.mu.Lock()
	c.lwt = &Message{Topic: topic, Payload: payload, Retain: retain}
	c.mu.Unlock()
	return nil
}

// Connected implements Transport.
func (c *FakeTransport) Connected() <-chan struct{} {
	return c.connected
}

// Close implements Transport: it publishes the LWT (simulating an
// unclean disconnect) and detaches from the broker.
func (c *FakeTransport) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.broker.disconnectWithLWT(c)
	c.broker.remove(c)
	return nil
}

func (c *FakeTransport) deliver(msg Message) {
	c.mu.Lock()
	subs := append([]*fakeSub(nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		for _, pattern := range s.patterns {
			if TopicMatches(pattern, msg.Topic) {
				handler := s.handler
				c.loop.Enqueue(queueTag, func() { handler(msg) })
				break
			}
		}
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}
