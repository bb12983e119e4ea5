// Package transport abstracts the pub/sub message broker connection
// every Aiko process shares (spec.md §4.5). Publish/subscribe semantics,
// last-will-and-testament and reconnect-resubscribe are part of the
// broker client's contract; incoming messages are handed to an
// eventloop.Loop rather than dispatched on the transport's own I/O
// goroutine, so that every user handler still runs on the single
// cooperative scheduler thread (spec.md §5).
package transport

// Message is one payload delivered on a topic.
type Message struct {
	Topic   string
	Payload string
	Retain  bool
}

// Handler is invoked, on the owning event loop, for every message
// delivered on a topic the caller subscribed to.
type Handler func(Message)

// Transport is the contract every Aiko component depends on to reach the
// broker. Implementations: MQTTTransport (real broker) and FakeTransport
// (in-process, for tests).
type Transport interface {
	// Publish sends payload to topic. If wait is true, Publish blocks
	// until the broker has acknowledged delivery.
	Publish(topic, payload string, retain, wait bool) error

	// Subscribe registers handler for topics. Re-established
	// automatically by the implementation on reconnect.
	Subscribe(topics []string, handler Handler) error

	// Unsubscribe removes a prior subscription for topics.
	Unsubscribe(topics []string) error

	// SetLastWillAndTestament sets the message the broker publishes if
	// this client disconnects uncleanly. Taking effect requires a
	// transient disconnect/reconnect, per spec.md §4.5.
	SetLastWillAndTestament(topic, payload string, retain bool) error

	// Connected is closed whenever the transport becomes connected;
	// callers that need to wait for connectivity select on it instead
	// of spin-waiting (SPEC_FULL.md DESIGN NOTES "coroutine-style flow").
	Connected() <-chan struct{}

	// Close disconnects the transport.
	Close() error
}
