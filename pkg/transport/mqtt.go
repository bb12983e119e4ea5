package transport

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/aikoservices/aiko/pkg/log"
	"github.com/aikoservices/aiko/pkg/metrics"
)

// MQTTConfig configures an MQTTTransport.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	// LastWill is published retained by the broker if this client
	// disconnects uncleanly. paho only reads will options at Connect(),
	// so changing it later (SetLastWillAndTestament) requires the
	// transient reconnect spec.md §4.5 documents.
	LastWill *Message
}

// MQTTTransport implements Transport over github.com/eclipse/paho.mqtt.golang.
// Every callback paho invokes runs on paho's own goroutines; this type's
// only job on that goroutine is to Enqueue the message onto the owning
// eventloop.Loop, so that every Aiko handler still executes on the single
// cooperative scheduler thread (spec.md §5).
type MQTTTransport struct {
	mu sync.Mutex

	loop   *eventloop.Loop
	client mqtt.Client
	cfg    MQTTConfig

	subscriptions map[string]Handler
	connected     chan struct{}
}

func (t *MQTTTransport) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(t.cfg.BrokerURL)
	opts.SetClientID(t.cfg.ClientID)
	opts.SetUsername(t.cfg.Username)
	opts.SetPassword(t.cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(t.onConnect)
	if t.cfg.LastWill != nil {
		opts.SetBinaryWill(t.cfg.LastWill.Topic, []byte(t.cfg.LastWill.Payload), 1, t.cfg.LastWill.Retain)
	}
	return opts
}

// NewMQTTTransport dials the broker and returns a ready Transport.
// Incoming messages are enqueued onto loop rather than handled here.
func NewMQTTTransport(loop *eventloop.Loop, cfg MQTTConfig) (*MQTTTransport, error) {
	t := &MQTTTransport{
		loop:          loop,
		subscriptions: make(map[string]Handler),
		connected:     make(chan struct{}),
	}

	t.cfg = cfg
	t.client = mqtt.NewClient(t.clientOptions())

	metrics.RegisterComponent("transport", false, "connecting")

	logger := log.WithComponent("mqtt-transport")
	token := t.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.BrokerURL, err)
	}
	logger.Debug().Str("broker", cfg.BrokerURL).Msg("connected")

	return t, nil
}

// onConnect re-establishes every previously registered subscription, the
// auto-resubscribe-on-reconnect behavior spec.md §4.5 requires, and
// signals Connected().
func (t *MQTTTransport) onConnect(client mqtt.Client) {
	t.mu.Lock()
	subs := make(map[string]Handler, len(t.subscriptions))
	for topic, h := range t.subscriptions {
		subs[topic] = h
	}
	alreadyConnected := isClosed(t.connected)
	t.mu.Unlock()

	for topic, handler := range subs {
		t.rawSubscribe(topic, handler)
	}

	if !alreadyConnected {
		close(t.connected)
	}
	metrics.UpdateComponent("transport", true, "connected")
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (t *MQTTTransport) rawSubscribe(topic string, handler Handler) {
	t.client.Subscribe(topic, 1, func(_ mqtt.Client, m mqtt.Message) {
		msg := Message{Topic: m.Topic(), Payload: string(m.Payload()), Retain: m.Retained()}
		t.loop.Enqueue(mqttQueueTag, func() { handler(msg) })
	})
}

const mqttQueueTag eventloop.QueueTag = "transport.mqtt.delivery"

var registeredLoops = struct {
	mu   sync.Mutex
	seen map[*eventloop.Loop]bool
}{seen: make(map[*eventloop.Loop]bool)}

func ensureQueueHandler(loop *eventloop.Loop) {
	registeredLoops.mu.Lock()
	defer registeredLoops.mu.Unlock()
	if registeredLoops.seen[loop] {
		return
	}
	registeredLoops.seen[loop] = true
	loop.AddQueueHandler(mqttQueueTag, func(item any) {
		item.(func())()
	})
}

// Publish implements Transport.
func (t *MQTTTransport) Publish(topic, payload string, retain, wait bool) error {
	token := t.client.Publish(topic, 1, retain, payload)
	if wait {
		token.Wait()
		return token.Error()
	}
	return nil
}

// Subscribe implements Transport.
func (t *MQTTTransport) Subscribe(topics []string, handler Handler) error {
	ensureQueueHandler(t.loop)

	t.mu.Lock()
	for _, topic := range topics {
		t.subscriptions[topic] = handler
	}
	t.mu.Unlock()

	for _, topic := range topics {
		t.rawSubscribe(topic, handler)
	}
	return nil
}

// Unsubscribe implements Transport.
func (t *MQTTTransport) Unsubscribe(topics []string) error {
	t.mu.Lock()
	for _, topic := range topics {
		delete(t.subscriptions, topic)
	}
	t.mu.Unlock()

	t.client.Unsubscribe(topics...)
	return nil
}

// SetLastWillAndTestament implements Transport. Per spec.md §4.5, taking
// effect requires a transient disconnect/reconnect, since paho only
// reads LWT options at Connect(); this method performs that reconnect.
func (t *MQTTTransport) SetLastWillAndTestament(topic, payload string, retain bool) error {
	t.mu.Lock()
	t.cfg.LastWill = &Message{Topic: topic, Payload: payload, Retain: retain}
	t.client = mqtt.NewClient(t.clientOptions())
	t.mu.Unlock()

	token := t.client.Connect()
	token.Wait()
	return token.Error()
}

// Connected implements Transport.
func (t *MQTTTransport) Connected() <-chan struct{} {
	return t.connected
}

// Close implements Transport.
func (t *MQTTTransport) Close() error {
	t.client.Disconnect(250)
	metrics.UpdateComponent("transport", false, "disconnected")
	return nil
}
