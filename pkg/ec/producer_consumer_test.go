package ec

import (
	"context"
	"testing"
	"time"

	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/aikoservices/aiko/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runLoops runs two loops concurrently until do (on the producer side)
// completes and the consumer has had time to react, then stops both.
func runLoops(t *testing.T, producerLoop, consumerLoop *eventloop.Loop, do func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		producerLoop.Run(ctx)
		close(done)
	}()
	go func() {
		consumerLoop.Run(ctx)
	}()

	go func() {
		do()
		time.Sleep(50 * time.Millisecond)
		producerLoop.Terminate(0)
		consumerLoop.Terminate(0)
	}()

	<-done
}

func TestProducerConsumerSnapshotAndUpdate(t *testing.T) {
	broker := transport.NewBroker()
	producerLoop := eventloop.New()
	consumerLoop := eventloop.New()

	producerTr := broker.NewClient(producerLoop)
	consumerTr := broker.NewClient(consumerLoop)

	producer, err := NewProducer(producerTr, producerLoop, "ns/svc/control", "ns/svc/state", nil)
	require.NoError(t, err)
	require.NoError(t, producer.state.Set("a", "1"))
	require.NoError(t, producer.state.Set("b.c", "2"))

	consumer, err := NewConsumer(consumerTr, consumerLoop, "ns/svc/control", "ns/consumer/resp", 10*time.Second, []string{"*"})
	require.NoError(t, err)

	runLoops(t, producerLoop, consumerLoop, func() {
		<-consumer.Ready()
		require.NoError(t, producer.state.Set("a", "5"))
		producer.applyAndFanOut("update", []string{"a", "5"})
	})

	v, ok := consumer.State().Get("a")
	require.True(t, ok)
	assert.Equal(t, "5", v)

	v, ok = consumer.State().Get("b.c")
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestProducerRejectsDeepPathCommand(t *testing.T) {
	broker := transport.NewBroker()
	loop := eventloop.New()
	tr := broker.NewClient(loop)

	producer, err := NewProducer(tr, loop, "ns/svc/control", "ns/svc/state", nil)
	require.NoError(t, err)

	producer.applyAndFanOut("add", []string{"a.b.c", "1"})
	_, ok := producer.state.Get("a.b.c")
	assert.False(t, ok)
}
