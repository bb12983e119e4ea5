package element

import (
	"context"
	"testing"

	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/aikoservices/aiko/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteElementAbsentThenDiscovered(t *testing.T) {
	broker := transport.NewBroker()
	loop := eventloop.New()
	tr := broker.NewClient(loop)

	re := NewRemote("downstream", tr)

	event, outputs := re.ProcessFrame(context.Background(), nil, map[string]string{"x": "1"})
	assert.Equal(t, OKAY, event)
	assert.Empty(t, outputs)

	re.OnDiscovered("ns/h2/2/0")

	var published transport.Message
	require.NoError(t, tr.Subscribe([]string{"ns/h2/2/0/in"}, func(m transport.Message) { published = m }))

	event, outputs = re.ProcessFrame(context.Background(), nil, map[string]string{"x": "1"})
	assert.Equal(t, OKAY, event)
	assert.Empty(t, outputs)

	loop.Run(immediateCtx())
	assert.Contains(t, published.Payload, "process_frame")

	re.OnVanished()
	event, _ = re.ProcessFrame(context.Background(), nil, nil)
	assert.Equal(t, OKAY, event)
}

func immediateCtx() (ctx context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
