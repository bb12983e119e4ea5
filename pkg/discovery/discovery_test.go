package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/aikoservices/aiko/pkg/service"
	"github.com/aikoservices/aiko/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheDispatchesMatchingAdds(t *testing.T) {
	broker := transport.NewBroker()
	loopR := eventloop.New()
	loopC := eventloop.New()
	trR := broker.NewClient(loopR)
	trC := broker.NewClient(loopC)

	c := New()
	require.NoError(t, c.Attach(trC, "ns/h1/1/0"))

	var got []service.Record
	c.RegisterHandler(service.Filter{Name: "*"}, func(action string, rec service.Record) {
		if action == "add" {
			got = append(got, rec)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() { loopC.Run(ctx); close(done) }()
	go func() { loopR.Run(ctx) }()

	go func() {
		_ = trR.Publish("ns/h1/1/0/out", "(add ns/h2/2/0 aiko:0 mqtt alice)", false, false)
		time.Sleep(30 * time.Millisecond)
		loopC.Terminate(0)
		loopR.Terminate(0)
	}()
	<-done

	require.Len(t, got, 1)
	assert.Equal(t, "ns/h2/2/0", got[0].TopicPath)
}

func TestCacheUnregister(t *testing.T) {
	c := New()
	token := c.RegisterHandler(service.Filter{}, func(string, service.Record) {})
	assert.Len(t, c.regs, 1)
	c.Unregister(token)
	assert.Len(t, c.regs, 0)
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
