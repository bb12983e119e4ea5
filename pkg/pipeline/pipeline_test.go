package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/aikoservices/aiko/pkg/element"
	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/aikoservices/aiko/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constElement struct {
	name  string
	value string
}

func (c *constElement) Name() string { return c.name }
func (c *constElement) StartStream(ctx context.Context, s element.Stream) (element.StreamEvent, string) {
	return element.OKAY, ""
}
func (c *constElement) StopStream(ctx context.Context, s element.Stream) (element.StreamEvent, string) {
	return element.OKAY, ""
}
func (c *constElement) ProcessFrame(ctx context.Context, s element.Stream, inputs map[string]string) (element.StreamEvent, map[string]string) {
	return element.OKAY, map[string]string{"value": c.value}
}

func TestPipelineBasicFrameProcessing(t *testing.T) {
	Register("test.const", func(name string, parameters map[string]string) (element.Element, error) {
		return &constElement{name: name, value: parameters["value"]}, nil
	})

	def := &Definition{
		Name:  "test-pipeline",
		Graph: []string{"(source sink)"},
		Elements: []ElementDefinition{
			{Name: "source", Module: "test.const", Parameters: map[string]string{"value": "42"}},
			{Name: "sink", Module: "test.const", Parameters: map[string]string{"value": "unused"}},
		},
	}

	broker := transport.NewBroker()
	loop := eventloop.New()
	tr := broker.NewClient(loop)

	p, err := New(def, loop, tr, nil)
	require.NoError(t, err)

	s, err := p.CreateStream(context.Background(), 1, nil, 10*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.ID())

	frame := p.CreateFrame(1)
	result, err := p.ProcessFrame(context.Background(), frame)
	require.NoError(t, err)
	// sink runs after source and also emits "value"; the later writer wins.
	assert.Equal(t, "unused", result.Swag["value"])

	require.NoError(t, p.DestroyStream(context.Background(), 1))
}

func TestPipelineRejectsDuplicateStream(t *testing.T) {
	def := &Definition{Name: "p", Graph: []string{"(a)"}, Elements: []ElementDefinition{
		{Name: "a", Module: "test.const", Parameters: map[string]string{"value": "1"}},
	}}
	broker := transport.NewBroker()
	loop := eventloop.New()
	tr := broker.NewClient(loop)

	p, err := New(def, loop, tr, nil)
	require.NoError(t, err)

	_, err = p.CreateStream(context.Background(), 1, nil, time.Second)
	require.NoError(t, err)
	_, err = p.CreateStream(context.Background(), 1, nil, time.Second)
	assert.Error(t, err)
}
