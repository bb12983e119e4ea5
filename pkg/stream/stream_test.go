package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamParametersAndVariables(t *testing.T) {
	s := New(1, map[string]string{"gain": "2"}, nil)
	assert.EqualValues(t, 1, s.ID())

	v, ok := s.Parameter("gain")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok = s.Parameter("missing")
	assert.False(t, ok)

	s.SetVariable("count", 5)
	got, ok := s.Variable("count")
	assert.True(t, ok)
	assert.Equal(t, 5, got)
}

func TestStreamNextFrameIDIncrements(t *testing.T) {
	s := New(1, nil, nil)
	assert.EqualValues(t, 0, s.NextFrameID())
	assert.EqualValues(t, 1, s.NextFrameID())
}

func TestContextMergeOutputsLaterWriterWins(t *testing.T) {
	c := NewContext(1, 1)
	c.MergeOutputs("a", map[string]string{"x": "first"})
	c.MergeOutputs("b", map[string]string{"x": "second"})
	assert.Equal(t, "second", c.Swag["x"])
}

func TestContextGatherMissingInput(t *testing.T) {
	c := NewContext(1, 1)
	c.Swag["a"] = "1"
	_, ok := c.Gather([]string{"a", "b"})
	assert.False(t, ok)

	inputs, ok := c.Gather([]string{"a"})
	assert.True(t, ok)
	assert.Equal(t, "1", inputs["a"])
}

func TestScalarString(t *testing.T) {
	assert.Equal(t, "true", ScalarString(true))
	assert.Equal(t, "42", ScalarString(42))
	assert.Equal(t, "null", ScalarString(nil))
}
