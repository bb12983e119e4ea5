package simple

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMathListAdd(t *testing.T) {
	elem, err := NewMathList("sum", map[string]string{"operation": "add"})
	require.NoError(t, err)

	event, outputs := elem.ProcessFrame(context.Background(), nil, map[string]string{"numbers": "1,2,3"})
	assert.Equal(t, 0, int(event))
	assert.Equal(t, "6", outputs["result"])
}

func TestMathListProduct(t *testing.T) {
	elem, err := NewMathList("prod", map[string]string{"operation": "product"})
	require.NoError(t, err)

	_, outputs := elem.ProcessFrame(context.Background(), nil, map[string]string{"numbers": "2,3,4"})
	assert.Equal(t, "24", outputs["result"])
}

func TestMathListRejectsUnknownOperation(t *testing.T) {
	_, err := NewMathList("bad", map[string]string{"operation": "divide"})
	assert.Error(t, err)
}

type fakeStream struct {
	vars map[string]any
}

func newFakeStream() *fakeStream { return &fakeStream{vars: make(map[string]any)} }

func (f *fakeStream) ID() uint64                         { return 1 }
func (f *fakeStream) Parameter(string) (string, bool)    { return "", false }
func (f *fakeStream) Variable(name string) (any, bool)   { v, ok := f.vars[name]; return v, ok }
func (f *fakeStream) SetVariable(name string, v any)     { f.vars[name] = v }

func TestRandIntStopsAfterIterations(t *testing.T) {
	elem, err := NewRandInt("r", map[string]string{"iterations": "2", "list_len": "3", "min": "0", "max": "5"})
	require.NoError(t, err)

	s := newFakeStream()
	event, outputs := elem.ProcessFrame(context.Background(), s, nil)
	assert.Equal(t, 0, int(event))
	assert.Len(t, parseNumbers(outputs["list"]), 3)

	_, _ = elem.ProcessFrame(context.Background(), s, nil)
	event, _ = elem.ProcessFrame(context.Background(), s, nil)
	assert.Equal(t, 5, int(event)) // LoopEnd
}
