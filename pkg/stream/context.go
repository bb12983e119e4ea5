package stream

import "github.com/aikoservices/aiko/pkg/log"

// Context is the per-frame accumulator ("swag" in the GLOSSARY): the
// open attribute bag every element's outputs are merged into as the
// Pipeline walks the graph for one frame.
type Context struct {
	StreamID uint64
	FrameID  uint64
	Swag     map[string]any
}

// NewContext creates an empty Context for one frame.
func NewContext(streamID, frameID uint64) *Context {
	return &Context{StreamID: streamID, FrameID: frameID, Swag: make(map[string]any)}
}

// MergeOutputs folds an element's outputs into the swag. When an
// output name collides with an existing key from an earlier node in the
// same frame, the later writer wins and the collision is logged at
// debug — original_source/pipeline_2020.py's swag-merge behavior
// (SPEC_FULL.md §16), not left undefined.
func (c *Context) MergeOutputs(nodeName string, outputs map[string]string) {
	for k, v := range outputs {
		if _, exists := c.Swag[k]; exists {
			log.WithComponent("stream").Debug().
				Str("node", nodeName).Str("key", k).
				Msg("swag key collision, later writer wins")
		}
		c.Swag[k] = v
	}
}

// Gather collects named inputs from the swag. ok is false if any input
// is missing, per spec.md §4.7 step 3 ("Missing input → ERROR").
func (c *Context) Gather(names []string) (inputs map[string]string, ok bool) {
	inputs = make(map[string]string, len(names))
	for _, n := range names {
		v, present := c.Swag[n]
		if !present {
			return nil, false
		}
		s, isString := v.(string)
		if !isString {
			s = ScalarString(v)
		}
		inputs[n] = s
	}
	return inputs, true
}
