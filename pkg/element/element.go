// Package element implements the PipelineElement contract of spec.md
// §4.6: the per-node stream lifecycle, the StreamEvent outcome enum, and
// parameter resolution.
package element

import "context"

// StreamEvent is the outcome of a lifecycle or frame-processing call,
// spec.md §4.6.
type StreamEvent int

const (
	OKAY StreamEvent = iota
	NoFrame
	DropFrame
	Stop
	Error
	LoopEnd
)

func (e StreamEvent) String() string {
	switch e {
	case OKAY:
		return "OKAY"
	case NoFrame:
		return "NO_FRAME"
	case DropFrame:
		return "DROP_FRAME"
	case Stop:
		return "STOP"
	case Error:
		return "ERROR"
	case LoopEnd:
		return "LOOP_END"
	default:
		return "UNKNOWN"
	}
}

// Stream is the minimal view of a pipeline stream an Element needs: its
// id and a parameter lookup that already folds in stream-level overrides.
type Stream interface {
	ID() uint64
	Parameter(name string) (string, bool)
	// Variable/SetVariable let an element keep per-stream state across
	// process_frame calls (e.g. a loop-control iteration counter).
	Variable(name string) (any, bool)
	SetVariable(name string, value any)
}

// Element is the contract every pipeline node — local or remote-proxy —
// implements. Grounded on the teacher's worker.Worker start/stop/health
// lifecycle shape, re-targeted at per-stream frame processing.
type Element interface {
	// Name is the element's graph node name.
	Name() string

	// StartStream is invoked once per stream, in graph order, when the
	// stream is created.
	StartStream(ctx context.Context, stream Stream) (StreamEvent, string)

	// ProcessFrame is invoked once per frame with the node's declared
	// inputs gathered from the frame's swag.
	ProcessFrame(ctx context.Context, stream Stream, inputs map[string]string) (StreamEvent, map[string]string)

	// StopStream is invoked once per stream, in graph order, on
	// destruction. Errors are logged but never abort cleanup.
	StopStream(ctx context.Context, stream Stream) (StreamEvent, string)
}

// Definition is the element-level configuration parsed from a pipeline
// definition: its module descriptor (for local elements) or service
// filter (for remote elements), plus its own parameter overrides.
type Definition struct {
	Name       string
	Module     string            // "pkg.Type" local factory key; empty for remote
	Parameters map[string]string // element-level parameter definitions
	// ServiceFilter selects the remote service this element proxies to,
	// when Module is empty.
	ServiceFilter RemoteFilter
}

// RemoteFilter names the subset of service.Filter fields a pipeline
// definition can specify for a remote element, kept decoupled from
// pkg/service to avoid element depending on it.
type RemoteFilter struct {
	Name      string
	Protocol  string
	Transport string
	Owner     string
	Tags      []string
}

// GetParameter resolves name against elementParams first; if absent and
// usePipeline, against pipelineParams; otherwise returns def with
// found=false. Stream-level overrides are applied by the caller before
// reaching here (spec.md §4.6).
func GetParameter(name, def string, usePipeline bool, elementParams, pipelineParams map[string]string) (value string, found bool) {
	if v, ok := elementParams[name]; ok {
		return v, true
	}
	if usePipeline {
		if v, ok := pipelineParams[name]; ok {
			return v, true
		}
	}
	return def, false
}
