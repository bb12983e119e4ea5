// Package pipeline implements the Pipeline of spec.md §4.7: graph
// construction from a Definition, stream lifecycle, and per-frame
// processing.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aikoservices/aiko/pkg/aikoerr"
	"github.com/aikoservices/aiko/pkg/discovery"
	"github.com/aikoservices/aiko/pkg/element"
	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/aikoservices/aiko/pkg/graph"
	"github.com/aikoservices/aiko/pkg/lease"
	"github.com/aikoservices/aiko/pkg/log"
	"github.com/aikoservices/aiko/pkg/metrics"
	"github.com/aikoservices/aiko/pkg/service"
	"github.com/aikoservices/aiko/pkg/stream"
	"github.com/aikoservices/aiko/pkg/transport"
	"github.com/rs/zerolog"
)

// Factory constructs a local element instance by its module descriptor.
type Factory func(name string, parameters map[string]string) (element.Element, error)

// registry is the process-wide local-element factory registry, keyed by
// the "module" string a Definition's element entry names.
var registry = struct {
	mu sync.Mutex
	m  map[string]Factory
}{m: make(map[string]Factory)}

// Register installs a Factory under module, for RemoteFilter-less
// elements a Definition can then reference by name.
func Register(module string, f Factory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.m[module] = f
}

func lookupFactory(module string) (Factory, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	f, ok := registry.m[module]
	return f, ok
}

type nodeEntry struct {
	def     ElementDefinition
	elem    element.Element
	remote  *element.RemoteElement
	inputs  []string
}

// Pipeline is one constructed, runnable graph instance, per spec.md
// §4.7. Grounded on the teacher's reconciler.reconcile sweep (node-by-
// node, ignore-and-continue-on-error) for DestroyStream, and
// scheduler.schedule's read-all-then-act shape for ProcessFrame.
type Pipeline struct {
	mu sync.Mutex

	name       string
	graph      *graph.Graph
	nodes      map[string]*nodeEntry
	parameters map[string]string

	loop      *eventloop.Loop
	discovery *discovery.Cache

	streams   map[uint64]*stream.Stream
	lifecycle lifecycle
	log       zerolog.Logger
}

// lifecycle gates stream creation per spec.md §4.7: rejected unless ready.
type lifecycle int

const (
	lifecycleReady lifecycle = iota
	lifecycleNotReady
)

// New constructs a Pipeline from def: it builds the graph, then
// instantiates one element per node — local via the Factory registry,
// remote via a remote-absent placeholder registered against disco for
// its service filter.
func New(def *Definition, loop *eventloop.Loop, tr transport.Transport, disco *discovery.Cache) (*Pipeline, error) {
	g, err := graph.Build(def.Graph)
	if err != nil {
		return nil, aikoerr.NewConfiguration("pipeline: graph construction failed", err)
	}

	p := &Pipeline{
		name:       def.Name,
		graph:      g,
		nodes:      make(map[string]*nodeEntry),
		parameters: def.Parameters,
		loop:       loop,
		discovery:  disco,
		streams:    make(map[uint64]*stream.Stream),
		lifecycle:  lifecycleNotReady,
		log:        log.WithComponent("pipeline"),
	}

	byName := make(map[string]ElementDefinition, len(def.Elements))
	for _, ed := range def.Elements {
		byName[ed.Name] = ed
	}

	for _, name := range g.Order() {
		ed, ok := byName[name]
		if !ok {
			return nil, aikoerr.NewConfiguration(fmt.Sprintf("pipeline: node %q has no element definition", name), nil)
		}
		entry, err := p.buildNode(ed, tr, disco)
		if err != nil {
			return nil, err
		}
		p.nodes[name] = entry
	}

	p.lifecycle = lifecycleReady
	return p, nil
}

func (p *Pipeline) buildNode(ed ElementDefinition, tr transport.Transport, disco *discovery.Cache) (*nodeEntry, error) {
	if ed.Module != "" {
		factory, ok := lookupFactory(ed.Module)
		if !ok {
			return nil, aikoerr.NewConfiguration(fmt.Sprintf("pipeline: unknown module %q for element %q", ed.Module, ed.Name), nil)
		}
		elem, err := factory(ed.Name, ed.Parameters)
		if err != nil {
			return nil, aikoerr.NewConfiguration(fmt.Sprintf("pipeline: constructing element %q", ed.Name), err)
		}
		return &nodeEntry{def: ed, elem: elem}, nil
	}

	remote := element.NewRemote(ed.Name, tr)
	filter := toServiceFilter(toElementFilter(ed.Remote))
	if disco != nil {
		disco.RegisterHandler(filter, func(action string, rec service.Record) {
			switch action {
			case "add":
				remote.OnDiscovered(rec.TopicPath)
			case "remove":
				remote.OnVanished()
			}
		})
	}
	return &nodeEntry{def: ed, elem: remote, remote: remote}, nil
}

func toServiceFilter(f element.RemoteFilter) service.Filter {
	return service.Filter{
		Name:      f.Name,
		Protocol:  f.Protocol,
		Transport: f.Transport,
		Owner:     f.Owner,
		Tags:      service.Tags(f.Tags),
	}
}

// CreateStream creates a new stream per spec.md §4.7: a Lease expiring
// after graceTime whose expiry destroys the stream, then start_stream on
// every element in graph order. A failure during start is logged but
// does not abort creation.
func (p *Pipeline) CreateStream(ctx context.Context, streamID uint64, parameters map[string]string, graceTime time.Duration) (*stream.Stream, error) {
	p.mu.Lock()
	if p.lifecycle != lifecycleReady {
		p.mu.Unlock()
		return nil, aikoerr.NewStream(fmt.Sprintf("pipeline: %s not ready for new streams", p.name), nil)
	}
	if _, exists := p.streams[streamID]; exists {
		p.mu.Unlock()
		return nil, aikoerr.NewStream(fmt.Sprintf("pipeline: stream %d already exists", streamID), nil)
	}
	p.mu.Unlock()

	l := lease.New(p.loop, lease.Config{
		Time: graceTime,
		ID:   fmt.Sprintf("stream-%d", streamID),
		OnExpire: func(string) {
			_ = p.DestroyStream(context.Background(), streamID)
		},
	})
	s := stream.New(streamID, parameters, l)

	p.mu.Lock()
	p.streams[streamID] = s
	p.mu.Unlock()
	metrics.StreamLeaseRemaining.WithLabelValues(p.name, fmt.Sprintf("%d", streamID)).Set(graceTime.Seconds())

	for _, name := range p.graph.Order() {
		entry := p.nodes[name]
		event, diag := entry.elem.StartStream(ctx, s)
		if event != element.OKAY {
			p.log.Warn().Str("node", name).Str("event", event.String()).Str("diagnostic", diag).
				Msg("pipeline: start_stream failed, continuing")
		}
	}

	return s, nil
}

// DestroyStream removes streamID from the lease table and invokes
// stop_stream on every element in graph order, ignoring per-element
// errors to guarantee full cleanup (spec.md §4.7).
func (p *Pipeline) DestroyStream(ctx context.Context, streamID uint64) error {
	p.mu.Lock()
	s, ok := p.streams[streamID]
	if ok {
		delete(p.streams, streamID)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	s.Lease().Terminate()
	metrics.StreamLeaseRemaining.DeleteLabelValues(p.name, fmt.Sprintf("%d", streamID))

	for _, name := range p.graph.Order() {
		entry := p.nodes[name]
		_, _ = entry.elem.StopStream(ctx, s)
	}
	return nil
}

// Stream looks up a live stream by id, reporting false once its lease
// has expired or it has been explicitly destroyed.
func (p *Pipeline) Stream(streamID uint64) (*stream.Stream, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[streamID]
	return s, ok
}

// CreateFrame returns a fresh per-frame Context for streamID, defaulting
// stream_id/frame_id to 0 if the stream is unknown (spec.md §4.7 step 2).
func (p *Pipeline) CreateFrame(streamID uint64) *stream.Context {
	p.mu.Lock()
	s, ok := p.streams[streamID]
	p.mu.Unlock()

	if !ok {
		return stream.NewContext(0, 0)
	}
	return stream.NewContext(streamID, s.NextFrameID())
}

// ProcessFrame implements spec.md §4.7's process_frame algorithm: if
// streamID has an active lease, extend it; then walk the graph once,
// gathering inputs from swag and invoking each element in turn.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame *stream.Context) (*stream.Context, error) {
	p.mu.Lock()
	s, hasStream := p.streams[frame.StreamID]
	p.mu.Unlock()

	if hasStream {
		graceTime := s.Lease().Time()
		s.Lease().Extend(graceTime)
		metrics.StreamLeaseRemaining.WithLabelValues(p.name, fmt.Sprintf("%d", frame.StreamID)).Set(graceTime.Seconds())
	}

	for _, name := range p.graph.Order() {
		entry := p.nodes[name]
		inputs, ok := frame.Gather(entry.inputs)
		if !ok {
			if hasStream {
				_ = p.DestroyStream(ctx, frame.StreamID)
			}
			metrics.FramesProcessed.WithLabelValues(p.name, "error").Inc()
			return frame, aikoerr.NewStream(fmt.Sprintf("pipeline: missing input for node %q", name), nil)
		}

		event, outputs := entry.elem.ProcessFrame(ctx, streamOrNil(s), inputs)
		switch event {
		case element.OKAY:
			frame.MergeOutputs(name, outputs)
		case element.NoFrame:
			metrics.FramesProcessed.WithLabelValues(p.name, "no_frame").Inc()
			return frame, nil
		case element.DropFrame:
			metrics.FramesProcessed.WithLabelValues(p.name, "drop_frame").Inc()
			return frame, aikoerr.NewFrameDrop(fmt.Sprintf("pipeline: node %q dropped frame", name))
		case element.Stop:
			if hasStream {
				_ = p.DestroyStream(ctx, frame.StreamID)
			}
			metrics.FramesProcessed.WithLabelValues(p.name, "stop").Inc()
			return frame, nil
		case element.Error:
			if hasStream {
				_ = p.DestroyStream(ctx, frame.StreamID)
			}
			metrics.FramesProcessed.WithLabelValues(p.name, "error").Inc()
			return frame, aikoerr.NewStream(fmt.Sprintf("pipeline: node %q errored", name), nil)
		case element.LoopEnd:
			metrics.FramesProcessed.WithLabelValues(p.name, "loop_end").Inc()
			return frame, nil
		}
	}

	metrics.FramesProcessed.WithLabelValues(p.name, "okay").Inc()
	return frame, nil
}

func streamOrNil(s *stream.Stream) element.Stream {
	if s == nil {
		return nil
	}
	return s
}

// SetNodeInputs declares the swag keys node reads, used by ProcessFrame's
// step 3. ElementDefinition has no input list, so this is the only way a
// node gets inputs; a node never given any receives an empty inputs map.
func (p *Pipeline) SetNodeInputs(name string, inputs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.nodes[name]; ok {
		entry.inputs = inputs
	}
}
