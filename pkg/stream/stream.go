// Package stream implements the Stream and per-frame Context ("swag")
// types of spec.md §3.
package stream

import (
	"sync"

	"github.com/aikoservices/aiko/pkg/lease"
)

// Stream is one active pipeline stream: its identity, the parameters it
// was created with, mutable variables elements may stash state in, and
// the Lease governing its lifetime.
type Stream struct {
	mu sync.RWMutex

	id         uint64
	parameters map[string]string
	variables  map[string]any
	lease      *lease.Lease
	nextFrame  uint64
}

// New creates a Stream with the given id and creation parameters.
func New(id uint64, parameters map[string]string, l *lease.Lease) *Stream {
	if parameters == nil {
		parameters = make(map[string]string)
	}
	return &Stream{
		id:         id,
		parameters: parameters,
		variables:  make(map[string]any),
		lease:      l,
	}
}

// ID returns the stream's identifier (element.Stream).
func (s *Stream) ID() uint64 { return s.id }

// Parameter resolves a stream-level parameter override (element.Stream).
func (s *Stream) Parameter(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.parameters[name]
	return v, ok
}

// SetParameter installs or overrides a stream-level parameter.
func (s *Stream) SetParameter(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parameters[name] = value
}

// Variable returns a stream-scoped variable an element previously stored.
func (s *Stream) Variable(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variables[name]
	return v, ok
}

// SetVariable stores a stream-scoped variable.
func (s *Stream) SetVariable(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables[name] = value
}

// Lease returns the stream's governing lease.
func (s *Stream) Lease() *lease.Lease { return s.lease }

// NextFrameID returns the next frame id for this stream and advances the
// counter, defaulting frame_id to 0 on the stream's first frame per
// spec.md §4.7 step 2.
func (s *Stream) NextFrameID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextFrame
	s.nextFrame++
	return id
}
