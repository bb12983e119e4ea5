package element

import (
	"context"
	"sync/atomic"

	"github.com/aikoservices/aiko/pkg/sexp"
	"github.com/aikoservices/aiko/pkg/transport"
)

// RemoteElement is a pipeline node backed by a service discovered at
// runtime. It starts as a remote-absent placeholder and is atomically
// swapped to a proxy once discovery reports the target present, per
// spec.md §4.7's "Remote element lifecycle".
type RemoteElement struct {
	name string
	tr   transport.Transport

	// present holds a *proxyTarget when the remote service has been
	// discovered, nil while remote-absent. atomic.Pointer gives every
	// ProcessFrame call a lock-free, always-consistent view even though
	// discovery's change handler runs on the same event-loop thread as
	// ProcessFrame (spec.md §5) — this is belt-and-braces against future
	// callers outside that guarantee, not a concurrency requirement today.
	present atomic.Pointer[proxyTarget]
}

type proxyTarget struct {
	topicPath string
}

// NewRemote creates a remote-absent placeholder for name.
func NewRemote(name string, tr transport.Transport) *RemoteElement {
	return &RemoteElement{name: name, tr: tr}
}

// Name implements Element.
func (r *RemoteElement) Name() string { return r.name }

// OnDiscovered swaps the placeholder to a proxy targeting topicPath.
func (r *RemoteElement) OnDiscovered(topicPath string) {
	r.present.Store(&proxyTarget{topicPath: topicPath})
}

// OnVanished reverts the element to remote-absent.
func (r *RemoteElement) OnVanished() {
	r.present.Store(nil)
}

// StartStream implements Element. Remote-absent placeholders and
// present proxies both no-op here: the remote process manages its own
// stream lifecycle on arrival of the first process_frame.
func (r *RemoteElement) StartStream(ctx context.Context, stream Stream) (StreamEvent, string) {
	return OKAY, ""
}

// StopStream implements Element.
func (r *RemoteElement) StopStream(ctx context.Context, stream Stream) (StreamEvent, string) {
	return OKAY, ""
}

// ProcessFrame implements Element. While remote-absent, it returns OKAY
// with empty outputs per spec.md §4.7. Once present, it publishes the
// frame as a process_frame command on the target's /in topic.
func (r *RemoteElement) ProcessFrame(ctx context.Context, stream Stream, inputs map[string]string) (StreamEvent, map[string]string) {
	target := r.present.Load()
	if target == nil {
		return OKAY, map[string]string{}
	}

	params := []string{r.name}
	for k, v := range inputs {
		params = append(params, k, v)
	}
	payload := sexp.Generate("process_frame", params)
	_ = r.tr.Publish(target.topicPath+"/in", payload, false, false)

	return OKAY, map[string]string{}
}
