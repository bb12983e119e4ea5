// Package registrar implements the primary-election state machine and
// service catalog of spec.md §4.10, re-expressing the teacher's
// hashicorp/raft-backed leader acquisition over retained pub/sub messages
// instead of log consensus (see DESIGN.md for why raft itself is
// dropped).
package registrar

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/aikoservices/aiko/pkg/log"
	"github.com/aikoservices/aiko/pkg/metrics"
	"github.com/aikoservices/aiko/pkg/sexp"
	"github.com/aikoservices/aiko/pkg/service"
	"github.com/aikoservices/aiko/pkg/transport"
	"github.com/rs/zerolog"
)

// State is the registrar's own lifecycle state, distinct from the
// per-record service.Record lifecycle the catalog tracks.
type State int

const (
	StateStart State = iota
	StatePrimarySearch
	StatePrimary
	StateSecondary
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePrimarySearch:
		return "primary_search"
	case StatePrimary:
		return "primary"
	case StateSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// searchTimeout is the nominal jittered primary-search wait, spec.md
// §4.10's "~2s". Actual delay is uniform in [0.5T, 1.5T] per the
// resolved Open Question (DESIGN.md).
const searchTimeout = 2 * time.Second

const historyLimit = 256

// Registrar runs the election state machine and maintains the service
// catalog on namespace/service/registrar plus each instance's own
// topic path, per spec.md §4.10.
type Registrar struct {
	mu sync.Mutex

	tr   transport.Transport
	loop *eventloop.Loop
	log  zerolog.Logger

	namespace  string
	bootTopic  string // namespace/service/registrar
	selfTopic  string
	timeStart  int64 // unix nanos, for tie-breaking
	state      State
	searchTmr  eventloop.TimerID

	catalog map[string]service.Record
	history []service.Record

	searchStarted time.Time
}

// Now is overridable in tests; defaults to time.Now().UnixNano().
var Now = func() int64 { return time.Now().UnixNano() }

// New creates a Registrar for namespace and subscribes to the boot topic,
// entering primary_search immediately (spec.md §4.10 "On boot").
func New(tr transport.Transport, loop *eventloop.Loop, namespace, selfTopic string) (*Registrar, error) {
	r := &Registrar{
		tr:        tr,
		loop:      loop,
		log:       log.WithComponent("registrar"),
		namespace: namespace,
		bootTopic: namespace + "/service/registrar",
		selfTopic: selfTopic,
		catalog:   make(map[string]service.Record),
	}

	if err := tr.Subscribe([]string{r.bootTopic}, r.handleBoot); err != nil {
		return nil, err
	}
	if err := tr.Subscribe([]string{selfTopic + "/in"}, r.handleIn); err != nil {
		return nil, err
	}
	if err := tr.Subscribe([]string{namespace + "/+/+/+/state"}, r.handleServiceState); err != nil {
		return nil, err
	}

	r.enterPrimarySearch()
	return r, nil
}

func (r *Registrar) enterPrimarySearch() {
	r.mu.Lock()
	r.state = StatePrimarySearch
	r.searchStarted = time.Now()
	jitter := searchTimeout/2 + time.Duration(rand.Int64N(int64(searchTimeout)))
	r.searchTmr = r.loop.AddTimer(jitter, 0, r.onSearchTimeout)
	r.mu.Unlock()
	metrics.UpdateComponent("registrar", false, "primary_search")
}

func (r *Registrar) handleBoot(msg transport.Message) {
	command, params := sexp.Parse(msg.Payload)
	switch command {
	case "primary":
		switch sexp.ParamString(params, 0) {
		case "found":
			r.onPrimaryFound(sexp.ParamString(params, 1), sexp.ParamString(params, 2))
		case "absent":
			r.onPrimaryAbsent()
		}
	}
}

func (r *Registrar) onPrimaryFound(topicPath, timeStarted string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StatePrimary {
		// Tie-break: the earlier time_started wins. If the other
		// registrar started before us, we step down.
		other, err := strconv.ParseInt(timeStarted, 10, 64)
		if err == nil && other < r.timeStart {
			r.demoteToSecondaryLocked()
		}
		return
	}

	if r.state == StatePrimarySearch {
		r.loop.RemoveTimer(r.searchTmr)
		metrics.RegistrarElectionDuration.Observe(time.Since(r.searchStarted).Seconds())
	}
	r.state = StateSecondary
	r.log.Info().Str("primary", topicPath).Msg("registrar: following primary")
	metrics.UpdateComponent("registrar", true, "secondary")
}

func (r *Registrar) onPrimaryAbsent() {
	r.mu.Lock()
	wasSecondary := r.state == StateSecondary
	if wasSecondary {
		r.catalog = make(map[string]service.Record)
	}
	r.mu.Unlock()

	if wasSecondary {
		r.enterPrimarySearch()
	}
}

func (r *Registrar) onSearchTimeout() {
	r.mu.Lock()
	if r.state != StatePrimarySearch {
		r.mu.Unlock()
		return
	}
	r.promoteToPrimaryLocked()
	r.mu.Unlock()
}

func (r *Registrar) promoteToPrimaryLocked() {
	metrics.RegistrarElectionDuration.Observe(time.Since(r.searchStarted).Seconds())
	r.state = StatePrimary
	r.timeStart = Now()

	_ = r.tr.SetLastWillAndTestament(r.bootTopic, sexp.Generate("primary", []string{"absent"}), true)
	payload := sexp.Generate("primary", []string{"found", r.selfTopic, strconv.FormatInt(r.timeStart, 10)})
	_ = r.tr.Publish(r.bootTopic, payload, true, false)
	r.log.Info().Str("topic_path", r.selfTopic).Msg("registrar: promoted to primary")
	metrics.UpdateComponent("registrar", true, "primary")
}

func (r *Registrar) demoteToSecondaryLocked() {
	r.state = StateSecondary
	r.catalog = make(map[string]service.Record)
	r.log.Info().Msg("registrar: demoted to secondary after tie-break loss")
	metrics.UpdateComponent("registrar", true, "secondary")
}

// State returns the registrar's current lifecycle state.
func (r *Registrar) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ServiceCount returns the catalog's current entry count, the
// service_count invariant spec.md §4.10 requires callers be able to
// observe.
func (r *Registrar) ServiceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.catalog)
}
