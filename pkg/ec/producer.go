package ec

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aikoservices/aiko/pkg/eventloop"
	"github.com/aikoservices/aiko/pkg/lease"
	"github.com/aikoservices/aiko/pkg/log"
	"github.com/aikoservices/aiko/pkg/metrics"
	"github.com/aikoservices/aiko/pkg/sexp"
	"github.com/aikoservices/aiko/pkg/transport"
	"github.com/rs/zerolog"
)

// subscription is one active stream subscriber (spec.md §4.8).
type subscription struct {
	responseTopic string
	itemNames     []string
	lease         *lease.Lease
}

// Producer hosts the authoritative State for one topic path and fans
// mutations out to every active stream subscription, per spec.md §4.8.
// Grounded on the teacher's WarrenFSM.Apply switch-on-cmd.Op dispatch,
// re-targeted at EC's add/update/remove/stream command set.
type Producer struct {
	mu sync.Mutex

	state *State
	store Store
	tr    transport.Transport
	loop  *eventloop.Loop

	controlTopic string
	stateTopic   string

	subs map[string]*subscription
	log  zerolog.Logger
}

// NewProducer creates a Producer listening on controlTopic and
// republishing on stateTopic. store may be nil (in which case a
// MemoryStore is used).
func NewProducer(tr transport.Transport, loop *eventloop.Loop, controlTopic, stateTopic string, store Store) (*Producer, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	p := &Producer{
		state:        NewState(),
		store:        store,
		tr:           tr,
		loop:         loop,
		controlTopic: controlTopic,
		stateTopic:   stateTopic,
		subs:         make(map[string]*subscription),
		log:          log.WithComponent("ec-producer"),
	}

	for path, value := range store.LoadAll() {
		_ = p.state.Set(path, value)
	}

	if err := tr.Subscribe([]string{controlTopic}, p.handleControl); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Producer) handleControl(msg transport.Message) {
	command, params := sexp.Parse(msg.Payload)
	switch command {
	case "add", "update":
		p.applyAndFanOut(command, params)
	case "remove":
		p.applyRemove(params)
	case "stream":
		p.openStream(params)
	default:
		p.log.Warn().Str("command", command).Msg("ec producer: unknown control command")
	}
}

func (p *Producer) applyAndFanOut(command string, params []string) {
	path := sexp.ParamString(params, 0)
	value := sexp.ParamString(params, 1)
	if path == "" {
		return
	}

	if err := p.state.Set(path, value); err != nil {
		p.log.Warn().Err(err).Str("path", path).Msg("ec producer: rejected command")
		return
	}
	_ = p.store.Save(path, value)

	payload := sexp.Generate(command, params)
	_ = p.tr.Publish(p.stateTopic, payload, false, false)
	p.fanOut(path, payload)
}

func (p *Producer) applyRemove(params []string) {
	path := sexp.ParamString(params, 0)
	if path == "" {
		return
	}
	_ = p.state.Delete(path)
	_ = p.store.Delete(path)

	payload := sexp.Generate("remove", params)
	_ = p.tr.Publish(p.stateTopic, payload, false, false)
	p.fanOut(path, payload)
}

// fanOut forwards payload to every active subscription whose item_names
// selects path, per spec.md §4.8.
func (p *Producer) fanOut(path, payload string) {
	p.mu.Lock()
	targets := make([]*subscription, 0, len(p.subs))
	for _, s := range p.subs {
		if matchesPath(s.itemNames, path) {
			targets = append(targets, s)
		}
	}
	p.mu.Unlock()

	for _, s := range targets {
		_ = p.tr.Publish(s.responseTopic, payload, false, false)
	}
}

// openStream handles (stream response_topic lease_time item_names...).
// lease_time=0 terminates an existing subscription.
func (p *Producer) openStream(params []string) {
	responseTopic := sexp.ParamString(params, 0)
	leaseTime := parseLeaseSeconds(sexp.ParamString(params, 1))
	itemNames := params[2:]
	if len(itemNames) == 1 && strings.HasPrefix(itemNames[0], "(") {
		itemNames = sexp.Sublist(itemNames[0])
	}

	p.mu.Lock()
	existing := p.subs[responseTopic]
	p.mu.Unlock()

	if leaseTime <= 0 {
		if existing != nil {
			existing.lease.Terminate()
			p.mu.Lock()
			delete(p.subs, responseTopic)
			p.mu.Unlock()
		}
		return
	}

	if existing != nil {
		existing.itemNames = itemNames
		existing.lease.Extend(leaseTime)
		return
	}

	s := &subscription{responseTopic: responseTopic, itemNames: itemNames}
	s.lease = lease.New(p.loop, lease.Config{
		Time: leaseTime,
		ID:   responseTopic,
		OnExpire: func(id string) {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		},
	})

	p.mu.Lock()
	p.subs[responseTopic] = s
	p.mu.Unlock()

	p.sendSnapshot(s)
}

// sendSnapshot implements the "on first creation" branch of spec.md
// §4.8: item_count, N adds, then sync on /state.
func (p *Producer) sendSnapshot(s *subscription) {
	var items []entry
	for _, e := range p.state.Entries() {
		if matchesPath(s.itemNames, e.path) {
			items = append(items, e)
		}
	}

	metrics.ECSnapshotItems.Observe(float64(len(items)))

	_ = p.tr.Publish(s.responseTopic, sexp.Generate("item_count", []string{strconv.Itoa(len(items))}), false, false)
	for _, it := range items {
		payload := sexp.Generate("add", []string{it.path, scalarToken(it.value)})
		_ = p.tr.Publish(s.responseTopic, payload, false, false)
	}
	_ = p.tr.Publish(p.stateTopic, sexp.Generate("sync", []string{s.responseTopic}), false, false)
}

func scalarToken(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

func parseLeaseSeconds(s string) time.Duration {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
